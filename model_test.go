/*
Copyright © 2024 the mortsmooth authors.
This file is part of mortsmooth.

Mortsmooth is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Mortsmooth is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with mortsmooth.  If not, see <http://www.gnu.org/licenses/>.
*/

package mortsmooth

import (
	"testing"
)

func testModelConfig() *Config {
	bands, months := DefaultAgeBands()
	return &Config{
		Family:          Binomial,
		TimeModel:       TimePeriod,
		RWOrder:         1,
		Calendar:        Calendar{YearCutoffs: []int{2010, 2015, 2020}},
		AgeBands:        bands,
		AgeMonths:       months,
		InteractionType: InteractionBoth,
	}
}

func testAdjacency(t *testing.T) *Adjacency {
	t.Helper()
	a, err := NewAdjacency([]string{"r1", "r2"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Connect("r1", "r2"); err != nil {
		t.Fatal(err)
	}
	return a
}

func testCells() []CountCell {
	return []CountCell{
		{Cluster: "c1", Period: "2010-2014", Region: "r1", Stratum: "all", AgeBand: "0", Survey: "s1", Total: 100, Deaths: 3},
		{Cluster: "c1", Period: "2010-2014", Region: "r1", Stratum: "all", AgeBand: "1-11", Survey: "s1", Total: 500, Deaths: 2},
		{Cluster: "c2", Period: "2015-2019", Region: "r2", Stratum: "all", AgeBand: "0", Survey: "s2", Total: 80, Deaths: 1},
	}
}

func TestAssembleAugmentation(t *testing.T) {
	asm, err := Assemble(testCells(), testAdjacency(t), testModelConfig())
	if err != nil {
		t.Fatal(err)
	}
	// 3 observed rows plus one synthetic row per region × time cell.
	S, N := asm.Tables.Region.Len(), asm.Tables.Time.Len()
	if want := 3 + S*N; len(asm.Data) != want {
		t.Fatalf("got %d data rows, want %d", len(asm.Data), want)
	}

	seen := make(map[[2]int]bool)
	for i, r := range asm.Data {
		if r.RowID != i+1 {
			t.Errorf("row %d has RowID %d", i, r.RowID)
		}
		if i < 3 {
			if r.Missing {
				t.Errorf("observed row %d marked missing", i)
			}
			continue
		}
		if !r.Missing {
			t.Errorf("synthetic row %d not marked missing", i)
		}
		if r.Total != 1 {
			t.Errorf("synthetic row %d has exposure %d, want 1", i, r.Total)
		}
		seen[[2]int{r.RegionID, r.TimeID}] = true
	}
	if len(seen) != S*N {
		t.Errorf("synthetic rows cover %d region × time cells, want %d", len(seen), S*N)
	}
}

func TestAssembleRowIndices(t *testing.T) {
	asm, err := Assemble(testCells(), testAdjacency(t), testModelConfig())
	if err != nil {
		t.Fatal(err)
	}
	N := asm.Tables.Time.Len()
	r := asm.Data[2] // r2, 2015-2019, s2
	if r.RegionID != 2 || r.TimeID != 2 {
		t.Fatalf("RegionID, TimeID = %d, %d; want 2, 2", r.RegionID, r.TimeID)
	}
	if want := (r.RegionID-1)*N + r.TimeID; r.TimeAreaID != want {
		t.Errorf("TimeAreaID = %d, want %d", r.TimeAreaID, want)
	}
	if r.SurveyTimeID == 0 || r.SurveyTimeAreaID == 0 {
		t.Error("survey indices should be populated with two surveys")
	}
}

// termByName is a test convenience; assembly order is fixed but the tests
// should not depend on it.
func termByName(terms []Term, name string) *Term {
	for i := range terms {
		if terms[i].Name == name {
			return &terms[i]
		}
	}
	return nil
}

func TestAssembleTerms(t *testing.T) {
	var tests = []struct {
		name    string
		family  Family
		useAdj  bool
		want    []string
		without []string
	}{
		{
			name: "binomial with geography", family: Binomial, useAdj: true,
			want: []string{"time", "space", "time.area", "survey.time", "nugget"},
		},
		{
			name: "betabinomial", family: BetaBinomial, useAdj: true,
			want:    []string{"time", "space", "time.area", "survey.time"},
			without: []string{"nugget"},
		},
		{
			name: "national", family: Binomial, useAdj: false,
			want:    []string{"time", "survey.time", "nugget"},
			without: []string{"space", "time.area"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testModelConfig()
			cfg.Family = test.family
			var adj *Adjacency
			cells := testCells()
			if test.useAdj {
				adj = testAdjacency(t)
			} else {
				for i := range cells {
					cells[i].Region = RegionAll
				}
			}
			asm, err := Assemble(cells, adj, cfg)
			if err != nil {
				t.Fatal(err)
			}
			for _, name := range test.want {
				if termByName(asm.Spec.Terms, name) == nil {
					t.Errorf("missing term %q", name)
				}
			}
			for _, name := range test.without {
				if termByName(asm.Spec.Terms, name) != nil {
					t.Errorf("unexpected term %q", name)
				}
			}
			if len(asm.Spec.Terms) != len(test.want) {
				t.Errorf("got %d terms, want %d", len(asm.Spec.Terms), len(test.want))
			}
		})
	}
}

func TestAssembleSpatialTerm(t *testing.T) {
	asm, err := Assemble(testCells(), testAdjacency(t), testModelConfig())
	if err != nil {
		t.Fatal(err)
	}
	space := termByName(asm.Spec.Terms, "space")
	if space == nil {
		t.Fatal("no spatial term")
	}
	if space.Type != TermBYM2 {
		t.Errorf("spatial term type %q, want %q", space.Type, TermBYM2)
	}
	if space.Scale != 0.25 {
		t.Errorf("Scale = %g, want 0.25 for the two-region pair graph", space.Scale)
	}
	if space.MixingPrior == nil {
		t.Error("BYM2 term needs a mixing prior")
	} else if space.MixingPrior.Family != PriorPC {
		t.Errorf("mixing prior family %q, want %q", space.MixingPrior.Family, PriorPC)
	}
	if space.Constraint.Rows() != 1 {
		t.Errorf("spatial constraint has %d rows, want 1", space.Constraint.Rows())
	}

	st := termByName(asm.Spec.Terms, "time.area")
	if st == nil {
		t.Fatal("no interaction term")
	}
	if st.N != 4 {
		t.Errorf("interaction domain size %d, want 4", st.N)
	}
	// Type 4 over S=2, N=2: S + N constraint rows.
	if st.Constraint.Rows() != 4 {
		t.Errorf("interaction constraint has %d rows, want 4", st.Constraint.Rows())
	}

	nugget := termByName(asm.Spec.Terms, "nugget")
	if nugget == nil {
		t.Fatal("no nugget term")
	}
	if nugget.N != len(asm.Data) {
		t.Errorf("nugget domain size %d, want one level per row (%d)", nugget.N, len(asm.Data))
	}
}

func TestAssembleYearly(t *testing.T) {
	cfg := testModelConfig()
	cfg.TimeModel = TimeYearly
	cfg.Calendar = Calendar{YearCutoffs: []int{2010, 2011, 2012, 2013, 2014}, Yearly: true}
	cfg.PeriodLen = 2

	cells := testCells()
	for i := range cells {
		cells[i].Period = "2011"
	}
	asm, err := Assemble(cells, testAdjacency(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if asm.Tables.NYears != 4 || asm.Tables.NPeriods != 2 {
		t.Fatalf("NYears, NPeriods = %d, %d; want 4, 2", asm.Tables.NYears, asm.Tables.NPeriods)
	}
	wantTimes := []string{"2010", "2011", "2012", "2013", "2010-2011", "2012-2013"}
	for i, l := range wantTimes {
		got, ok := asm.Tables.Time.Label(i + 1)
		if !ok || got != l {
			t.Errorf("time label %d = %q, want %q", i+1, got, l)
		}
	}

	tt := termByName(asm.Spec.Terms, "time")
	if tt == nil {
		t.Fatal("no temporal term")
	}
	if tt.Type != TermGeneric {
		t.Errorf("temporal term type %q, want %q", tt.Type, TermGeneric)
	}
	n, _ := tt.Structure.Dims()
	if n != 6 {
		t.Errorf("joint structure is %d × %d, want 6 × 6", n, n)
	}
	// One member-year row per period plus the overall zero-sum row.
	if tt.Constraint.Rows() != 3 {
		t.Errorf("temporal constraint has %d rows, want 3", tt.Constraint.Rows())
	}
}

func TestAssembleErrors(t *testing.T) {
	var tests = []struct {
		name      string
		mutate    func(*Config, []CountCell) []CountCell
		useAdj    bool
		wantShape bool // DataShapeError; otherwise ConfigurationError
	}{
		{
			name:   "bad family",
			mutate: func(c *Config, cells []CountCell) []CountCell { c.Family = "poisson"; return cells },
			useAdj: true,
		},
		{
			name:   "bad rw order",
			mutate: func(c *Config, cells []CountCell) []CountCell { c.RWOrder = 3; return cells },
			useAdj: true,
		},
		{
			name:   "bad interaction",
			mutate: func(c *Config, cells []CountCell) []CountCell { c.InteractionType = 7; return cells },
			useAdj: true,
		},
		{
			name: "yearly model with period calendar",
			mutate: func(c *Config, cells []CountCell) []CountCell {
				c.TimeModel = TimeYearly
				c.PeriodLen = 2
				return cells
			},
			useAdj: true,
		},
		{
			name: "unknown age band",
			mutate: func(c *Config, cells []CountCell) []CountCell {
				cells[0].AgeBand = "60-71"
				return cells
			},
			useAdj:    true,
			wantShape: true,
		},
		{
			name: "unknown period",
			mutate: func(c *Config, cells []CountCell) []CountCell {
				cells[0].Period = "1990-1994"
				return cells
			},
			useAdj:    true,
			wantShape: true,
		},
		{
			name: "region not in adjacency",
			mutate: func(c *Config, cells []CountCell) []CountCell {
				cells[0].Region = "r9"
				return cells
			},
			useAdj: true,
		},
		{
			name: "regional data without geography",
			mutate: func(c *Config, cells []CountCell) []CountCell {
				return cells
			},
			useAdj: false,
		},
		{
			name: "all rows empty",
			mutate: func(c *Config, cells []CountCell) []CountCell {
				for i := range cells {
					cells[i].Total = 0
				}
				return cells
			},
			useAdj:    true,
			wantShape: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testModelConfig()
			cells := test.mutate(cfg, testCells())
			var adj *Adjacency
			if test.useAdj {
				adj = testAdjacency(t)
			}
			_, err := Assemble(cells, adj, cfg)
			if err == nil {
				t.Fatal("expected an error")
			}
			if test.wantShape {
				if _, ok := err.(DataShapeError); !ok {
					t.Errorf("error has type %T, want DataShapeError: %v", err, err)
				}
			} else {
				if _, ok := err.(ConfigurationError); !ok {
					t.Errorf("error has type %T, want ConfigurationError: %v", err, err)
				}
			}
		})
	}
}

func TestHyperDefaults(t *testing.T) {
	h := HyperConfig{}.withDefaults()
	p, err := h.precisionPrior()
	if err != nil {
		t.Fatal(err)
	}
	if p.Family != PriorPC || p.U != 1 || p.Alpha != 0.01 {
		t.Errorf("default precision prior = %+v, want PC(1, 0.01)", p)
	}
	m := h.mixingPrior()
	if m.U != 0.5 || m.Alpha != 2.0/3.0 {
		t.Errorf("default mixing prior = %+v, want PC(0.5, 2/3)", m)
	}

	g := HyperConfig{Family: PriorGamma}.withDefaults()
	p, err = g.precisionPrior()
	if err != nil {
		t.Fatal(err)
	}
	if p.Family != PriorGamma || p.Shape != 0.001 || p.Rate != 0.001 {
		t.Errorf("default gamma prior = %+v, want Gamma(0.001, 0.001)", p)
	}

	if _, err := (HyperConfig{Family: "cauchy"}).precisionPrior(); err == nil {
		t.Error("unsupported hyperprior family should be an error")
	}
}
