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
	"context"
	"errors"
	"math"
	"testing"
)

// fakeSolver records what it was asked to fit and returns a canned
// posterior or error.
type fakeSolver struct {
	spec *ModelSpec
	data []DataRow
	opts *SolverOptions

	post *PosteriorSummary
	err  error
}

func (f *fakeSolver) Fit(ctx context.Context, spec *ModelSpec, data []DataRow, opts *SolverOptions) (*PosteriorSummary, error) {
	f.spec, f.data, f.opts = spec, data, opts
	if f.err != nil {
		return nil, f.err
	}
	if f.post != nil {
		return f.post, nil
	}
	return &PosteriorSummary{}, nil
}

func TestFit(t *testing.T) {
	solver := &fakeSolver{}
	result, err := Fit(context.Background(), testCells(), testAdjacency(t), nil,
		testModelConfig(), solver, &SolverOptions{Verbose: true})
	if err != nil {
		t.Fatal(err)
	}
	if solver.spec == nil {
		t.Fatal("the solver was never invoked")
	}
	if !solver.opts.Verbose {
		t.Error("options were not passed through")
	}
	if result.Posterior == nil || result.Tables == nil || result.Spec == nil {
		t.Error("result is missing bookkeeping")
	}
	if result.Family != Binomial {
		t.Errorf("Family = %q, want %q", result.Family, Binomial)
	}
	// No bias table: every offset stays zero.
	for i, r := range solver.data {
		if r.LogOffset != 0 {
			t.Errorf("row %d has log offset %g without a bias table", i, r.LogOffset)
		}
	}
}

func TestFitNilSolver(t *testing.T) {
	_, err := Fit(context.Background(), testCells(), testAdjacency(t), nil, testModelConfig(), nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(ConfigurationError); !ok {
		t.Errorf("error has type %T, want ConfigurationError", err)
	}
}

func TestFitSolverFailurePropagates(t *testing.T) {
	// Engine failures come back unchanged; the orchestrator never
	// retries or rewraps them.
	failure := SolverFailure{Engine: "inla", Err: errors.New("Hessian not positive definite")}
	solver := &fakeSolver{err: failure}
	_, err := Fit(context.Background(), testCells(), testAdjacency(t), nil, testModelConfig(), solver, nil)
	if !errors.Is(err, failure.Err) && err != error(failure) {
		t.Fatalf("got %v (%T), want the solver failure verbatim", err, err)
	}
	var sf SolverFailure
	if !errors.As(err, &sf) {
		t.Fatalf("error %T does not unwrap to SolverFailure", err)
	}
	if sf.Engine != "inla" {
		t.Errorf("Engine = %q, want %q", sf.Engine, "inla")
	}
}

func TestApplyBias(t *testing.T) {
	solver := &fakeSolver{}
	bias := []BiasRow{
		{Period: "2010-2014", Ratio: 2},                 // period-wide
		{Period: "2010-2014", Region: "r1", Ratio: 0.5}, // specific, wins for r1
	}
	_, err := Fit(context.Background(), testCells(), testAdjacency(t), bias, testModelConfig(), solver, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range solver.data {
		var want float64
		switch {
		case r.Period == "2010-2014" && r.Region == "r1":
			want = math.Log(0.5)
		case r.Period == "2010-2014":
			want = math.Log(2)
		default:
			want = 0 // outer join: unmatched rows keep ratio 1
		}
		if math.Abs(r.LogOffset-want) > 1e-12 {
			t.Errorf("row %d (%s, %s) has log offset %g, want %g", i, r.Period, r.Region, r.LogOffset, want)
		}
	}
}

func TestApplyBiasBadRatio(t *testing.T) {
	for _, ratio := range []float64{0, -1, math.NaN()} {
		bias := []BiasRow{{Period: "2010-2014", Ratio: ratio}}
		_, err := Fit(context.Background(), testCells(), testAdjacency(t), bias, testModelConfig(), &fakeSolver{}, nil)
		if err == nil {
			t.Errorf("ratio %g should be rejected", ratio)
			continue
		}
		if _, ok := err.(ConfigurationError); !ok {
			t.Errorf("ratio %g: error has type %T, want ConfigurationError", ratio, err)
		}
	}
}

func TestReferenceStratum(t *testing.T) {
	var tests = []struct {
		name   string
		strata []string
		post   *PosteriorSummary
		want   string
	}{
		{
			name:   "explicit report wins",
			strata: []string{"rural", "urban"},
			post: &PosteriorSummary{
				ReferenceLevels: map[string]string{"stratum": "urban"},
				FixedEffects:    []EffectSummary{{Name: "stratumrural"}, {Name: "stratumurban"}},
			},
			want: "urban",
		},
		{
			name:   "elimination",
			strata: []string{"rural", "urban"},
			post: &PosteriorSummary{
				FixedEffects: []EffectSummary{{Name: "stratumurban"}},
			},
			want: "rural",
		},
		{
			name:   "exact name match",
			strata: []string{"rural", "urban"},
			post: &PosteriorSummary{
				FixedEffects: []EffectSummary{{Name: "rural"}},
			},
			want: "urban",
		},
		{
			name:   "ambiguous",
			strata: []string{"a", "b", "c"},
			post: &PosteriorSummary{
				FixedEffects: []EffectSummary{{Name: "stratuma"}},
			},
			want: "", // two levels unaccounted for
		},
		{
			name:   "all reported",
			strata: []string{"rural", "urban"},
			post: &PosteriorSummary{
				FixedEffects: []EffectSummary{{Name: "stratumrural"}, {Name: "stratumurban"}},
			},
			want: "",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := referenceStratum(test.strata, test.post); got != test.want {
				t.Errorf("referenceStratum = %q, want %q", got, test.want)
			}
		})
	}
}

func TestFitReferenceStratumEndToEnd(t *testing.T) {
	solver := &fakeSolver{post: &PosteriorSummary{
		FixedEffects: []EffectSummary{{Name: "stratumall"}},
	}}
	cells := testCells()
	cells[0].Stratum = "urban" // two strata: all, urban
	result, err := Fit(context.Background(), cells, testAdjacency(t), nil, testModelConfig(), solver, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.ReferenceStratum != "urban" {
		t.Errorf("ReferenceStratum = %q, want %q", result.ReferenceStratum, "urban")
	}
}
