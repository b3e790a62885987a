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
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Family is the outcome distribution for death counts.
type Family string

const (
	// Binomial outcomes need an observation-level "nugget" effect to
	// absorb extra-binomial variance.
	Binomial Family = "binomial"
	// BetaBinomial outcomes carry over-dispersion intrinsically; no
	// nugget is added.
	BetaBinomial Family = "betabinomial"
)

// Temporal resolutions.
const (
	// TimePeriod models one random-effect level per coarse period.
	TimePeriod = "period"
	// TimeYearly models one level per single year plus one per period,
	// jointly.
	TimeYearly = "yearly"
)

// Random-effect term types.
const (
	TermRW          = "rw"      // random walk over the time index
	TermGeneric     = "generic" // custom structured-precision effect
	TermIID         = "iid"     // unstructured
	TermBYM2        = "bym2"    // spatial convolution over the adjacency graph
	TermInteraction = "st"      // space-time interaction
)

// Term is one random effect in the assembled model graph.
type Term struct {
	Name  string
	Type  string
	Group string // data-row grouping index populated for this term
	N     int    // size of the grouping domain

	Order int // random-walk order where applicable

	// Structure is the structured-precision template for generic and
	// BYM2 terms. Interaction terms carry no explicit structure; the
	// solver forms it from the main-effect structures according to
	// InteractionType.
	Structure *mat.SymDense

	// Scale is the BYM2 scaling factor applied to Structure so the
	// structured component has unit typical marginal variance.
	Scale float64

	InteractionType int

	Constraint *ConstraintSpec

	Prior Prior
	// MixingPrior is set on BYM2 terms only (the spatial/unstructured
	// mixing proportion).
	MixingPrior *Prior
}

// DataRow is one row of the augmented model data table: an aggregated
// count observation, or a synthetic zero-information prediction row
// (Missing true, Total 1) added so the engine produces posterior
// predictions for every time × region combination.
type DataRow struct {
	Cluster string
	Period  string
	Region  string
	Stratum string
	AgeBand string
	Survey  string

	Total   int
	Deaths  int
	Missing bool

	// Grouping indices; 0 marks an unused (sentinel) dimension.
	TimeID           int
	RegionID         int
	TimeAreaID       int
	SurveyTimeID     int
	SurveyAreaID     int
	SurveyTimeAreaID int
	RowID            int

	// LogOffset is the log bias-correction ratio, merged in by the fit
	// orchestrator; zero when no bias table applies.
	LogOffset float64
}

// ModelSpec is the complete declarative hierarchical-model description
// handed to the inference engine. It is built fresh per fit and consumed
// exactly once.
type ModelSpec struct {
	Family Family

	// Fixed-effect levels. There is no intercept: the baseline is
	// absorbed into the age-band and stratum effects.
	AgeBands []string
	Strata   []string

	Terms []Term

	// Adjacency is nil for national models.
	Adjacency *Adjacency

	// Hyper records the hyperparameters actually used.
	Hyper HyperConfig
}

// Config is the model-assembly configuration surface.
type Config struct {
	Family    Family
	TimeModel string // TimePeriod or TimeYearly
	RWOrder   int    // 1 or 2

	// Calendar supplies the temporal units. Under TimeYearly it must be
	// a yearly calendar; PeriodLen then sets how many years make up one
	// coarse period.
	Calendar  Calendar
	PeriodLen int

	AgeBands  []string
	AgeMonths []int

	InteractionType int // 1..4; used only with geography

	Hyper HyperConfig
}

// Validate checks the configuration axes.
func (cfg *Config) Validate() error {
	switch cfg.Family {
	case Binomial, BetaBinomial:
	default:
		return ConfigurationError{Option: "Family", Reason: fmt.Sprintf("unsupported outcome family %q", cfg.Family)}
	}
	if cfg.RWOrder != 1 && cfg.RWOrder != 2 {
		return ConfigurationError{Option: "RWOrder", Reason: fmt.Sprintf("random-walk order %d not in {1, 2}", cfg.RWOrder)}
	}
	switch cfg.TimeModel {
	case TimePeriod:
		if cfg.Calendar.Yearly {
			return ConfigurationError{Option: "TimeModel", Reason: "period modeling needs a period calendar"}
		}
	case TimeYearly:
		if !cfg.Calendar.Yearly {
			return ConfigurationError{Option: "TimeModel", Reason: "yearly modeling needs a yearly calendar"}
		}
		if cfg.PeriodLen <= 0 {
			return ConfigurationError{Option: "PeriodLen", Reason: "yearly modeling needs a positive period length"}
		}
	default:
		return ConfigurationError{Option: "TimeModel", Reason: fmt.Sprintf("unsupported temporal resolution %q", cfg.TimeModel)}
	}
	if cfg.InteractionType < InteractionIID || cfg.InteractionType > InteractionBoth {
		return ConfigurationError{Option: "InteractionType",
			Reason: fmt.Sprintf("space-time interaction type %d not in 1..4", cfg.InteractionType)}
	}
	if len(cfg.AgeBands) == 0 || len(cfg.AgeBands) != len(cfg.AgeMonths) {
		return ConfigurationError{Option: "AgeBands", Reason: "age bands and band widths must match and be non-empty"}
	}
	if _, err := cfg.Hyper.withDefaults().precisionPrior(); err != nil {
		return err
	}
	return cfg.Calendar.Validate()
}

// timeLabels returns the temporal unit labels (years first, then periods
// under yearly modeling) and the number of yearly units.
func (cfg *Config) timeLabels() (labels []string, nYears int) {
	base := cfg.Calendar.PeriodLabels()
	if cfg.TimeModel == TimePeriod {
		return base, 0
	}
	labels = append(labels, base...)
	cuts := cfg.Calendar.YearCutoffs
	for lo := 0; lo < len(base); lo += cfg.PeriodLen {
		hi := lo + cfg.PeriodLen
		if hi > len(base) {
			hi = len(base)
		}
		labels = append(labels, fmt.Sprintf("%d-%d", cuts[lo], cuts[hi-1]))
	}
	return labels, len(base)
}

// Assembled bundles the outputs of model assembly.
type Assembled struct {
	Spec   *ModelSpec
	Data   []DataRow
	Tables *IndexTables
}

// Assemble builds the model specification and the augmented data table
// from aggregated count cells. It is a pure function of its inputs: no
// state survives between calls. adj may be nil for national models, in
// which case every cell must carry the "All" region sentinel.
func Assemble(cells []CountCell, adj *Adjacency, cfg *Config) (*Assembled, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hyper := cfg.Hyper.withDefaults()

	var regions []string
	if adj != nil {
		regions = adj.Labels()
	} else {
		regions = []string{RegionAll}
	}

	bands := make(map[string]bool, len(cfg.AgeBands))
	for _, b := range cfg.AgeBands {
		bands[b] = true
	}

	// Filter and validate the observed rows. Zero-exposure rows are
	// dropped here; the synthetic prediction rows are appended after
	// this filter.
	strata := make(map[string]bool)
	surveys := make(map[string]bool)
	var obs []*CountCell
	for i := range cells {
		c := &cells[i]
		if c.Total == 0 {
			continue
		}
		if !bands[c.AgeBand] {
			return nil, DataShapeError{Column: "age_band",
				Reason: fmt.Sprintf("age band %q is not in the configured vocabulary", c.AgeBand)}
		}
		if c.Period == "" {
			return nil, DataShapeError{Column: "period", Reason: "empty period label"}
		}
		if c.Stratum == "" {
			return nil, DataShapeError{Column: "stratum", Reason: "empty stratum label"}
		}
		if adj == nil && c.Region != RegionAll {
			return nil, ConfigurationError{Option: "Adjacency",
				Reason: fmt.Sprintf("no geography supplied but row has region %q instead of %q", c.Region, RegionAll)}
		}
		strata[c.Stratum] = true
		surveys[c.Survey] = true
		obs = append(obs, c)
	}
	if len(obs) == 0 {
		return nil, DataShapeError{Reason: "no rows with positive exposure"}
	}

	times, nYears := cfg.timeLabels()
	tables, err := BuildIndexTables(regions, times, sortedKeys(surveys), nYears)
	if err != nil {
		return nil, err
	}
	if adj != nil {
		if err := adj.Check(tables.Region); err != nil {
			return nil, err
		}
	}

	rows := make([]DataRow, 0, len(obs)+tables.Time.Len()*tables.Region.Len())
	for _, c := range obs {
		r, err := indexRow(c, tables)
		if err != nil {
			return nil, err
		}
		r.RowID = len(rows) + 1
		rows = append(rows, r)
	}

	// Augmentation: one zero-information row per time × region
	// combination so the engine predicts periods and regions with no
	// observed person-months. Missing outcomes contribute nothing to the
	// likelihood.
	strataList := sortedKeys(strata)
	surveyList := tables.Survey.Labels()
	for a := 1; a <= tables.Region.Len(); a++ {
		region, _ := tables.Region.Label(a)
		for t := 1; t <= tables.Time.Len(); t++ {
			period, _ := tables.Time.Label(t)
			c := CountCell{
				Period: period, Region: region,
				Stratum: strataList[0], AgeBand: cfg.AgeBands[0],
				Survey: surveyList[0],
				Total:  1,
			}
			r, err := indexRow(&c, tables)
			if err != nil {
				return nil, err
			}
			r.Missing = true
			r.RowID = len(rows) + 1
			rows = append(rows, r)
		}
	}

	terms, err := buildTerms(cfg, hyper, adj, tables, len(rows))
	if err != nil {
		return nil, err
	}

	spec := &ModelSpec{
		Family:    cfg.Family,
		AgeBands:  append([]string(nil), cfg.AgeBands...),
		Strata:    strataList,
		Terms:     terms,
		Adjacency: adj,
		Hyper:     hyper,
	}
	return &Assembled{Spec: spec, Data: rows, Tables: tables}, nil
}

// indexRow attaches the grouping indices to one count cell.
func indexRow(c *CountCell, t *IndexTables) (DataRow, error) {
	timeID, ok := t.Time.ID(c.Period)
	if !ok {
		return DataRow{}, DataShapeError{Column: "period",
			Reason: fmt.Sprintf("period %q is outside the configured calendar", c.Period)}
	}
	regionID, ok := t.Region.ID(c.Region)
	if !ok {
		return DataRow{}, ConfigurationError{Option: "Adjacency",
			Reason: fmt.Sprintf("region %q is in the data but not the adjacency matrix", c.Region)}
	}
	surveyID, _ := t.Survey.ID(c.Survey)
	r := DataRow{
		Cluster: c.Cluster, Period: c.Period, Region: c.Region,
		Stratum: c.Stratum, AgeBand: c.AgeBand, Survey: c.Survey,
		Total: c.Total, Deaths: c.Deaths,
		TimeID:   timeID,
		RegionID: regionID,
	}
	if !t.TimeArea.Sentinel() {
		r.TimeAreaID = t.TimeArea.ID(regionID, timeID)
	}
	if !t.SurveyTime.Sentinel() {
		r.SurveyTimeID = t.SurveyTime.ID(surveyID, timeID)
	}
	if !t.SurveyArea.Sentinel() {
		r.SurveyAreaID = t.SurveyArea.ID(surveyID, regionID)
	}
	if !t.SurveyTimeArea.Sentinel() {
		r.SurveyTimeAreaID = t.SurveyTimeArea.ID(surveyID, regionID, timeID)
	}
	return r, nil
}

// buildTerms composes the random-effect graph from the configuration
// axes.
func buildTerms(cfg *Config, hyper HyperConfig, adj *Adjacency, tables *IndexTables, nRows int) ([]Term, error) {
	prec, err := hyper.precisionPrior()
	if err != nil {
		return nil, err
	}
	N := tables.Time.Len()
	var terms []Term

	// Temporal main effect.
	switch cfg.TimeModel {
	case TimePeriod:
		q, err := RWStructure(N, cfg.RWOrder)
		if err != nil {
			return nil, err
		}
		terms = append(terms, Term{
			Name: "time", Type: TermRW, Group: "time", N: N,
			Order: cfg.RWOrder, Structure: q,
			Constraint: sumToZero(N), Prior: prec,
		})
	case TimeYearly:
		q, con, err := YearlyStructure(tables.NYears, tables.NPeriods, cfg.PeriodLen, cfg.RWOrder)
		if err != nil {
			return nil, err
		}
		terms = append(terms, Term{
			Name: "time", Type: TermGeneric, Group: "time", N: N,
			Order: cfg.RWOrder, Structure: q,
			Constraint: con.stack(sumToZero(N)), Prior: prec,
		})
	}

	// Spatial convolution and the space-time interaction only exist with
	// geography.
	if adj != nil {
		S := tables.Region.Len()
		scale, err := adj.ScaleFactor()
		if err != nil {
			return nil, err
		}
		mix := hyper.mixingPrior()
		terms = append(terms, Term{
			Name: "space", Type: TermBYM2, Group: "region", N: S,
			Structure: adj.ICAR(), Scale: scale,
			Constraint: sumToZero(S),
			Prior:      prec, MixingPrior: &mix,
		})

		con, err := InteractionConstraints(cfg.InteractionType, S, N)
		if err != nil {
			return nil, err
		}
		terms = append(terms, Term{
			Name: "time.area", Type: TermInteraction, Group: "time.area",
			N: S * N, Order: cfg.RWOrder,
			InteractionType: cfg.InteractionType,
			Constraint:      con, Prior: prec,
		})
	}

	// Survey effects, when more than one survey contributes.
	if !tables.SurveyTime.Sentinel() {
		terms = append(terms, Term{
			Name: "survey.time", Type: TermIID, Group: "survey.time",
			N: tables.SurveyTime.Len(), Prior: prec,
		})
	}

	// Observation-level nugget for binomial outcomes.
	if cfg.Family == Binomial {
		terms = append(terms, Term{
			Name: "nugget", Type: TermIID, Group: "row", N: nRows, Prior: prec,
		})
	}
	return terms, nil
}

func sortedKeys(m map[string]bool) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}
