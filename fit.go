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
	"fmt"
	"math"
	"strings"
)

// BiasRow is one row of the bias-adjustment lookup table. Region may be
// empty, in which case the ratio applies to every region in the period.
type BiasRow struct {
	Period string
	Region string
	Ratio  float64
}

// FitResult is the immutable bundle returned by Fit: the fitted
// posterior together with every bookkeeping table needed downstream.
type FitResult struct {
	Spec      *ModelSpec
	Posterior *PosteriorSummary
	Family    Family
	Adjacency *Adjacency
	Data      []DataRow
	Tables    *IndexTables
	Hyper     HyperConfig

	// ReferenceStratum is the stratum level the engine absorbed as the
	// implicit fixed-effect baseline; empty if it could not be
	// determined.
	ReferenceStratum string
}

// Fit runs the full model pipeline: assembles the model, merges the
// bias-adjustment ratios as a fixed log offset, invokes the inference
// engine once, and packages the result. Engine failures are returned
// unchanged, never retried: non-convergence is a data or model problem,
// not a transient fault.
func Fit(ctx context.Context, cells []CountCell, adj *Adjacency, bias []BiasRow, cfg *Config, solver Solver, opts *SolverOptions) (*FitResult, error) {
	if solver == nil {
		return nil, ConfigurationError{Option: "Solver", Reason: "no inference engine supplied"}
	}
	asm, err := Assemble(cells, adj, cfg)
	if err != nil {
		return nil, err
	}
	if err := applyBias(asm.Data, bias); err != nil {
		return nil, err
	}

	post, err := solver.Fit(ctx, asm.Spec, asm.Data, opts)
	if err != nil {
		return nil, err
	}

	return &FitResult{
		Spec:             asm.Spec,
		Posterior:        post,
		Family:           asm.Spec.Family,
		Adjacency:        adj,
		Data:             asm.Data,
		Tables:           asm.Tables,
		Hyper:            asm.Spec.Hyper,
		ReferenceStratum: referenceStratum(asm.Spec.Strata, post),
	}, nil
}

// applyBias merges the bias ratios onto the data rows as a log offset.
// This is an outer join keeping every row: rows with no matching bias
// entry keep ratio 1 (zero offset). A (period, region) entry takes
// precedence over a period-wide one.
func applyBias(rows []DataRow, bias []BiasRow) error {
	if len(bias) == 0 {
		return nil
	}
	type key struct{ period, region string }
	m := make(map[key]float64, len(bias))
	for _, b := range bias {
		if b.Ratio <= 0 || math.IsNaN(b.Ratio) {
			return ConfigurationError{Option: "BiasTable",
				Reason: fmt.Sprintf("non-positive ratio %g for period %q", b.Ratio, b.Period)}
		}
		m[key{b.Period, b.Region}] = b.Ratio
	}
	for i := range rows {
		r := &rows[i]
		ratio, ok := m[key{r.Period, r.Region}]
		if !ok {
			ratio, ok = m[key{r.Period, ""}]
		}
		if !ok {
			continue
		}
		r.LogOffset = math.Log(ratio)
	}
	return nil
}

// referenceStratum determines which stratum level the engine chose as the
// implicit baseline. An explicit report from the engine wins; otherwise
// the baseline is inferred by elimination against the reported
// fixed-effect names. Elimination only succeeds when exactly one level is
// unaccounted for.
func referenceStratum(strata []string, post *PosteriorSummary) string {
	if ref, ok := post.ReferenceLevels["stratum"]; ok {
		return ref
	}
	var missing []string
	for _, s := range strata {
		found := false
		for _, f := range post.FixedEffects {
			if f.Name == s || strings.HasSuffix(f.Name, s) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, s)
		}
	}
	if len(missing) == 1 {
		return missing[0]
	}
	return ""
}
