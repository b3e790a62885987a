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

import "context"

// EffectSummary is the marginal posterior summary of one effect.
type EffectSummary struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
	Q025 float64 `json:"q025"`
	Q50  float64 `json:"q50"`
	Q975 float64 `json:"q975"`
}

// PosteriorSummary is the fitted-model output of the inference engine.
type PosteriorSummary struct {
	// FixedEffects holds one summary per explicit fixed-effect level.
	// Categorical baselines are implicit: the engine absorbs one level of
	// each categorical covariate and reports no summary for it.
	FixedEffects []EffectSummary `json:"fixed_effects"`

	// RandomEffects maps term name to per-level summaries in grouping
	// index order.
	RandomEffects map[string][]EffectSummary `json:"random_effects"`

	// Hyper holds the hyperparameter posteriors.
	Hyper []EffectSummary `json:"hyper"`

	// ReferenceLevels, when the engine reports it, maps a categorical
	// covariate name (e.g. "stratum") to the level it absorbed as the
	// baseline. Engines that do not report it leave this nil and the
	// baseline is inferred by elimination.
	ReferenceLevels map[string]string `json:"reference_levels,omitempty"`

	// Raw is the engine output verbatim, for downstream tooling.
	Raw []byte `json:"-"`
}

// SolverOptions carries engine iteration and convergence controls, passed
// through to the engine verbatim.
type SolverOptions struct {
	Verbose bool
	Control map[string]interface{}
}

// Solver fits an assembled model with an external approximate-Bayesian-
// inference engine. Fit blocks until the engine returns; there is no
// cancellation contract beyond what the engine honors through ctx.
// Implementations report engine errors as SolverFailure.
type Solver interface {
	Fit(ctx context.Context, spec *ModelSpec, data []DataRow, opts *SolverOptions) (*PosteriorSummary, error)
}
