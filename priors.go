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

import "fmt"

// Hyperprior families.
const (
	PriorPC    = "pc"    // penalized complexity: P(sd > U) = Alpha
	PriorGamma = "gamma" // Gamma on precision: (Shape, Rate)
)

// Prior is the hyperprior on one random-effect precision (or, for the
// BYM2 mixing parameter, on a proportion).
type Prior struct {
	Family string `json:"family"`

	// Penalized-complexity parameters: P(sd > U) = Alpha.
	U     float64 `json:"u,omitempty"`
	Alpha float64 `json:"alpha,omitempty"`

	// Gamma-on-precision parameters.
	Shape float64 `json:"shape,omitempty"`
	Rate  float64 `json:"rate,omitempty"`
}

// PCPrior returns a penalized-complexity prior with P(sd > u) = alpha.
func PCPrior(u, alpha float64) Prior {
	return Prior{Family: PriorPC, U: u, Alpha: alpha}
}

// GammaPrior returns a conjugate Gamma prior on precision.
func GammaPrior(shape, rate float64) Prior {
	return Prior{Family: PriorGamma, Shape: shape, Rate: rate}
}

// HyperConfig selects the hyperprior family and parameters applied to
// every random-effect precision in an assembled model. Zero values select
// the defaults noted on each field.
type HyperConfig struct {
	Family string // PriorPC or PriorGamma; default PriorPC

	PCU     float64 // default 1
	PCAlpha float64 // default 0.01

	GammaShape float64 // default 0.001
	GammaRate  float64 // default 0.001

	// BYM2 mixing parameter phi. The mixing parameter is a proportion,
	// not a precision, so it keeps a PC prior under either family.
	PhiU     float64 // default 0.5
	PhiAlpha float64 // default 2.0 / 3.0
}

func (h HyperConfig) withDefaults() HyperConfig {
	if h.Family == "" {
		h.Family = PriorPC
	}
	if h.PCU == 0 {
		h.PCU = 1
	}
	if h.PCAlpha == 0 {
		h.PCAlpha = 0.01
	}
	if h.GammaShape == 0 {
		h.GammaShape = 0.001
	}
	if h.GammaRate == 0 {
		h.GammaRate = 0.001
	}
	if h.PhiU == 0 {
		h.PhiU = 0.5
	}
	if h.PhiAlpha == 0 {
		h.PhiAlpha = 2.0 / 3.0
	}
	return h
}

// precisionPrior returns the precision hyperprior for one term.
func (h HyperConfig) precisionPrior() (Prior, error) {
	switch h.Family {
	case PriorPC:
		return PCPrior(h.PCU, h.PCAlpha), nil
	case PriorGamma:
		return GammaPrior(h.GammaShape, h.GammaRate), nil
	default:
		return Prior{}, ConfigurationError{Option: "HyperPriors",
			Reason: fmt.Sprintf("unsupported hyperprior family %q", h.Family)}
	}
}

// mixingPrior returns the prior on the BYM2 mixing parameter.
func (h HyperConfig) mixingPrior() Prior {
	return PCPrior(h.PhiU, h.PhiAlpha)
}
