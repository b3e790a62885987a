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

	"gonum.org/v1/gonum/mat"
)

// ConstraintSpec is a linear constraint A x = E on a random-effect vector.
// Structured random effects (random walks, conditional autoregressions)
// are only identified up to a null-space direction; these constraints pin
// that direction down.
type ConstraintSpec struct {
	A *mat.Dense
	E []float64
}

// Rows returns the number of constraint rows (0 for nil).
func (c *ConstraintSpec) Rows() int {
	if c == nil || c.A == nil {
		return 0
	}
	r, _ := c.A.Dims()
	return r
}

// stack appends the rows of o below c. Either argument may be nil.
func (c *ConstraintSpec) stack(o *ConstraintSpec) *ConstraintSpec {
	if c.Rows() == 0 {
		return o
	}
	if o.Rows() == 0 {
		return c
	}
	ra, cols := c.A.Dims()
	rb, _ := o.A.Dims()
	a := mat.NewDense(ra+rb, cols, nil)
	a.Slice(0, ra, 0, cols).(*mat.Dense).Copy(c.A)
	a.Slice(ra, ra+rb, 0, cols).(*mat.Dense).Copy(o.A)
	return &ConstraintSpec{A: a, E: append(append([]float64(nil), c.E...), o.E...)}
}

// sumToZero returns a single row of ones over n columns.
func sumToZero(n int) *ConstraintSpec {
	a := mat.NewDense(1, n, nil)
	for j := 0; j < n; j++ {
		a.Set(0, j, 1)
	}
	return &ConstraintSpec{A: a, E: []float64{0}}
}

// Space-time interaction types. Each implies a different structure for the
// region × time interaction effect and a different identifiability
// constraint block.
const (
	// InteractionIID: unstructured i.i.d. per (region, time) cell.
	InteractionIID = 1
	// InteractionTimeInArea: temporal smoothing nested within each region.
	InteractionTimeInArea = 2
	// InteractionAreaInTime: spatial smoothing nested within each time point.
	InteractionAreaInTime = 3
	// InteractionBoth: spatial smoothing per time and temporal smoothing
	// per region.
	InteractionBoth = 4
)

// InteractionConstraints builds the sum-to-zero constraint block for the
// region × time interaction effect of the given type over S regions and N
// temporal units. Columns follow the time.area index order: column
// (area-1)*N + time - 1.
//
// Type 1 needs no constraint (nil). Type 2 adds one zero-sum row per
// region, type 3 one per time point, and type 4 both blocks stacked, in
// that order.
func InteractionConstraints(typeST, S, N int) (*ConstraintSpec, error) {
	switch typeST {
	case InteractionIID:
		return nil, nil
	case InteractionTimeInArea:
		return perAreaRows(S, N), nil
	case InteractionAreaInTime:
		return perTimeRows(S, N), nil
	case InteractionBoth:
		return perAreaRows(S, N).stack(perTimeRows(S, N)), nil
	default:
		return nil, ConfigurationError{Option: "InteractionType",
			Reason: fmt.Sprintf("space-time interaction type %d not in 1..4", typeST)}
	}
}

// perAreaRows has one row per region summing that region's cells to zero.
func perAreaRows(S, N int) *ConstraintSpec {
	a := mat.NewDense(S, S*N, nil)
	for r := 0; r < S; r++ {
		for t := 0; t < N; t++ {
			a.Set(r, r*N+t, 1)
		}
	}
	return &ConstraintSpec{A: a, E: make([]float64, S)}
}

// perTimeRows has one row per time point summing that time's cells to zero.
func perTimeRows(S, N int) *ConstraintSpec {
	a := mat.NewDense(N, S*N, nil)
	for t := 0; t < N; t++ {
		for r := 0; r < S; r++ {
			a.Set(t, r*N+t, 1)
		}
	}
	return &ConstraintSpec{A: a, E: make([]float64, N)}
}

// RWStructure returns the structure (scaled precision) matrix of a random
// walk of the given order over n time points, built as Dᵀ D from the
// order-th difference matrix D. The result is rank-deficient by order, as
// random-walk priors are.
func RWStructure(n, order int) (*mat.SymDense, error) {
	if order != 1 && order != 2 {
		return nil, ConfigurationError{Option: "RWOrder",
			Reason: fmt.Sprintf("random-walk order %d not in {1, 2}", order)}
	}
	if n <= order {
		return nil, ConfigurationError{Option: "RWOrder",
			Reason: fmt.Sprintf("random walk of order %d needs more than %d time points", order, order)}
	}
	d := diffMatrix(n, order)
	var q mat.Dense
	q.Mul(d.T(), d)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, q.At(i, j))
		}
	}
	return sym, nil
}

// diffMatrix builds the (n-order) × n difference matrix of the given order.
func diffMatrix(n, order int) *mat.Dense {
	d := mat.NewDense(n-1, n, nil)
	for i := 0; i < n-1; i++ {
		d.Set(i, i, -1)
		d.Set(i, i+1, 1)
	}
	if order == 1 {
		return d
	}
	d2 := mat.NewDense(n-2, n, nil)
	d2.Mul(diffMatrix(n-1, 1), d)
	return d2
}

// YearlyStructure builds the joint structure matrix and constraints for
// yearly temporal modeling, where the index space holds nYears fine units
// followed by nPeriods coarse units and periodLen is the number of years
// per period. This is a custom structured effect rather than a built-in
// random walk because the joint fine/coarse index space is non-standard:
// both levels carry a random walk of the given order, and one constraint
// row per period sums that period's member years to zero so the coarse
// level alone carries the trend.
func YearlyStructure(nYears, nPeriods, periodLen, order int) (*mat.SymDense, *ConstraintSpec, error) {
	if periodLen <= 0 {
		return nil, nil, ConfigurationError{Option: "PeriodLen", Reason: "period length must be positive"}
	}
	qy, err := RWStructure(nYears, order)
	if err != nil {
		return nil, nil, err
	}
	qp, err := RWStructure(nPeriods, order)
	if err != nil {
		return nil, nil, err
	}
	n := nYears + nPeriods
	q := mat.NewSymDense(n, nil)
	for i := 0; i < nYears; i++ {
		for j := i; j < nYears; j++ {
			q.SetSym(i, j, qy.At(i, j))
		}
	}
	for i := 0; i < nPeriods; i++ {
		for j := i; j < nPeriods; j++ {
			q.SetSym(nYears+i, nYears+j, qp.At(i, j))
		}
	}

	a := mat.NewDense(nPeriods, n, nil)
	for p := 0; p < nPeriods; p++ {
		lo := p * periodLen
		hi := lo + periodLen
		if hi > nYears {
			hi = nYears
		}
		for y := lo; y < hi; y++ {
			a.Set(p, y, 1)
		}
	}
	return q, &ConstraintSpec{A: a, E: make([]float64, nPeriods)}, nil
}
