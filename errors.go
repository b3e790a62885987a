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

// ConfigurationError reports an invalid pipeline or model configuration,
// for example mismatched adjacency labels or an unsupported random-walk
// order. It is fatal: no fit is attempted.
type ConfigurationError struct {
	Option string // the configuration surface at fault
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("mortsmooth: invalid configuration %s: %s", e.Option, e.Reason)
}

// DataShapeError reports input data that does not satisfy the table
// contract: missing columns, age bands outside the configured vocabulary,
// or an empty table after filtering.
type DataShapeError struct {
	Column string // offending column, if any
	Reason string
}

func (e DataShapeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("mortsmooth: bad input data: %s", e.Reason)
	}
	return fmt.Sprintf("mortsmooth: bad input data in column %s: %s", e.Column, e.Reason)
}

// SolverFailure wraps an error reported by the external inference engine.
// It is propagated to the caller verbatim and never retried: engine
// non-convergence is a data or model problem, not a transient fault.
type SolverFailure struct {
	Engine string // engine identifier, e.g. "inla"
	Err    error
}

func (e SolverFailure) Error() string {
	return fmt.Sprintf("mortsmooth: inference engine %s failed: %v", e.Engine, e.Err)
}

func (e SolverFailure) Unwrap() error { return e.Err }
