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

// Package mortsmooth estimates under-five child mortality over time and
// (optionally) subnational regions from household-survey birth histories,
// using Bayesian spatio-temporal smoothing.
//
// The pipeline has two halves. The first transforms retrospective birth
// records into a survival-analysis-ready person-month table, segmented by
// age band and calendar period (Expand, Aggregate). The second assembles a
// hierarchical model over those counts (temporal random walks, a BYM2
// spatial convolution, a space-time interaction, survey effects and a
// bias-adjustment offset) and hands the declarative specification to an
// external approximate-Bayesian-inference engine (Assemble, Fit).
//
// The engine itself is out of scope: any implementation of the Solver
// interface may be used. Package inla provides a client for an HTTP
// bridge to an integrated-nested-Laplace engine.
package mortsmooth
