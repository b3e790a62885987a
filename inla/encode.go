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

package inla

import (
	"gonum.org/v1/gonum/mat"

	"github.com/smallarea/mortsmooth"
)

// fitRequest is the wire form of one fit call. Matrices are row-major
// nested arrays; the bridge reassembles them.
type fitRequest struct {
	Family   string                 `json:"family"`
	AgeBands []string               `json:"age_bands"`
	Strata   []string               `json:"strata"`
	Terms    []termSpec             `json:"terms"`
	Graph    [][]float64            `json:"graph,omitempty"` // adjacency matrix
	Regions  []string               `json:"regions,omitempty"`
	Data     []dataRow              `json:"data"`
	Verbose  bool                   `json:"verbose,omitempty"`
	Control  map[string]interface{} `json:"control,omitempty"`
}

type termSpec struct {
	Name            string            `json:"name"`
	Type            string            `json:"type"`
	Group           string            `json:"group"`
	N               int               `json:"n"`
	Order           int               `json:"order,omitempty"`
	Structure       [][]float64       `json:"structure,omitempty"`
	Scale           float64           `json:"scale,omitempty"`
	InteractionType int               `json:"interaction_type,omitempty"`
	ConstraintA     [][]float64       `json:"constraint_a,omitempty"`
	ConstraintE     []float64         `json:"constraint_e,omitempty"`
	Prior           mortsmooth.Prior  `json:"prior"`
	MixingPrior     *mortsmooth.Prior `json:"mixing_prior,omitempty"`
}

// dataRow is the wire form of one augmented data row. Deaths is null for
// the synthetic prediction rows so the engine treats the outcome as
// missing and contributes nothing to the likelihood.
type dataRow struct {
	Cluster string `json:"cluster,omitempty"`
	Period  string `json:"period"`
	Region  string `json:"region"`
	Stratum string `json:"stratum"`
	AgeBand string `json:"age_band"`
	Survey  string `json:"survey,omitempty"`

	Total  int  `json:"total"`
	Deaths *int `json:"deaths"`

	TimeID           int `json:"time_id"`
	RegionID         int `json:"region_id"`
	TimeAreaID       int `json:"time_area_id,omitempty"`
	SurveyTimeID     int `json:"survey_time_id,omitempty"`
	SurveyAreaID     int `json:"survey_area_id,omitempty"`
	SurveyTimeAreaID int `json:"survey_time_area_id,omitempty"`
	RowID            int `json:"row_id"`

	LogOffset float64 `json:"log_offset,omitempty"`
}

func encodeRequest(spec *mortsmooth.ModelSpec, data []mortsmooth.DataRow, opts *mortsmooth.SolverOptions) *fitRequest {
	r := &fitRequest{
		Family:   string(spec.Family),
		AgeBands: spec.AgeBands,
		Strata:   spec.Strata,
	}
	if spec.Adjacency != nil {
		r.Graph = denseRows(spec.Adjacency.Dense())
		r.Regions = spec.Adjacency.Labels()
	}
	for i := range spec.Terms {
		r.Terms = append(r.Terms, encodeTerm(&spec.Terms[i]))
	}
	for i := range data {
		r.Data = append(r.Data, encodeRow(&data[i]))
	}
	if opts != nil {
		r.Verbose = opts.Verbose
		r.Control = opts.Control
	}
	return r
}

func encodeTerm(t *mortsmooth.Term) termSpec {
	o := termSpec{
		Name:            t.Name,
		Type:            t.Type,
		Group:           t.Group,
		N:               t.N,
		Order:           t.Order,
		Scale:           t.Scale,
		InteractionType: t.InteractionType,
		Prior:           t.Prior,
		MixingPrior:     t.MixingPrior,
	}
	if t.Structure != nil {
		o.Structure = denseRows(t.Structure)
	}
	if t.Constraint.Rows() > 0 {
		o.ConstraintA = denseRows(t.Constraint.A)
		o.ConstraintE = t.Constraint.E
	}
	return o
}

func encodeRow(d *mortsmooth.DataRow) dataRow {
	o := dataRow{
		Cluster: d.Cluster, Period: d.Period, Region: d.Region,
		Stratum: d.Stratum, AgeBand: d.AgeBand, Survey: d.Survey,
		Total:            d.Total,
		TimeID:           d.TimeID,
		RegionID:         d.RegionID,
		TimeAreaID:       d.TimeAreaID,
		SurveyTimeID:     d.SurveyTimeID,
		SurveyAreaID:     d.SurveyAreaID,
		SurveyTimeAreaID: d.SurveyTimeAreaID,
		RowID:            d.RowID,
		LogOffset:        d.LogOffset,
	}
	if !d.Missing {
		deaths := d.Deaths
		o.Deaths = &deaths
	}
	return o
}

func denseRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	o := make([][]float64, r)
	for i := 0; i < r; i++ {
		o[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			o[i][j] = m.At(i, j)
		}
	}
	return o
}
