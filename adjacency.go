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
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Adjacency is a symmetric region neighbor structure with labeled rows
// and columns. Row and column labels are by construction identical; the
// CSV reader rejects input where they are not.
type Adjacency struct {
	labels []string
	ids    map[string]int // 0-based
	w      *sparse.SparseArray
}

// NewAdjacency creates an empty neighbor structure over the given region
// labels.
func NewAdjacency(labels []string) (*Adjacency, error) {
	if len(labels) == 0 {
		return nil, ConfigurationError{Option: "Adjacency", Reason: "adjacency matrix has no region labels"}
	}
	a := &Adjacency{
		labels: append([]string(nil), labels...),
		ids:    make(map[string]int, len(labels)),
		w:      sparse.ZerosSparse(len(labels), len(labels)),
	}
	for i, l := range labels {
		if l == "" {
			return nil, ConfigurationError{Option: "Adjacency", Reason: "adjacency matrix has an empty region label"}
		}
		if _, ok := a.ids[l]; ok {
			return nil, ConfigurationError{Option: "Adjacency",
				Reason: fmt.Sprintf("duplicate region label %q", l)}
		}
		a.ids[l] = i
	}
	return a, nil
}

// Connect marks two regions as neighbors (in both directions).
// Self-pairs are ignored.
func (a *Adjacency) Connect(r1, r2 string) error {
	i, ok := a.ids[r1]
	if !ok {
		return ConfigurationError{Option: "Adjacency", Reason: fmt.Sprintf("unknown region %q", r1)}
	}
	j, ok := a.ids[r2]
	if !ok {
		return ConfigurationError{Option: "Adjacency", Reason: fmt.Sprintf("unknown region %q", r2)}
	}
	if i == j {
		return nil
	}
	a.w.Set(1, i, j)
	a.w.Set(1, j, i)
	return nil
}

// Labels returns the region labels in index order.
func (a *Adjacency) Labels() []string { return a.labels }

// Len returns the number of regions.
func (a *Adjacency) Len() int { return len(a.labels) }

// Neighbor reports whether regions i and j (0-based) are neighbors.
func (a *Adjacency) Neighbor(i, j int) bool {
	return a.w.Get(i, j) != 0
}

// Degree returns the neighbor count of region i.
func (a *Adjacency) Degree(i int) int {
	n := 0
	for j := 0; j < len(a.labels); j++ {
		if a.Neighbor(i, j) {
			n++
		}
	}
	return n
}

// Check verifies that the adjacency covers exactly the regions in the
// index, in any order.
func (a *Adjacency) Check(regions *LabelIndex) error {
	if regions.Len() != a.Len() {
		return ConfigurationError{Option: "Adjacency",
			Reason: fmt.Sprintf("adjacency has %d regions but the data has %d", a.Len(), regions.Len())}
	}
	for _, l := range regions.Labels() {
		if _, ok := a.ids[l]; !ok {
			return ConfigurationError{Option: "Adjacency",
				Reason: fmt.Sprintf("region %q is in the data but not the adjacency matrix", l)}
		}
	}
	return nil
}

// Dense returns the neighbor matrix as a dense 0/1 matrix.
func (a *Adjacency) Dense() *mat.SymDense {
	n := a.Len()
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if a.Neighbor(i, j) {
				m.SetSym(i, j, 1)
			}
		}
	}
	return m
}

// ICAR returns the intrinsic conditional-autoregressive structure matrix
// Q = D - W, where D is the diagonal of neighbor counts.
func (a *Adjacency) ICAR() *mat.SymDense {
	n := a.Len()
	q := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		q.SetSym(i, i, float64(a.Degree(i)))
		for j := i + 1; j < n; j++ {
			if a.Neighbor(i, j) {
				q.SetSym(i, j, -1)
			}
		}
	}
	return q
}

// ScaleFactor returns the BYM2 scaling factor for the ICAR structure: the
// geometric mean of the marginal variances under the generalized inverse
// of Q. Multiplying Q by this factor makes the structured component's
// typical marginal variance one, so its precision hyperparameter is
// interpretable on the same scale as the unstructured component's.
//
// The generalized inverse is computed by symmetric eigendecomposition,
// dropping the null space (one zero eigenvalue per connected component).
func (a *Adjacency) ScaleFactor() (float64, error) {
	q := a.ICAR()
	n := a.Len()
	var eig mat.EigenSym
	if ok := eig.Factorize(q, true); !ok {
		return 0, fmt.Errorf("mortsmooth: eigendecomposition of the ICAR structure failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	tol := 1e-10 * floats.Max(vals)
	diag := make([]float64, n)
	for k, l := range vals {
		if l <= tol {
			continue
		}
		for i := 0; i < n; i++ {
			v := vecs.At(i, k)
			diag[i] += v * v / l
		}
	}
	logs := make([]float64, 0, n)
	for i, d := range diag {
		if d <= 0 {
			return 0, fmt.Errorf("mortsmooth: region %q is isolated; cannot scale the spatial structure", a.labels[i])
		}
		logs = append(logs, math.Log(d))
	}
	return math.Exp(floats.Sum(logs) / float64(len(logs))), nil
}

// regionShape pairs one region's polygon with its label for spatial
// indexing.
type regionShape struct {
	label string
	poly  geom.Polygonal
}

func (r *regionShape) Bounds() *geom.Bounds { return r.poly.Bounds() }

func (r *regionShape) Similar(g geom.Geom, tolerance float64) bool {
	return r.poly.Similar(g, tolerance)
}

func (r *regionShape) Transform(t proj.Transformer) (geom.Geom, error) {
	return r.poly.Transform(t)
}

func (r *regionShape) Len() int { return r.poly.Len() }

func (r *regionShape) Points() func() geom.Point { return r.poly.Points() }

// AdjacencyFromShapefile derives a region adjacency matrix from polygon
// boundaries: two regions are neighbors if their polygons share a border.
// Region labels are read from the named attribute column. Administrative
// boundary files encode shared borders as shared vertex chains, so
// sharing at least two vertices (or overlapping with positive area, for
// sloppier files) counts as a border.
func AdjacencyFromShapefile(filename, attr string) (*Adjacency, error) {
	d, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	var shapes []*regionShape
	var labels []string
	for {
		g, fields, more := d.DecodeRowFields(attr)
		if !more {
			break
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("mortsmooth: shapefile %s contains non-polygonal geometry %T", filename, g)
		}
		label := fields[attr]
		if label == "" {
			return nil, ConfigurationError{Option: "Adjacency",
				Reason: fmt.Sprintf("shapefile attribute %q is empty for a region", attr)}
		}
		shapes = append(shapes, &regionShape{label: label, poly: p})
		labels = append(labels, label)
	}
	if err := d.Error(); err != nil {
		return nil, err
	}

	a, err := NewAdjacency(labels)
	if err != nil {
		return nil, err
	}
	tree := rtree.NewTree(25, 50)
	for _, s := range shapes {
		tree.Insert(s)
	}
	for _, s := range shapes {
		for _, c := range tree.SearchIntersect(s.Bounds()) {
			o := c.(*regionShape)
			if o.label == s.label {
				continue
			}
			if sharesBorder(s.poly, o.poly) {
				if err := a.Connect(s.label, o.label); err != nil {
					return nil, err
				}
			}
		}
	}
	return a, nil
}

// sharesBorder reports whether two polygons share at least two vertices
// or overlap with positive area.
func sharesBorder(p1, p2 geom.Polygonal) bool {
	verts := make(map[geom.Point]struct{})
	for _, poly := range p1.Polygons() {
		for _, ring := range poly {
			for _, pt := range ring {
				verts[pt] = struct{}{}
			}
		}
	}
	shared := 0
	for _, poly := range p2.Polygons() {
		for _, ring := range poly {
			for _, pt := range ring {
				if _, ok := verts[pt]; ok {
					shared++
					if shared >= 2 {
						return true
					}
				}
			}
		}
	}
	return p1.Intersection(p2).Area() > 0
}
