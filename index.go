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

// LabelIndex is a bijection between labels and a dense range of integers
// starting at 1, used as a random-effect grouping key.
type LabelIndex struct {
	labels []string
	ids    map[string]int
}

// NewLabelIndex enumerates labels in the given order. Duplicate labels are
// an error.
func NewLabelIndex(labels []string) (*LabelIndex, error) {
	x := &LabelIndex{
		labels: append([]string(nil), labels...),
		ids:    make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		if _, ok := x.ids[l]; ok {
			return nil, fmt.Errorf("mortsmooth: duplicate index label %q", l)
		}
		x.ids[l] = i + 1
	}
	return x, nil
}

// ID returns the dense integer for label.
func (x *LabelIndex) ID(label string) (int, bool) {
	id, ok := x.ids[label]
	return id, ok
}

// Label returns the label for a dense integer in [1, Len()].
func (x *LabelIndex) Label(id int) (string, bool) {
	if id < 1 || id > len(x.labels) {
		return "", false
	}
	return x.labels[id-1], true
}

// Labels returns all labels in index order.
func (x *LabelIndex) Labels() []string { return x.labels }

// Len returns the number of labels.
func (x *LabelIndex) Len() int { return len(x.labels) }

// ComboIndex is a dense 1-based enumeration of combinations of component
// indices, with the last-listed component varying fastest. A sentinel
// ComboIndex (Len 0) stands in for an unused combination dimension; its ID
// method always returns 0.
type ComboIndex struct {
	name string
	dims []int
}

func newComboIndex(name string, dims ...int) *ComboIndex {
	return &ComboIndex{name: name, dims: dims}
}

func sentinelCombo(name string) *ComboIndex {
	return &ComboIndex{name: name}
}

// Name identifies the combination, e.g. "time.area".
func (x *ComboIndex) Name() string { return x.name }

// Sentinel reports whether this dimension is unused.
func (x *ComboIndex) Sentinel() bool { return len(x.dims) == 0 }

// Len returns the number of combinations (0 for a sentinel).
func (x *ComboIndex) Len() int {
	if x.Sentinel() {
		return 0
	}
	n := 1
	for _, d := range x.dims {
		n *= d
	}
	return n
}

// ID maps 1-based component indices (in declaration order, last varying
// fastest) to the dense combination index. A sentinel index returns 0.
func (x *ComboIndex) ID(components ...int) int {
	if x.Sentinel() {
		return 0
	}
	if len(components) != len(x.dims) {
		panic(fmt.Sprintf("mortsmooth: %s index needs %d components, got %d", x.name, len(x.dims), len(components)))
	}
	id := 0
	for i, c := range components {
		if c < 1 || c > x.dims[i] {
			panic(fmt.Sprintf("mortsmooth: %s index component %d out of range: %d", x.name, i, c))
		}
		id = id*x.dims[i] + c - 1
	}
	return id + 1
}

// Components inverts ID.
func (x *ComboIndex) Components(id int) []int {
	o := make([]int, len(x.dims))
	id--
	for i := len(x.dims) - 1; i >= 0; i-- {
		o[i] = id%x.dims[i] + 1
		id /= x.dims[i]
	}
	return o
}

// IndexTables holds the enumerated index spaces used as random-effect
// grouping keys for one fit. Combination tables are area-major with time
// varying fastest; unused dimensions are sentinels.
type IndexTables struct {
	Region *LabelIndex // region label <-> 1..S
	Survey *LabelIndex // survey identifier <-> 1..K

	// Time indexes the temporal units 1..N. Under yearly modeling the
	// first NYears labels are single years and the remaining NPeriods are
	// the coarse periods; otherwise NYears is zero and every label is a
	// period.
	Time     *LabelIndex
	NYears   int
	NPeriods int

	SurveyTime     *ComboIndex // (survey, time)
	SurveyArea     *ComboIndex // (survey, area)
	TimeArea       *ComboIndex // (area, time): id = (area-1)*N + time
	SurveyTimeArea *ComboIndex // (survey, area, time)
}

// BuildIndexTables enumerates the index spaces for S regions, the given
// temporal units (years first, then periods, when nYears > 0), and K
// surveys. Area-indexed tables degenerate to sentinels when there is no
// geography (S <= 1), and survey-indexed tables when there are fewer than
// two surveys.
func BuildIndexTables(regions, times, surveys []string, nYears int) (*IndexTables, error) {
	if nYears < 0 || nYears > len(times) {
		return nil, ConfigurationError{Option: "TimeIndex",
			Reason: fmt.Sprintf("%d yearly units among %d temporal units", nYears, len(times))}
	}
	region, err := NewLabelIndex(regions)
	if err != nil {
		return nil, err
	}
	time, err := NewLabelIndex(times)
	if err != nil {
		return nil, err
	}
	survey, err := NewLabelIndex(surveys)
	if err != nil {
		return nil, err
	}

	t := &IndexTables{
		Region:   region,
		Survey:   survey,
		Time:     time,
		NYears:   nYears,
		NPeriods: len(times) - nYears,
	}
	S, N, K := region.Len(), time.Len(), survey.Len()

	if K > 1 {
		t.SurveyTime = newComboIndex("survey.time", K, N)
	} else {
		t.SurveyTime = sentinelCombo("survey.time")
	}
	if K > 1 && S > 1 {
		t.SurveyArea = newComboIndex("survey.area", K, S)
		t.SurveyTimeArea = newComboIndex("survey.time.area", K, S, N)
	} else {
		t.SurveyArea = sentinelCombo("survey.area")
		t.SurveyTimeArea = sentinelCombo("survey.time.area")
	}
	if S > 1 {
		t.TimeArea = newComboIndex("time.area", S, N)
	} else {
		t.TimeArea = sentinelCombo("time.area")
	}
	return t, nil
}
