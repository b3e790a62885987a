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
	"strconv"
)

// Month indices throughout this package follow the century-month-code
// convention: month 1 is January 1900, month 13 is January 1901, and so on.

// YearOfMonth returns the calendar year containing month index m.
func YearOfMonth(m int) int {
	return 1900 + (m-1)/12
}

// Calendar bins month indices into age intervals and calendar years into
// period labels.
//
// YearCutoffs are ascending period start years; the final entry closes the
// label of the last period, e.g. cutoffs [2010, 2015, 2020] define periods
// "2010-2014" and "2015-2019". The final period is open-ended upward: years
// at or beyond the second-to-last cutoff all receive the last label. When
// Yearly is true each cutoff is a single year and the label is the year
// itself.
//
// OffsetMonths is added to every raw month index before any binning,
// supporting sources recorded in non-Gregorian calendars (e.g. +92 months
// for the Ethiopian calendar).
type Calendar struct {
	YearCutoffs  []int
	Yearly       bool
	OffsetMonths int

	// MinLastPeriodYears controls trailing-period truncation. If positive
	// and the data's maximum observed year falls fewer than this many years
	// into the final period, every row in that period is dropped, not just
	// the incomplete years. Estimating a period from a fragment of it
	// biases the trend, so the whole period goes. Zero disables.
	MinLastPeriodYears int
}

// Validate checks that the cutoff list defines at least one period and is
// strictly increasing.
func (c *Calendar) Validate() error {
	if len(c.YearCutoffs) < 2 {
		return ConfigurationError{Option: "YearCutoffs", Reason: "need at least two cutoffs to define a period"}
	}
	if !sort.IntsAreSorted(c.YearCutoffs) {
		return ConfigurationError{Option: "YearCutoffs", Reason: "cutoffs must be increasing"}
	}
	for i := 1; i < len(c.YearCutoffs); i++ {
		if c.YearCutoffs[i] == c.YearCutoffs[i-1] {
			return ConfigurationError{Option: "YearCutoffs", Reason: fmt.Sprintf("duplicate cutoff %d", c.YearCutoffs[i])}
		}
	}
	return nil
}

// Adjust applies the calendar offset to a raw month index.
func (c *Calendar) Adjust(raw int) int {
	return raw + c.OffsetMonths
}

// Period returns the label of the half-open year interval containing year.
// The second return is false for years before the first cutoff.
func (c *Calendar) Period(year int) (string, bool) {
	cuts := c.YearCutoffs
	if year < cuts[0] {
		return "", false
	}
	i := sort.SearchInts(cuts, year+1) - 1 // greatest i with cuts[i] <= year
	if i > len(cuts)-2 {
		i = len(cuts) - 2 // final period is open-ended upward
	}
	return c.label(i), true
}

// PeriodLabels returns the labels of all periods in cutoff order.
func (c *Calendar) PeriodLabels() []string {
	o := make([]string, len(c.YearCutoffs)-1)
	for i := range o {
		o[i] = c.label(i)
	}
	return o
}

// LastPeriod returns the label of the final (open-ended) period.
func (c *Calendar) LastPeriod() string {
	return c.label(len(c.YearCutoffs) - 2)
}

func (c *Calendar) label(i int) string {
	if c.Yearly {
		return strconv.Itoa(c.YearCutoffs[i])
	}
	return fmt.Sprintf("%d-%d", c.YearCutoffs[i], c.YearCutoffs[i+1]-1)
}

// TruncateLast reports whether the final period must be dropped entirely,
// given the maximum year observed anywhere in the data.
func (c *Calendar) TruncateLast(maxObservedYear int) bool {
	if c.MinLastPeriodYears <= 0 {
		return false
	}
	start := c.YearCutoffs[len(c.YearCutoffs)-2]
	return maxObservedYear < start+c.MinLastPeriodYears-1
}

// AgeBin returns the index i of the half-open interval
// [cutoffs[i], cutoffs[i+1]) containing age month m, where cutoffs is
// ascending. The second return is false when m falls outside
// [cutoffs[0], cutoffs[last]).
func AgeBin(cutoffs []int, m int) (int, bool) {
	if len(cutoffs) < 2 || m < cutoffs[0] || m >= cutoffs[len(cutoffs)-1] {
		return 0, false
	}
	return sort.SearchInts(cutoffs, m+1) - 1, true
}

// ageCutoffs converts per-band month counts into cumulative age cutoffs
// starting at zero, e.g. [1, 11, 12] -> [0, 1, 12, 24].
func ageCutoffs(months []int) []int {
	cuts := make([]int, len(months)+1)
	for i, m := range months {
		cuts[i+1] = cuts[i] + m
	}
	return cuts
}
