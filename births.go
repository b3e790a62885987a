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

import "strings"

// RegionAll is the sentinel region label used when no geography is
// supplied.
const RegionAll = "All"

// BirthRecord is one child from a retrospective birth history. All date
// fields are raw month indices in the source calendar; the configured
// calendar offset is applied during expansion, never beforehand.
type BirthRecord struct {
	ID             string
	BirthMonth     int  // month index of birth
	Died           bool // dead at interview?
	AgeAtDeathMo   int  // age at death in months; meaningful only when Died
	InterviewMonth int  // month index of the interview

	// Strata are the values of the stratification covariates, combined by
	// concatenation into a single stratum label.
	Strata []string

	Survey  string
	Cluster string
	Region  string
}

// Stratum returns the combined stratum label for the record. Records with
// no stratification covariates share the single label "all".
func (b *BirthRecord) Stratum() string {
	if len(b.Strata) == 0 {
		return "all"
	}
	return strings.Join(b.Strata, "-")
}

// PersonMonthSegment is one month of one child's observed survival
// exposure. Segments for a child are contiguous, non-overlapping, ordered
// by age, and together tile [0, min(censoring age, max age cutoff)).
// Died is true only on the segment containing the date of death.
type PersonMonthSegment struct {
	Child    string
	AgeStart float64 // months
	AgeStop  float64 // months; AgeStart < AgeStop always
	Died     bool

	AgeBand string // derived age-band label
	Period  string // derived calendar-period label
	Stratum string
	Cluster string
	Region  string
	Survey  string
}

// CountCell is the aggregation of person-month segments across children
// sharing a grouping key: total exposure in person-months and total
// deaths.
type CountCell struct {
	Cluster string
	Period  string
	Region  string
	Stratum string
	AgeBand string
	Survey  string

	Total  int // person-months of exposure
	Deaths int
}
