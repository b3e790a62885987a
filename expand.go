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
)

// ExpandConfig configures person-month expansion.
type ExpandConfig struct {
	// AgeBands is the ordered age-band vocabulary, e.g.
	// ["0", "1-11", "12-23", "24-35", "36-47", "48-59"].
	AgeBands []string
	// AgeMonths is the width of each band in months; its length must match
	// AgeBands. The sum of the widths is the maximum age cutoff.
	AgeMonths []int

	Calendar Calendar

	// Epsilon is the nominal width given to a segment whose observation
	// window is empty (a record with start == stop, e.g. death on the exact
	// interview boundary). Zero selects DefaultEpsilon.
	Epsilon float64

	// Compact requests aggregation to CountCells keyed by
	// cluster × age band × period × stratum × survey × region.
	Compact bool
}

// DefaultEpsilon is the default nominal width, in months, of a
// zero-exposure segment. Its exact magnitude is not believed to be
// load-bearing; it only needs to be small relative to one month.
const DefaultEpsilon = 1e-4

// DefaultAgeBands returns the conventional under-five age grouping:
// neonatal month, rest of infancy, then four yearly bands.
func DefaultAgeBands() (bands []string, months []int) {
	return []string{"0", "1-11", "12-23", "24-35", "36-47", "48-59"},
		[]int{1, 11, 12, 12, 12, 12}
}

// Validate checks the expansion configuration.
func (cfg *ExpandConfig) Validate() error {
	if len(cfg.AgeBands) == 0 {
		return ConfigurationError{Option: "AgeBands", Reason: "no age bands configured"}
	}
	if len(cfg.AgeBands) != len(cfg.AgeMonths) {
		return ConfigurationError{Option: "AgeMonths",
			Reason: fmt.Sprintf("%d band widths for %d age bands", len(cfg.AgeMonths), len(cfg.AgeBands))}
	}
	for i, m := range cfg.AgeMonths {
		if m <= 0 {
			return ConfigurationError{Option: "AgeMonths",
				Reason: fmt.Sprintf("band %s has non-positive width %d", cfg.AgeBands[i], m)}
		}
	}
	if cfg.Epsilon < 0 || cfg.Epsilon >= 1 {
		return ConfigurationError{Option: "Epsilon", Reason: "must be in [0, 1) months"}
	}
	return cfg.Calendar.Validate()
}

func (cfg *ExpandConfig) epsilon() float64 {
	if cfg.Epsilon == 0 {
		return DefaultEpsilon
	}
	return cfg.Epsilon
}

// Expand transforms birth records into person-month segments ("survival
// splitting"). For each child the observed exposure interval (birth to
// death for children who died, birth to interview otherwise) is split at
// every integer month boundary up to the maximum age cutoff, giving one
// segment per month of exposure. The death indicator is set only on the
// segment ending at the recorded stop time.
//
// Segments before the first period cutoff are discarded, as is the entire
// trailing period when the Calendar's truncation policy triggers.
func Expand(records []BirthRecord, cfg *ExpandConfig) ([]PersonMonthSegment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cuts := ageCutoffs(cfg.AgeMonths)
	maxCut := cuts[len(cuts)-1]
	cal := &cfg.Calendar

	// Trailing-period truncation depends on the latest year observed
	// anywhere in the data, taken from the (calendar-adjusted) interview
	// dates.
	maxYear := 0
	for i := range records {
		if y := YearOfMonth(cal.Adjust(records[i].InterviewMonth)); y > maxYear {
			maxYear = y
		}
	}
	truncate := cal.TruncateLast(maxYear)
	lastLabel := cal.LastPeriod()

	var segs []PersonMonthSegment
	for i := range records {
		b := &records[i]
		dob := cal.Adjust(b.BirthMonth)
		var stop int
		if b.Died {
			if b.AgeAtDeathMo < 0 {
				return nil, DataShapeError{Column: "age_at_death",
					Reason: fmt.Sprintf("record %s: negative age at death", b.ID)}
			}
			stop = dob + b.AgeAtDeathMo
		} else {
			stop = cal.Adjust(b.InterviewMonth)
		}
		if stop < dob {
			return nil, DataShapeError{Column: "interview",
				Reason: fmt.Sprintf("record %s: observation ends before birth", b.ID)}
		}

		months := stop - dob
		n := months
		if n > maxCut {
			n = maxCut
		}
		for a := 0; a < n; a++ {
			s, ok := b.segment(cal, cuts, cfg.AgeBands, dob, float64(a), float64(a+1))
			if !ok {
				continue
			}
			// The child's death falls in the segment ending at the stop
			// time; deaths past the age window are censored instead.
			s.Died = b.Died && a+1 == months
			if truncate && s.Period == lastLabel {
				continue
			}
			segs = append(segs, s)
		}
		if months == 0 {
			// Zero exposure: nudge the stop forward so a single segment of
			// non-zero nominal width exists.
			s, ok := b.segment(cal, cuts, cfg.AgeBands, dob, 0, cfg.epsilon())
			if !ok {
				continue
			}
			s.Died = b.Died
			if truncate && s.Period == lastLabel {
				continue
			}
			segs = append(segs, s)
		}
	}
	return segs, nil
}

// segment builds the labeled segment [a0, a1) for the child born in
// (adjusted) month dob. ok is false when the segment falls outside the
// configured age or period window.
func (b *BirthRecord) segment(cal *Calendar, cuts []int, bands []string, dob int, a0, a1 float64) (PersonMonthSegment, bool) {
	bin, ok := AgeBin(cuts, int(a0))
	if !ok {
		return PersonMonthSegment{}, false
	}
	period, ok := cal.Period(YearOfMonth(dob + int(a0)))
	if !ok {
		return PersonMonthSegment{}, false
	}
	region := b.Region
	if region == "" {
		region = RegionAll
	}
	return PersonMonthSegment{
		Child:    b.ID,
		AgeStart: a0,
		AgeStop:  a1,
		AgeBand:  bands[bin],
		Period:   period,
		Stratum:  b.Stratum(),
		Cluster:  b.Cluster,
		Region:   region,
		Survey:   b.Survey,
	}, true
}

type cellKey struct {
	cluster, period, region, stratum, ageBand, survey string
}

// Aggregate sums person-month segments into count cells keyed by
// (cluster, age band, period, stratum, survey, region). Every segment
// contributes one person-month of exposure, including the nudged
// zero-width segments. Cells are returned in a fixed sorted order.
func Aggregate(segs []PersonMonthSegment) []CountCell {
	m := make(map[cellKey]*CountCell)
	for i := range segs {
		s := &segs[i]
		k := cellKey{s.Cluster, s.Period, s.Region, s.Stratum, s.AgeBand, s.Survey}
		c, ok := m[k]
		if !ok {
			c = &CountCell{
				Cluster: s.Cluster, Period: s.Period, Region: s.Region,
				Stratum: s.Stratum, AgeBand: s.AgeBand, Survey: s.Survey,
			}
			m[k] = c
		}
		c.Total++
		if s.Died {
			c.Deaths++
		}
	}
	cells := make([]CountCell, 0, len(m))
	for _, c := range m {
		cells = append(cells, *c)
	}
	sort.Slice(cells, func(i, j int) bool {
		a, b := &cells[i], &cells[j]
		switch {
		case a.Region != b.Region:
			return a.Region < b.Region
		case a.Period != b.Period:
			return a.Period < b.Period
		case a.AgeBand != b.AgeBand:
			return a.AgeBand < b.AgeBand
		case a.Stratum != b.Stratum:
			return a.Stratum < b.Stratum
		case a.Cluster != b.Cluster:
			return a.Cluster < b.Cluster
		default:
			return a.Survey < b.Survey
		}
	})
	return cells
}
