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
	"testing"
)

func TestYearOfMonth(t *testing.T) {
	var tests = []struct {
		month, year int
	}{
		{1, 1900},
		{12, 1900},
		{13, 1901},
		{1345, 2012},
		{1392, 2015},
	}
	for _, test := range tests {
		t.Run(fmt.Sprint(test.month), func(t *testing.T) {
			if y := YearOfMonth(test.month); y != test.year {
				t.Errorf("YearOfMonth(%d) = %d, want %d", test.month, y, test.year)
			}
		})
	}
}

func TestAgeBin(t *testing.T) {
	cuts := []int{0, 1, 12, 24, 36, 48, 60}
	var tests = []struct {
		m   int
		bin int
		ok  bool
	}{
		{0, 0, true},
		{1, 1, true},
		{11, 1, true},
		{12, 2, true},
		{59, 5, true},
		{60, 0, false},
		{-1, 0, false},
	}
	for _, test := range tests {
		t.Run(fmt.Sprint(test.m), func(t *testing.T) {
			bin, ok := AgeBin(cuts, test.m)
			if ok != test.ok || bin != test.bin {
				t.Errorf("AgeBin(%d) = (%d, %v), want (%d, %v)", test.m, bin, ok, test.bin, test.ok)
			}
		})
	}
}

func TestPeriod(t *testing.T) {
	cal := Calendar{YearCutoffs: []int{1985, 1990, 1995, 2000, 2005, 2010, 2015, 2020}}
	var tests = []struct {
		year  int
		label string
		ok    bool
	}{
		{1984, "", false},
		{1985, "1985-1989", true},
		{1989, "1985-1989", true},
		{1990, "1990-1994", true},
		{2015, "2015-2019", true},
		{2019, "2015-2019", true},
		// The final period is open-ended upward.
		{2022, "2015-2019", true},
	}
	for _, test := range tests {
		t.Run(fmt.Sprint(test.year), func(t *testing.T) {
			label, ok := cal.Period(test.year)
			if ok != test.ok || label != test.label {
				t.Errorf("Period(%d) = (%q, %v), want (%q, %v)", test.year, label, ok, test.label, test.ok)
			}
		})
	}
}

func TestPeriodYearly(t *testing.T) {
	cal := Calendar{YearCutoffs: []int{2010, 2011, 2012, 2013}, Yearly: true}
	want := []string{"2010", "2011", "2012"}
	labels := cal.PeriodLabels()
	if len(labels) != len(want) {
		t.Fatalf("got %d labels, want %d", len(labels), len(want))
	}
	for i, l := range labels {
		if l != want[i] {
			t.Errorf("label %d = %q, want %q", i, l, want[i])
		}
	}
	if l, ok := cal.Period(2011); !ok || l != "2011" {
		t.Errorf("Period(2011) = (%q, %v), want (\"2011\", true)", l, ok)
	}
}

func TestTruncateLast(t *testing.T) {
	var tests = []struct {
		name    string
		min     int
		maxYear int
		want    bool
	}{
		{"disabled", 0, 2016, false},
		// 2016 < 2015 + 3 - 1 = 2017, so the trailing period goes.
		{"short", 3, 2016, true},
		{"complete", 3, 2017, false},
		{"beyond", 3, 2019, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cal := Calendar{
				YearCutoffs:        []int{2005, 2010, 2015, 2020},
				MinLastPeriodYears: test.min,
			}
			if got := cal.TruncateLast(test.maxYear); got != test.want {
				t.Errorf("TruncateLast(%d) with min %d = %v, want %v", test.maxYear, test.min, got, test.want)
			}
		})
	}
}

func TestCalendarValidate(t *testing.T) {
	var tests = []struct {
		name string
		cuts []int
		ok   bool
	}{
		{"good", []int{2000, 2005, 2010}, true},
		{"single", []int{2000}, false},
		{"unsorted", []int{2005, 2000}, false},
		{"duplicate", []int{2000, 2000, 2005}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cal := Calendar{YearCutoffs: test.cuts}
			err := cal.Validate()
			if (err == nil) != test.ok {
				t.Errorf("Validate() error = %v, want ok = %v", err, test.ok)
			}
			if err != nil {
				if _, isConfig := err.(ConfigurationError); !isConfig {
					t.Errorf("error has type %T, want ConfigurationError", err)
				}
			}
		})
	}
}
