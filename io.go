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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"
)

// Survey-file parsing is out of scope here: upstream tooling is expected
// to flatten the survey into the plain tables these readers consume.

// birthColumns are the required columns of a birth-record table. Any
// further columns are treated as stratification covariates.
var birthColumns = []string{"id", "dob", "died", "age_at_death", "interview", "survey", "cluster", "region"}

// ReadBirths reads a birth-record table from CSV. Dates are raw month
// indices; died accepts true/false, 1/0, or dead/alive; age_at_death may
// be empty for surviving children. Columns beyond the required set are
// concatenated into the stratum label in header order.
func ReadBirths(r io.Reader) ([]BirthRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, DataShapeError{Reason: fmt.Sprintf("reading birth table header: %v", err)}
	}
	cols, extra, err := columnIndex(header, birthColumns)
	if err != nil {
		return nil, err
	}

	var records []BirthRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, DataShapeError{Reason: fmt.Sprintf("birth table line %d: %v", line, err)}
		}
		b := BirthRecord{
			ID:      row[cols["id"]],
			Survey:  row[cols["survey"]],
			Cluster: row[cols["cluster"]],
			Region:  row[cols["region"]],
		}
		if b.BirthMonth, err = atoi(row[cols["dob"]], "dob", line); err != nil {
			return nil, err
		}
		if b.InterviewMonth, err = atoi(row[cols["interview"]], "interview", line); err != nil {
			return nil, err
		}
		if b.Died, err = parseDied(row[cols["died"]]); err != nil {
			return nil, DataShapeError{Column: "died", Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		if b.Died {
			if b.AgeAtDeathMo, err = atoi(row[cols["age_at_death"]], "age_at_death", line); err != nil {
				return nil, err
			}
		}
		for _, i := range extra {
			b.Strata = append(b.Strata, row[i])
		}
		records = append(records, b)
	}
	return records, nil
}

// countColumns are the required columns of a person-month count table.
var countColumns = []string{"cluster", "period", "region", "stratum", "age_band", "total", "deaths"}

// ReadCounts reads an aggregated count table from CSV. A "survey" column
// is optional; absent, every row is attributed to a single survey.
func ReadCounts(r io.Reader) ([]CountCell, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, DataShapeError{Reason: fmt.Sprintf("reading count table header: %v", err)}
	}
	cols, _, err := columnIndex(header, countColumns)
	if err != nil {
		return nil, err
	}
	surveyCol := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "survey") {
			surveyCol = i
		}
	}

	var cells []CountCell
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, DataShapeError{Reason: fmt.Sprintf("count table line %d: %v", line, err)}
		}
		c := CountCell{
			Cluster: row[cols["cluster"]],
			Period:  row[cols["period"]],
			Region:  row[cols["region"]],
			Stratum: row[cols["stratum"]],
			AgeBand: row[cols["age_band"]],
		}
		if surveyCol >= 0 {
			c.Survey = row[surveyCol]
		}
		if c.Total, err = atoi(row[cols["total"]], "total", line); err != nil {
			return nil, err
		}
		if c.Deaths, err = atoi(row[cols["deaths"]], "deaths", line); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, nil
}

// WriteCounts writes an aggregated count table as CSV.
func WriteCounts(w io.Writer, cells []CountCell) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"cluster", "period", "region", "stratum", "age_band", "survey", "total", "deaths"}); err != nil {
		return err
	}
	for i := range cells {
		c := &cells[i]
		err := cw.Write([]string{
			c.Cluster, c.Period, c.Region, c.Stratum, c.AgeBand, c.Survey,
			strconv.Itoa(c.Total), strconv.Itoa(c.Deaths),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadAdjacencyCSV reads a labeled square 0/1 matrix: the header holds the
// column labels and the first cell of each row the row label. Row and
// column labels must be identical and in the same order; anything else is
// a hard configuration error.
func ReadAdjacencyCSV(r io.Reader) (*Adjacency, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, ConfigurationError{Option: "Adjacency", Reason: fmt.Sprintf("reading matrix: %v", err)}
	}
	if len(rows) < 2 {
		return nil, ConfigurationError{Option: "Adjacency", Reason: "matrix has no rows"}
	}
	colLabels := rows[0][1:]
	if len(rows)-1 != len(colLabels) {
		return nil, ConfigurationError{Option: "Adjacency",
			Reason: fmt.Sprintf("matrix is %d rows by %d columns; must be square", len(rows)-1, len(colLabels))}
	}
	a, err := NewAdjacency(colLabels)
	if err != nil {
		return nil, err
	}
	for i, row := range rows[1:] {
		if row[0] != colLabels[i] {
			return nil, ConfigurationError{Option: "Adjacency",
				Reason: fmt.Sprintf("row label %q does not match column label %q", row[0], colLabels[i])}
		}
		if len(row)-1 != len(colLabels) {
			return nil, ConfigurationError{Option: "Adjacency",
				Reason: fmt.Sprintf("row %q has %d entries for %d columns", row[0], len(row)-1, len(colLabels))}
		}
		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, ConfigurationError{Option: "Adjacency",
					Reason: fmt.Sprintf("row %q column %q: %v", row[0], colLabels[j], err)}
			}
			if v != 0 {
				if err := a.Connect(colLabels[i], colLabels[j]); err != nil {
					return nil, err
				}
			}
		}
	}
	return a, nil
}

// ReadBiasTable reads a bias-adjustment lookup table from a CSV or XLSX
// file. The table must contain a "ratio" column; the key columns are
// "period" (or "years") and, optionally, "region". A missing ratio column
// is a configuration error.
func ReadBiasTable(filename string) ([]BiasRow, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		f, err := xlsx.OpenFile(filename)
		if err != nil {
			return nil, err
		}
		if len(f.Sheets) == 0 {
			return nil, ConfigurationError{Option: "BiasTable", Reason: "spreadsheet has no sheets"}
		}
		for _, r := range f.Sheets[0].Rows {
			var cells []string
			for _, c := range r.Cells {
				cells = append(cells, c.Value)
			}
			rows = append(rows, cells)
		}
	default:
		f, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rows, err = csv.NewReader(f).ReadAll()
		if err != nil {
			return nil, ConfigurationError{Option: "BiasTable", Reason: fmt.Sprintf("reading table: %v", err)}
		}
	}
	return parseBiasRows(rows)
}

func parseBiasRows(rows [][]string) ([]BiasRow, error) {
	if len(rows) == 0 {
		return nil, ConfigurationError{Option: "BiasTable", Reason: "table is empty"}
	}
	ratioCol, periodCol, regionCol := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "ratio":
			ratioCol = i
		case "period", "years":
			periodCol = i
		case "region":
			regionCol = i
		}
	}
	if ratioCol < 0 {
		return nil, ConfigurationError{Option: "BiasTable", Reason: "table has no ratio column"}
	}
	if periodCol < 0 {
		return nil, ConfigurationError{Option: "BiasTable", Reason: "table has no period key column"}
	}
	var bias []BiasRow
	for line, row := range rows[1:] {
		if len(row) <= ratioCol || len(row) <= periodCol {
			continue // trailing blank spreadsheet rows
		}
		ratio, err := strconv.ParseFloat(strings.TrimSpace(row[ratioCol]), 64)
		if err != nil {
			return nil, ConfigurationError{Option: "BiasTable",
				Reason: fmt.Sprintf("line %d: bad ratio: %v", line+2, err)}
		}
		b := BiasRow{Period: strings.TrimSpace(row[periodCol]), Ratio: ratio}
		if regionCol >= 0 && len(row) > regionCol {
			b.Region = strings.TrimSpace(row[regionCol])
		}
		bias = append(bias, b)
	}
	return bias, nil
}

// columnIndex locates the required columns in a header (case-insensitive)
// and returns the positions of any extra columns in header order.
func columnIndex(header, required []string) (map[string]int, []int, error) {
	cols := make(map[string]int, len(required))
	req := make(map[string]bool, len(required))
	for _, c := range required {
		req[c] = true
	}
	var extra []int
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if req[h] {
			cols[h] = i
		} else {
			extra = append(extra, i)
		}
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, nil, DataShapeError{Column: c, Reason: "required column missing"}
		}
	}
	return cols, extra, nil
}

func atoi(s, column string, line int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, DataShapeError{Column: column, Reason: fmt.Sprintf("line %d: %v", line, err)}
	}
	return v, nil
}

func parseDied(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dead", "died":
		return true, nil
	case "alive":
		return false, nil
	}
	return strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
}
