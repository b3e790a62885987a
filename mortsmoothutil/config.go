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

package mortsmoothutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/smallarea/mortsmooth"
)

// Config is the TOML configuration surface of the command-line tool. Keys
// match the field names.
type Config struct {
	// Input tables. Births is a birth-record CSV; Counts is a
	// pre-aggregated count CSV. The fit command accepts either.
	Births string `toml:"Births"`
	Counts string `toml:"Counts"`

	// Output receives the expanded count table (expand command) or the
	// fit-result JSON (fit command).
	Output string `toml:"Output"`

	// Adjacency is a labeled CSV matrix or a polygon shapefile; with a
	// shapefile, AdjacencyAttr names the attribute column holding region
	// labels. Empty means a national model.
	Adjacency     string `toml:"Adjacency"`
	AdjacencyAttr string `toml:"AdjacencyAttr"`

	// BiasTable is an optional CSV or XLSX ratio lookup table.
	BiasTable string `toml:"BiasTable"`

	// EngineURL is the base address of the inference bridge.
	EngineURL string `toml:"EngineURL"`

	Family          string `toml:"Family"`
	TimeModel       string `toml:"TimeModel"`
	RWOrder         int    `toml:"RWOrder"`
	PeriodLen       int    `toml:"PeriodLen"`
	InteractionType int    `toml:"InteractionType"`

	YearCutoffs        []int `toml:"YearCutoffs"`
	CalendarOffset     int   `toml:"CalendarOffset"` // months
	MinLastPeriodYears int   `toml:"MinLastPeriodYears"`

	AgeBands  []string `toml:"AgeBands"`
	AgeMonths []int    `toml:"AgeMonths"`
	Epsilon   float64  `toml:"Epsilon"`

	HyperFamily string  `toml:"HyperFamily"`
	PCU         float64 `toml:"PCU"`
	PCAlpha     float64 `toml:"PCAlpha"`
	GammaShape  float64 `toml:"GammaShape"`
	GammaRate   float64 `toml:"GammaRate"`
	PhiU        float64 `toml:"PhiU"`
	PhiAlpha    float64 `toml:"PhiAlpha"`
}

// loadConfig extracts the configuration from viper, expanding environment
// variables in paths.
func loadConfig(v *viper.Viper) (*Config, error) {
	c := &Config{
		Births:             expand(v.GetString("Births")),
		Counts:             expand(v.GetString("Counts")),
		Output:             expand(v.GetString("Output")),
		Adjacency:          expand(v.GetString("Adjacency")),
		AdjacencyAttr:      v.GetString("AdjacencyAttr"),
		BiasTable:          expand(v.GetString("BiasTable")),
		EngineURL:          v.GetString("EngineURL"),
		Family:             v.GetString("Family"),
		TimeModel:          v.GetString("TimeModel"),
		RWOrder:            cast.ToInt(v.Get("RWOrder")),
		PeriodLen:          cast.ToInt(v.Get("PeriodLen")),
		InteractionType:    cast.ToInt(v.Get("InteractionType")),
		YearCutoffs:        cast.ToIntSlice(v.Get("YearCutoffs")),
		CalendarOffset:     cast.ToInt(v.Get("CalendarOffset")),
		MinLastPeriodYears: cast.ToInt(v.Get("MinLastPeriodYears")),
		AgeBands:           cast.ToStringSlice(v.Get("AgeBands")),
		AgeMonths:          cast.ToIntSlice(v.Get("AgeMonths")),
		Epsilon:            cast.ToFloat64(v.Get("Epsilon")),
		HyperFamily:        v.GetString("HyperFamily"),
		PCU:                cast.ToFloat64(v.Get("PCU")),
		PCAlpha:            cast.ToFloat64(v.Get("PCAlpha")),
		GammaShape:         cast.ToFloat64(v.Get("GammaShape")),
		GammaRate:          cast.ToFloat64(v.Get("GammaRate")),
		PhiU:               cast.ToFloat64(v.Get("PhiU")),
		PhiAlpha:           cast.ToFloat64(v.Get("PhiAlpha")),
	}
	if len(c.AgeBands) == 0 {
		c.AgeBands, c.AgeMonths = mortsmooth.DefaultAgeBands()
	}
	return c, nil
}

func expand(s string) string { return os.ExpandEnv(s) }

// calendar builds the calendar from the configured cutoffs.
func (c *Config) calendar() mortsmooth.Calendar {
	return mortsmooth.Calendar{
		YearCutoffs:        c.YearCutoffs,
		Yearly:             c.TimeModel == mortsmooth.TimeYearly,
		OffsetMonths:       c.CalendarOffset,
		MinLastPeriodYears: c.MinLastPeriodYears,
	}
}

// expandConfig builds the person-month expansion configuration.
func (c *Config) expandConfig() *mortsmooth.ExpandConfig {
	return &mortsmooth.ExpandConfig{
		AgeBands:  c.AgeBands,
		AgeMonths: c.AgeMonths,
		Calendar:  c.calendar(),
		Epsilon:   c.Epsilon,
	}
}

// modelConfig builds the model-assembly configuration.
func (c *Config) modelConfig() *mortsmooth.Config {
	return &mortsmooth.Config{
		Family:          mortsmooth.Family(c.Family),
		TimeModel:       c.TimeModel,
		RWOrder:         c.RWOrder,
		Calendar:        c.calendar(),
		PeriodLen:       c.PeriodLen,
		AgeBands:        c.AgeBands,
		AgeMonths:       c.AgeMonths,
		InteractionType: c.InteractionType,
		Hyper: mortsmooth.HyperConfig{
			Family:     c.HyperFamily,
			PCU:        c.PCU,
			PCAlpha:    c.PCAlpha,
			GammaShape: c.GammaShape,
			GammaRate:  c.GammaRate,
			PhiU:       c.PhiU,
			PhiAlpha:   c.PhiAlpha,
		},
	}
}

// loadAdjacency reads the configured adjacency input, dispatching on the
// file extension. An empty path means a national model (nil adjacency).
func (c *Config) loadAdjacency() (*mortsmooth.Adjacency, error) {
	if c.Adjacency == "" {
		return nil, nil
	}
	switch strings.ToLower(filepath.Ext(c.Adjacency)) {
	case ".shp":
		attr := c.AdjacencyAttr
		if attr == "" {
			return nil, fmt.Errorf("mortsmoothutil: AdjacencyAttr must name the region label attribute for shapefile input")
		}
		return mortsmooth.AdjacencyFromShapefile(c.Adjacency, attr)
	default:
		f, err := os.Open(c.Adjacency)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return mortsmooth.ReadAdjacencyCSV(f)
	}
}

// loadBirths reads the configured birth-record table.
func (c *Config) loadBirths() ([]mortsmooth.BirthRecord, error) {
	if c.Births == "" {
		return nil, fmt.Errorf("mortsmoothutil: no Births table configured")
	}
	f, err := os.Open(c.Births)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mortsmooth.ReadBirths(f)
}

// loadCounts returns the aggregated count table, either read directly or
// produced by expanding the birth records.
func (c *Config) loadCounts() ([]mortsmooth.CountCell, error) {
	if c.Counts != "" {
		f, err := os.Open(c.Counts)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return mortsmooth.ReadCounts(f)
	}
	births, err := c.loadBirths()
	if err != nil {
		return nil, err
	}
	segs, err := mortsmooth.Expand(births, c.expandConfig())
	if err != nil {
		return nil, err
	}
	return mortsmooth.Aggregate(segs), nil
}
