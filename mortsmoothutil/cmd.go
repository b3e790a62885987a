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

// Package mortsmoothutil wires the mortsmooth pipeline into a
// command-line tool: configuration handling, the expand and fit
// commands, and result output.
package mortsmoothutil

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/smallarea/mortsmooth"
	"github.com/smallarea/mortsmooth/inla"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var log = logrus.StandardLogger()

// Root is the base command.
var Root = &cobra.Command{
	Use:   "mortsmooth",
	Short: "mortsmooth estimates under-five mortality from survey birth histories.",
	Long: `mortsmooth turns retrospective birth-history records into person-month
exposure tables and fits Bayesian spatio-temporal smoothing models to
them through an external inference engine.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile := Cfg.GetString("config")
		if cfgFile == "" {
			return nil
		}
		Cfg.SetConfigFile(os.ExpandEnv(cfgFile))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("problem reading configuration file: %v", err)
		}
		log.WithField("config", Cfg.ConfigFileUsed()).Info("read configuration")
		return nil
	},
}

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Expand birth records into an aggregated person-month count table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(Cfg)
		if err != nil {
			return err
		}
		births, err := c.loadBirths()
		if err != nil {
			return err
		}
		log.WithField("records", len(births)).Info("expanding birth histories")
		segs, err := mortsmooth.Expand(births, c.expandConfig())
		if err != nil {
			return err
		}
		cells := mortsmooth.Aggregate(segs)
		log.WithFields(logrus.Fields{
			"segments": len(segs),
			"cells":    len(cells),
		}).Info("aggregated person-months")
		return withOutput(c.Output, func(w *os.File) error {
			return mortsmooth.WriteCounts(w, cells)
		})
	},
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the spatio-temporal smoothing model via the inference bridge.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(Cfg)
		if err != nil {
			return err
		}
		cells, err := c.loadCounts()
		if err != nil {
			return err
		}
		adj, err := c.loadAdjacency()
		if err != nil {
			return err
		}
		var bias []mortsmooth.BiasRow
		if c.BiasTable != "" {
			if bias, err = mortsmooth.ReadBiasTable(c.BiasTable); err != nil {
				return err
			}
		}
		if c.EngineURL == "" {
			return fmt.Errorf("mortsmoothutil: EngineURL must point at the inference bridge")
		}

		regions := 1
		if adj != nil {
			regions = adj.Len()
		}
		log.WithFields(logrus.Fields{
			"cells":   len(cells),
			"regions": regions,
			"family":  c.Family,
			"time":    c.TimeModel,
		}).Info("fitting model")

		result, err := mortsmooth.Fit(cmd.Context(), cells, adj, bias, c.modelConfig(),
			inla.New(c.EngineURL), &mortsmooth.SolverOptions{Verbose: Cfg.GetBool("verbose")})
		if err != nil {
			return err
		}
		log.WithField("reference_stratum", result.ReferenceStratum).Info("fit complete")
		return withOutput(c.Output, func(w *os.File) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(summarize(result))
		})
	},
}

// configCmd echoes the effective configuration, with flags, file values,
// and defaults merged, as a TOML document usable as a configuration file.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the merged configuration in TOML format.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(Cfg)
		if err != nil {
			return err
		}
		return toml.NewEncoder(os.Stdout).Encode(c)
	},
}

// withOutput runs f against the named file, or standard output when no
// output file is configured.
func withOutput(path string, f func(*os.File) error) error {
	if path == "" {
		return f(os.Stdout)
	}
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// resultSummary is the serializable slice of a fit result: the posterior
// plus the bookkeeping a downstream summarizer needs.
type resultSummary struct {
	Family           string                       `json:"family"`
	Regions          []string                     `json:"regions"`
	Times            []string                     `json:"times"`
	Strata           []string                     `json:"strata"`
	AgeBands         []string                     `json:"age_bands"`
	ReferenceStratum string                       `json:"reference_stratum,omitempty"`
	Posterior        *mortsmooth.PosteriorSummary `json:"posterior"`
}

func summarize(r *mortsmooth.FitResult) *resultSummary {
	return &resultSummary{
		Family:           string(r.Family),
		Regions:          r.Tables.Region.Labels(),
		Times:            r.Tables.Time.Labels(),
		Strata:           r.Spec.Strata,
		AgeBands:         r.Spec.AgeBands,
		ReferenceStratum: r.ReferenceStratum,
		Posterior:        r.Posterior,
	}
}

// options are the command-line flags, bound into Cfg so that flag,
// configuration file, and default all resolve through one surface.
var options = []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}{
	{
		name:       "config",
		usage:      `config specifies the configuration file location.`,
		defaultVal: "",
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
	{
		name:       "verbose",
		usage:      `verbose requests verbose output from the inference engine.`,
		shorthand:  "v",
		defaultVal: false,
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
}

func init() {
	Cfg = viper.New()
	for _, o := range options {
		for _, fs := range o.flagsets {
			switch d := o.defaultVal.(type) {
			case string:
				fs.StringP(o.name, o.shorthand, d, o.usage)
			case bool:
				fs.BoolP(o.name, o.shorthand, d, o.usage)
			default:
				panic(fmt.Sprintf("unsupported flag type %T", o.defaultVal))
			}
			if err := Cfg.BindPFlag(o.name, fs.Lookup(o.name)); err != nil {
				panic(err)
			}
		}
	}
	Root.AddCommand(expandCmd, fitCmd, configCmd)
}
