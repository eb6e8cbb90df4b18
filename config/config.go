// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the experiment definition: which data to read, how to
// build the rebalancing schedule and how strategies are allocated and compared.
// An embedded default reproduces the semiannual study of ten B3 equities over
// 2018-2019; user files override any subset of it.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-riskparity/backtest"
	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/data"
	"github.com/penny-vault/pv-riskparity/metrics"
	"github.com/penny-vault/pv-riskparity/portfolio"
	"github.com/penny-vault/pv-riskparity/schedule"
	"github.com/penny-vault/pv-riskparity/significance"
	"github.com/penny-vault/pv-riskparity/strategies/strategy"
)

//go:embed default.toml
var defaultExperiment []byte

// Experiment is the complete description of one backtest run
type Experiment struct {
	Data         DataConfig         `toml:"data" json:"data"`
	Schedule     ScheduleConfig     `toml:"schedule" json:"schedule"`
	Allocation   AllocationConfig   `toml:"allocation" json:"allocation"`
	Performance  PerformanceConfig  `toml:"performance" json:"performance"`
	Significance SignificanceConfig `toml:"significance" json:"significance"`
	RiskFree     RiskFreeConfig     `toml:"risk_free" json:"riskFree"`
}

type DataConfig struct {
	Returns    string   `toml:"returns" json:"returns"`
	Kind       string   `toml:"kind" json:"kind" validate:"oneof=log_returns prices"`
	Scale      float64  `toml:"scale" json:"scale" validate:"gte=0"`
	DateLayout string   `toml:"date_layout" json:"dateLayout"`
	Assets     []string `toml:"assets" json:"assets" validate:"dive,required"`
}

type ScheduleConfig struct {
	Calendar          string   `toml:"calendar" json:"calendar"`
	Begin             string   `toml:"begin" json:"begin" validate:"omitempty,date"`
	End               string   `toml:"end" json:"end" validate:"omitempty,date"`
	Anchors           []string `toml:"anchors" json:"anchors" validate:"dive,date"`
	Window            int      `toml:"window" json:"window" validate:"gte=1"`
	Gap               int      `toml:"gap" json:"gap" validate:"gte=1"`
	MinEstimationRows int      `toml:"min_estimation_rows" json:"minEstimationRows" validate:"gte=2"`
	MinTestRows       int      `toml:"min_test_rows" json:"minTestRows" validate:"gte=1"`
	Label             string   `toml:"label" json:"label"`
}

type AllocationConfig struct {
	Strategies     []string `toml:"strategies" json:"strategies" validate:"min=1,unique,dive,required"`
	Lower          float64  `toml:"lower" json:"lower" validate:"gte=0,lte=1"`
	Upper          float64  `toml:"upper" json:"upper" validate:"gte=0,lte=1"`
	MaxIterations  int      `toml:"max_iterations" json:"maxIterations" validate:"gte=0"`
	RiskFreeAnnual float64  `toml:"risk_free_annual" json:"riskFreeAnnual" validate:"gte=0"`
}

type PerformanceConfig struct {
	RiskFreeConvention string    `toml:"risk_free_convention" json:"riskFreeConvention" validate:"convention"`
	TransactionCosts   []float64 `toml:"transaction_costs" json:"transactionCosts" validate:"dive,gte=0"`
}

type SignificanceConfig struct {
	Resamples int    `toml:"resamples" json:"resamples" validate:"gte=10"`
	Seed      uint64 `toml:"seed" json:"seed"`
}

// RiskFreeConfig supplies monthly risk free rates either from a CSV file or inline;
// the file takes precedence when set
type RiskFreeConfig struct {
	File    string             `toml:"file" json:"file"`
	Monthly map[string]float64 `toml:"monthly" json:"monthly" validate:"dive,keys,month,endkeys,gt=-1"`
}

// Default returns the embedded experiment
func Default() (*Experiment, error) {
	exp := &Experiment{}
	if err := decode(bytes.NewReader(defaultExperiment), exp); err != nil {
		log.Error().Err(err).Msg("could not decode embedded experiment")
		return nil, err
	}
	return exp, nil
}

// Load reads the experiment in fn on top of the embedded default and validates it.
// An empty fn returns the validated default.
func Load(fn string) (*Experiment, error) {
	if fn == "" {
		exp, err := Default()
		if err != nil {
			return nil, err
		}
		return exp, exp.Validate()
	}

	fh, err := os.Open(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not open experiment file")
		return nil, err
	}
	defer fh.Close()

	return Parse(fh)
}

// Parse reads an experiment from r on top of the embedded default and validates it
func Parse(r io.Reader) (*Experiment, error) {
	exp, err := Default()
	if err != nil {
		return nil, err
	}

	if err := decode(r, exp); err != nil {
		log.Error().Err(err).Msg("could not decode experiment")
		return nil, fmt.Errorf("%w: %s", ErrInvalidExperiment, err)
	}

	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

func decode(r io.Reader, exp *Experiment) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(exp)
}

// Digest returns a canonical serialization of the experiment used to key cached results
func (e *Experiment) Digest() []byte {
	// map keys are sorted by the encoder so equal experiments serialize identically
	doc, err := json.Marshal(e)
	if err != nil {
		log.Panic().Err(err).Msg("could not serialize experiment")
	}
	return doc
}

// Bounds returns the per-asset weight bounds
func (e *Experiment) Bounds() portfolio.Bounds {
	return portfolio.Bounds{Lower: e.Allocation.Lower, Upper: e.Allocation.Upper}
}

// LoadOptions returns the parser options for the return table
func (e *Experiment) LoadOptions() data.LoadOptions {
	return data.LoadOptions{
		Kind:       data.InputKind(e.Data.Kind),
		Scale:      e.Data.Scale,
		DateLayout: e.Data.DateLayout,
	}
}

// Scheduler builds the rebalancing schedule. Explicit anchors take precedence over
// the calendar.
func (e *Experiment) Scheduler() (*schedule.Scheduler, error) {
	opts := []schedule.Option{
		schedule.WithWindow(e.Schedule.Window),
		schedule.WithGap(e.Schedule.Gap),
		schedule.WithMinObservations(e.Schedule.MinEstimationRows, e.Schedule.MinTestRows),
	}
	if e.Schedule.Label != "" {
		opts = append(opts, schedule.WithLabel(e.Schedule.Label))
	}

	if len(e.Schedule.Anchors) > 0 {
		anchors := make([]time.Time, len(e.Schedule.Anchors))
		for idx, val := range e.Schedule.Anchors {
			dt, err := parseDate(val)
			if err != nil {
				return nil, err
			}
			anchors[idx] = dt
		}
		return schedule.New(anchors, opts...)
	}

	if e.Schedule.Calendar == "" || e.Schedule.Begin == "" || e.Schedule.End == "" {
		return nil, ErrNoAnchors
	}

	begin, err := parseDate(e.Schedule.Begin)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(e.Schedule.End)
	if err != nil {
		return nil, err
	}

	return schedule.FromCalendar(e.Schedule.Calendar, begin, end, opts...)
}

// RiskFreeSeries returns the monthly risk free rates from the configured file or the
// inline table
func (e *Experiment) RiskFreeSeries() (*data.RiskFreeSeries, error) {
	if e.RiskFree.File != "" {
		return data.LoadRiskFreeFile(e.RiskFree.File)
	}
	return data.NewRiskFreeSeries(e.RiskFree.Monthly)
}

// RiskFreeMonths returns the months of the inline risk free table in order
func (e *Experiment) RiskFreeMonths() []string {
	months := make([]string, 0, len(e.RiskFree.Monthly))
	for month := range e.RiskFree.Monthly {
		months = append(months, month)
	}
	sort.Strings(months)
	return months
}

// BacktestOptions assembles the driver options. riskFree is the series returned by
// RiskFreeSeries and recorder may be nil.
func (e *Experiment) BacktestOptions(riskFree *data.RiskFreeSeries, recorder *metrics.Recorder) (backtest.Options, error) {
	sched, err := e.Scheduler()
	if err != nil {
		return backtest.Options{}, err
	}

	assets := make([]string, len(e.Data.Assets))
	copy(assets, e.Data.Assets)
	common.ArrToUpper(assets)

	costs := make([]float64, len(e.Performance.TransactionCosts))
	copy(costs, e.Performance.TransactionCosts)

	return backtest.Options{
		Assets:     assets,
		Scheduler:  sched,
		Strategies: e.Allocation.Strategies,
		StrategyOptions: strategy.Options{
			Bounds:         e.Bounds(),
			MaxIterations:  e.Allocation.MaxIterations,
			RiskFreeAnnual: e.Allocation.RiskFreeAnnual,
			RiskFree:       riskFree,
		},
		Convention:       portfolio.RiskFreeConvention(e.Performance.RiskFreeConvention),
		TransactionCosts: costs,
		Significance: significance.Options{
			Resamples: e.Significance.Resamples,
			Seed:      e.Significance.Seed,
		},
		Metrics: recorder,
	}, nil
}

func parseDate(val string) (time.Time, error) {
	dt, err := time.Parse(common.DateFormat, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExperiment, val)
	}
	return dt, nil
}
