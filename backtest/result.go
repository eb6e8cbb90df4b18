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

package backtest

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/portfolio"
	"github.com/penny-vault/pv-riskparity/schedule"
	"github.com/penny-vault/pv-riskparity/significance"
	"github.com/penny-vault/pv-riskparity/strategies/strategy"
)

// PeriodResult is the realized outcome of one strategy over one test window. Period
// results are appended to the history once the period is finalized and never changed
// afterwards.
type PeriodResult struct {
	Period     string                   `json:"period"`
	Strategy   string                   `json:"strategy"`
	Dates      []time.Time              `json:"dates"`
	Returns    []float64                `json:"returns"`
	RiskFree   []float64                `json:"riskFree"`
	Allocation *strategy.Allocation     `json:"allocation"`
	Metrics    *portfolio.PeriodMetrics `json:"metrics"`
	Turnover   float64                  `json:"turnover"`
}

// Weights returns the weights the period was held with
func (pr *PeriodResult) Weights() *portfolio.Weights {
	return pr.Allocation.Weights
}

// CostScenario consolidates every strategy after charging bps basis points per unit of
// turnover at each rebalance
type CostScenario struct {
	Bps       float64              `json:"bps"`
	Summaries []*portfolio.Summary `json:"summaries"`
}

// Result is everything produced by one backtest run
type Result struct {
	RunID          string                           `json:"runId"`
	Started        time.Time                        `json:"started"`
	Finished       time.Time                        `json:"finished"`
	Assets         []string                         `json:"assets"`
	Strategies     []string                         `json:"strategies"`
	Periods        []*schedule.Period               `json:"periods"`
	History        []*PeriodResult                  `json:"history"`
	Summaries      []*portfolio.Summary             `json:"summaries"`
	CostScenarios  []*CostScenario                  `json:"costScenarios"`
	RiskFreeAnnual float64                          `json:"riskFreeAnnual"`
	Comparisons    []*significance.Comparison       `json:"comparisons"`
	RiskReports    map[string]*portfolio.RiskReport `json:"riskReports"`
	Diagnostics    []common.Diagnostic              `json:"diagnostics"`
}

func newResult(assets, strategies []string) *Result {
	return &Result{
		RunID:         uuid.New().String(),
		Started:       time.Now(),
		Assets:        assets,
		Strategies:    strategies,
		Periods:       make([]*schedule.Period, 0),
		History:       make([]*PeriodResult, 0),
		Summaries:     make([]*portfolio.Summary, 0, len(strategies)),
		CostScenarios: make([]*CostScenario, 0),
		Comparisons:   make([]*significance.Comparison, 0),
		RiskReports:   make(map[string]*portfolio.RiskReport, len(strategies)),
		Diagnostics:   make([]common.Diagnostic, 0),
	}
}

// ParseResult decodes a result previously serialized with JSON
func ParseResult(doc []byte) (*Result, error) {
	res := &Result{}
	if err := json.Unmarshal(doc, res); err != nil {
		return nil, err
	}
	return res, nil
}

// JSON serializes the result
func (r *Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// StrategyHistory returns the period results of strategy in period order
func (r *Result) StrategyHistory(strategy string) []*PeriodResult {
	hist := make([]*PeriodResult, 0, len(r.Periods))
	for _, pr := range r.History {
		if pr.Strategy == strategy {
			hist = append(hist, pr)
		}
	}
	return hist
}

// PooledReturns concatenates the monthly returns of every period of strategy
func (r *Result) PooledReturns(strategy string) []float64 {
	pooled := make([]float64, 0)
	for _, pr := range r.StrategyHistory(strategy) {
		pooled = append(pooled, pr.Returns...)
	}
	return pooled
}

// PooledDates returns the months of the pooled returns
func (r *Result) PooledDates() []time.Time {
	if len(r.Strategies) == 0 {
		return nil
	}

	dates := make([]time.Time, 0)
	for _, pr := range r.StrategyHistory(r.Strategies[0]) {
		dates = append(dates, pr.Dates...)
	}
	return dates
}

// Summary returns the consolidated metrics of strategy, or nil if it was not run
func (r *Result) Summary(strategy string) *portfolio.Summary {
	for _, summary := range r.Summaries {
		if summary.Strategy == strategy {
			return summary
		}
	}
	return nil
}

// DiagnosticsOfKind filters the diagnostics of the run
func (r *Result) DiagnosticsOfKind(kind common.DiagnosticKind) []common.Diagnostic {
	res := make([]common.Diagnostic, 0)
	for _, diag := range r.Diagnostics {
		if diag.Kind == kind {
			res = append(res, diag)
		}
	}
	return res
}
