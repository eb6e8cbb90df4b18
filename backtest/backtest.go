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

// Package backtest runs the out-of-sample comparison of allocation strategies. Every
// rebalancing period is processed to completion before the next one starts:
//
//	LOAD_WINDOWS -> ESTIMATE -> ALLOCATE -> EVALUATE -> RECORD_TURNOVER -> ADVANCE
//
// and once all periods are done the run moves to CONSOLIDATE.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/data"
	"github.com/penny-vault/pv-riskparity/dataframe"
	"github.com/penny-vault/pv-riskparity/estimate"
	"github.com/penny-vault/pv-riskparity/metrics"
	"github.com/penny-vault/pv-riskparity/observability/opentelemetry"
	"github.com/penny-vault/pv-riskparity/portfolio"
	"github.com/penny-vault/pv-riskparity/schedule"
	"github.com/penny-vault/pv-riskparity/significance"
	"github.com/penny-vault/pv-riskparity/strategies"
	"github.com/penny-vault/pv-riskparity/strategies/erc"
	"github.com/penny-vault/pv-riskparity/strategies/ew"
	"github.com/penny-vault/pv-riskparity/strategies/mv"
	"github.com/penny-vault/pv-riskparity/strategies/strategy"
)

// State of the per-period state machine
type State string

const (
	StateLoadWindows    State = "LOAD_WINDOWS"
	StateEstimate       State = "ESTIMATE"
	StateAllocate       State = "ALLOCATE"
	StateEvaluate       State = "EVALUATE"
	StateRecordTurnover State = "RECORD_TURNOVER"
	StateAdvance        State = "ADVANCE"
	StateConsolidate    State = "CONSOLIDATE"

	// stateDone ends the processing of one period
	stateDone State = ""
)

var (
	DefaultStrategies       = []string{mv.Shortcode, ew.Shortcode, erc.Shortcode}
	DefaultTransactionCosts = []float64{0, 5, 10, 20}
	DefaultComparisons      = [][2]string{
		{mv.Shortcode, ew.Shortcode},
		{mv.Shortcode, erc.Shortcode},
		{ew.Shortcode, erc.Shortcode},
	}
)

// Options configure a Driver
type Options struct {
	// Assets to allocate across; empty uses every column of the return table
	Assets []string

	Scheduler *schedule.Scheduler

	// Strategies are shortcodes of registered strategies; empty runs DefaultStrategies
	Strategies      []string
	StrategyOptions strategy.Options

	Convention portfolio.RiskFreeConvention

	// TransactionCosts in basis points; nil uses DefaultTransactionCosts
	TransactionCosts []float64

	// Comparisons are pairs of strategies whose Sharpe ratios are tested; nil uses the
	// DefaultComparisons between strategies that are run
	Comparisons  [][2]string
	Significance significance.Options

	// Metrics may be nil
	Metrics *metrics.Recorder
}

// Driver owns the sequence of periods and the accumulated history of a run
type Driver struct {
	opts      Options
	evaluator *portfolio.Evaluator
}

// New validates opts and fills in defaults
func New(opts Options) (*Driver, error) {
	if opts.Scheduler == nil {
		return nil, ErrNoScheduler
	}

	if len(opts.Strategies) == 0 {
		opts.Strategies = DefaultStrategies
	}

	seen := make(map[string]bool, len(opts.Strategies))
	for _, code := range opts.Strategies {
		if seen[code] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStrategy, code)
		}
		seen[code] = true
	}

	// fail early on unknown shortcodes
	if _, err := strategies.Build(opts.StrategyOptions, opts.Strategies...); err != nil {
		return nil, err
	}

	if opts.Comparisons == nil {
		opts.Comparisons = make([][2]string, 0, len(DefaultComparisons))
		for _, pair := range DefaultComparisons {
			if seen[pair[0]] && seen[pair[1]] {
				opts.Comparisons = append(opts.Comparisons, pair)
			}
		}
	}
	for _, pair := range opts.Comparisons {
		if !seen[pair[0]] || !seen[pair[1]] {
			return nil, fmt.Errorf("%w: %s vs %s", ErrUnknownComparison, pair[0], pair[1])
		}
	}

	if opts.TransactionCosts == nil {
		opts.TransactionCosts = DefaultTransactionCosts
	}
	for _, bps := range opts.TransactionCosts {
		if bps < 0 || math.IsNaN(bps) {
			return nil, fmt.Errorf("%w: %g bps", ErrInvalidCost, bps)
		}
	}

	if opts.Significance.Resamples == 0 {
		opts.Significance = significance.DefaultOptions()
	}

	return &Driver{
		opts:      opts,
		evaluator: portfolio.NewEvaluator(opts.Convention),
	}, nil
}

// periodRun is the working state of one period as it moves through the state machine
type periodRun struct {
	period      *schedule.Period
	estimation  *dataframe.DataFrame[time.Time]
	test        *dataframe.DataFrame[time.Time]
	riskFree    []float64
	params      *estimate.Params
	allocations []*strategy.Allocation
	results     []*PeriodResult
}

// Run backtests the configured strategies over returns. Periods without enough data
// are skipped with a diagnostic; an empty table, missing assets or a risk free series
// that does not cover a test month are fatal.
func (d *Driver) Run(ctx context.Context, returns *dataframe.DataFrame[time.Time], riskFree *data.RiskFreeSeries) (*Result, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "backtest.Run")
	defer span.End()

	table, err := d.selectAssets(returns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid return table")
		return nil, err
	}

	if riskFree == nil || riskFree.Len() == 0 {
		err := fmt.Errorf("%w: series is empty", data.ErrRiskFreeMissing)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no risk free series")
		return nil, err
	}

	stratOpts := d.opts.StrategyOptions
	stratOpts.RiskFree = riskFree
	strats, err := strategies.Build(stratOpts, d.opts.Strategies...)
	if err != nil {
		return nil, err
	}

	res := newResult(table.ColNames, d.opts.Strategies)
	span.SetAttributes(attribute.String("riskparity.run_id", res.RunID))

	subLog := log.With().Str("RunID", res.RunID).Logger()
	subLog.Info().Int("NumAssets", table.ColCount()).Int("NumMonths", table.Len()).Strs("Strategies", d.opts.Strategies).Msg("starting backtest")

	planned, skipped := d.opts.Scheduler.Plan(table)
	for _, diag := range skipped {
		d.record(res, diag)
		d.opts.Metrics.PeriodSkipped()
	}

	prev := make(map[string]*portfolio.Weights, len(strats))
	for _, period := range planned {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := d.runPeriod(ctx, res, period, table, riskFree, strats, prev); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "period failed")
			subLog.Error().Err(err).Str("Period", period.Name).Msg("backtest failed")
			return nil, err
		}
	}

	subLog.Debug().Str("State", string(StateConsolidate)).Msg("consolidating backtest")
	if err := d.consolidate(res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "consolidation failed")
		return nil, err
	}

	res.Finished = time.Now()
	d.opts.Metrics.Run(res.Finished.Sub(res.Started))
	subLog.Info().Int("NumPeriods", len(res.Periods)).Int("NumDiagnostics", len(res.Diagnostics)).
		Dur("Duration", res.Finished.Sub(res.Started)).Msg("backtest finished")

	return res, nil
}

// selectAssets checks that the table is usable and restricts it to the configured assets
func (d *Driver) selectAssets(returns *dataframe.DataFrame[time.Time]) (*dataframe.DataFrame[time.Time], error) {
	if returns == nil || returns.Len() == 0 || returns.ColCount() == 0 {
		return nil, ErrEmptyReturns
	}

	if len(d.opts.Assets) == 0 {
		return returns, nil
	}

	missing := make([]string, 0)
	for _, asset := range d.opts.Assets {
		if returns.ColIndex(asset) < 0 {
			missing = append(missing, asset)
		}
	}
	if len(missing) > 0 {
		log.Error().Strs("Missing", missing).Strs("Available", returns.ColNames).Msg("configured assets not found in return table")
		return nil, fmt.Errorf("%w: %v", ErrMissingAssets, missing)
	}

	return returns.Select(d.opts.Assets...)
}

// record adds a diagnostic to the result
func (d *Driver) record(res *Result, diag common.Diagnostic) {
	res.Diagnostics = append(res.Diagnostics, diag)
	d.opts.Metrics.Diagnostic(string(diag.Kind))
}

func (d *Driver) runPeriod(ctx context.Context, res *Result, period *schedule.Period, table *dataframe.DataFrame[time.Time],
	riskFree *data.RiskFreeSeries, strats []strategy.Strategy, prev map[string]*portfolio.Weights) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "backtest.Period")
	defer span.End()

	run := &periodRun{
		period: period,
	}

	var err error
	state := StateLoadWindows
	for state != stateDone {
		span.AddEvent(string(state))
		from := state

		switch state {
		case StateLoadWindows:
			state, err = d.loadWindows(run, res, table, riskFree)
			if err == nil && state != stateDone {
				span.SetAttributes(opentelemetry.PeriodAttributes(res.RunID, period.Name, run.estimation.Len(), run.test.Len())...)
			}
		case StateEstimate:
			state, err = d.estimate(run, res)
		case StateAllocate:
			state, err = d.allocate(ctx, run, res, strats)
		case StateEvaluate:
			state, err = d.evaluate(run)
		case StateRecordTurnover:
			state = recordTurnover(run, prev)
		case StateAdvance:
			state = d.advance(run, res)
		default:
			err = fmt.Errorf("unexpected state %s", state)
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(from))
			return fmt.Errorf("%s: %w", period.Name, err)
		}

		log.Debug().Str("Period", period.Name).Str("From", string(from)).Str("To", string(state)).Msg("period transition")
	}

	return nil
}

// loadWindows slices the estimation and test windows and the risk free rates of the
// test months
func (d *Driver) loadWindows(run *periodRun, res *Result, table *dataframe.DataFrame[time.Time], riskFree *data.RiskFreeSeries) (State, error) {
	run.estimation = run.period.EstimationSlice(table)
	run.test = run.period.TestSlice(table)

	for _, window := range []*dataframe.DataFrame[time.Time]{run.estimation, run.test} {
		if col, ok := nonFiniteColumn(window); ok {
			d.record(res, common.NewDiagnostic(common.DataInsufficiency, run.period.Name, "",
				"%s has missing values between %s and %s", col,
				window.Start().Format(common.DateFormat), window.End().Format(common.DateFormat)))
			d.opts.Metrics.PeriodSkipped()
			return stateDone, nil
		}
	}

	rates, err := riskFree.Rates(run.test.Index)
	if err != nil {
		log.Error().Err(err).Str("Period", run.period.Name).Msg("risk free series does not cover test window")
		return stateDone, err
	}
	run.riskFree = rates

	return StateEstimate, nil
}

func (d *Driver) estimate(run *periodRun, res *Result) (State, error) {
	params, diags, err := estimate.Estimate(run.estimation)
	if err != nil {
		return stateDone, err
	}

	for _, diag := range diags {
		diag.Period = run.period.Name
		d.record(res, diag)
	}

	run.params = params
	return StateAllocate, nil
}

// allocate runs every strategy concurrently on the same parameters
func (d *Driver) allocate(ctx context.Context, run *periodRun, res *Result, strats []strategy.Strategy) (State, error) {
	allocations := make([]*strategy.Allocation, len(strats))

	g, gctx := errgroup.WithContext(ctx)
	for idx, strat := range strats {
		idx, strat := idx, strat
		g.Go(func() error {
			start := time.Now()
			alloc, err := strat.Allocate(gctx, run.params)
			if err != nil {
				return fmt.Errorf("%s: %w", strat.Name(), err)
			}
			for _, val := range alloc.Weights.Values {
				if math.IsNaN(val) || math.IsInf(val, 0) {
					return fmt.Errorf("%w: %s", ErrNonFiniteAllocation, strat.Name())
				}
			}
			d.opts.Metrics.Allocation(strat.Name(), time.Since(start), alloc.Fallback != "")
			allocations[idx] = alloc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stateDone, err
	}

	// diagnostics are collected after the fact so their order does not depend on
	// scheduling
	for _, alloc := range allocations {
		for idx := range alloc.Diagnostics {
			alloc.Diagnostics[idx].Period = run.period.Name
			d.record(res, alloc.Diagnostics[idx])
		}
	}

	run.allocations = allocations
	return StateEvaluate, nil
}

// evaluate applies each allocation to the realized returns of the test window
func (d *Driver) evaluate(run *periodRun) (State, error) {
	run.results = make([]*PeriodResult, len(run.allocations))
	for idx, alloc := range run.allocations {
		returns, err := portfolio.PortfolioReturns(run.test, alloc.Weights)
		if err != nil {
			return stateDone, err
		}

		periodMetrics, err := d.evaluator.Evaluate(returns, run.riskFree)
		if err != nil {
			return stateDone, err
		}

		run.results[idx] = &PeriodResult{
			Period:     run.period.Name,
			Strategy:   alloc.Strategy,
			Dates:      run.test.Index,
			Returns:    returns,
			RiskFree:   run.riskFree,
			Allocation: alloc,
			Metrics:    periodMetrics,
		}
	}
	return StateRecordTurnover, nil
}

// recordTurnover compares each allocation with the one of the preceding period
func recordTurnover(run *periodRun, prev map[string]*portfolio.Weights) State {
	for _, pr := range run.results {
		pr.Turnover = portfolio.Turnover(prev[pr.Strategy], pr.Weights())
		prev[pr.Strategy] = pr.Weights()
	}
	return StateAdvance
}

// advance finalizes the period by appending it to the history
func (d *Driver) advance(run *periodRun, res *Result) State {
	res.Periods = append(res.Periods, run.period)
	res.History = append(res.History, run.results...)
	for _, pr := range run.results {
		if pr.Allocation.RiskContributions != nil {
			res.RiskReports[pr.Strategy] = pr.Allocation.RiskContributions
		}
		log.Info().Str("Period", run.period.Name).Str("Strategy", pr.Strategy).Float64("AnnualReturn", pr.Metrics.AnnualReturn).
			Float64("Sharpe", pr.Metrics.SharpeRatio).Float64("Turnover", pr.Turnover).Msg("period complete")
	}
	d.opts.Metrics.PeriodProcessed()
	return stateDone
}

// consolidate summarizes every strategy, evaluates the transaction cost scenarios and
// runs the significance tests on the pooled returns
func (d *Driver) consolidate(res *Result) error {
	for _, code := range res.Strategies {
		hist := res.StrategyHistory(code)
		periodMetrics := make([]*portfolio.PeriodMetrics, len(hist))
		turnover := make([]float64, len(hist))
		for idx, pr := range hist {
			periodMetrics[idx] = pr.Metrics
			turnover[idx] = pr.Turnover
		}

		summary := portfolio.Consolidate(code, periodMetrics, turnover)
		res.Summaries = append(res.Summaries, summary)
		d.opts.Metrics.Summary(code, summary.SharpeRatio, summary.MeanTurnover)
	}

	for _, bps := range d.opts.TransactionCosts {
		scenario := &CostScenario{
			Bps:       bps,
			Summaries: make([]*portfolio.Summary, 0, len(res.Strategies)),
		}

		for _, code := range res.Strategies {
			hist := res.StrategyHistory(code)
			periodMetrics := make([]*portfolio.PeriodMetrics, len(hist))
			turnover := make([]float64, len(hist))
			for idx, pr := range hist {
				adjusted := portfolio.ApplyTransactionCost(pr.Returns, pr.Turnover, bps)
				m, err := d.evaluator.Evaluate(adjusted, pr.RiskFree)
				if err != nil {
					return err
				}
				periodMetrics[idx] = m
				turnover[idx] = pr.Turnover
			}
			scenario.Summaries = append(scenario.Summaries, portfolio.Consolidate(code, periodMetrics, turnover))
		}

		res.CostScenarios = append(res.CostScenarios, scenario)
	}

	res.RiskFreeAnnual = d.opts.StrategyOptions.RiskFreeAnnual

	for _, pair := range d.opts.Comparisons {
		cmp, err := significance.Compare(pair[0], res.PooledReturns(pair[0]), pair[1], res.PooledReturns(pair[1]), res.RiskFreeAnnual, d.opts.Significance)
		if err != nil {
			d.record(res, common.NewDiagnostic(common.DataInsufficiency, "", "",
				"could not compare %s and %s: %s", pair[0], pair[1], err.Error()))
			continue
		}
		res.Comparisons = append(res.Comparisons, cmp)
	}

	return nil
}

// nonFiniteColumn returns the name of the first column of df containing NaN or Inf
func nonFiniteColumn(df *dataframe.DataFrame[time.Time]) (string, bool) {
	for colIdx, col := range df.Vals {
		for _, val := range col {
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return df.ColNames[colIdx], true
			}
		}
	}
	return "", false
}
