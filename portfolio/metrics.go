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

package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/dataframe"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// RiskFreeConvention selects how monthly risk free rates are annualized for the
// Sharpe ratio
type RiskFreeConvention string

const (
	// Geometric compounds the monthly rates: prod(1 + rf_m)^(12/months) - 1
	Geometric RiskFreeConvention = "geometric"

	// Arithmetic scales the mean monthly rate by 12, matching how returns are annualized
	Arithmetic RiskFreeConvention = "arithmetic"
)

// SortinoUndefined is reported as the Sortino ratio of a period without a single
// month below the risk free rate
const SortinoUndefined = 999.0

// PeriodMetrics are the risk adjusted performance measures of one test window
type PeriodMetrics struct {
	Months           int     `json:"months"`
	AnnualReturn     float64 `json:"annualReturn"`
	AnnualVolatility float64 `json:"annualVolatility"`
	RiskFree         float64 `json:"riskFree"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	SortinoRatio     float64 `json:"sortinoRatio"`
	DownsideMonths   int     `json:"downsideMonths"`
	MaxDrawDown      float64 `json:"maxDrawDown"`
}

// SortinoDefined returns false if the Sortino ratio is the undefined sentinel
func (m *PeriodMetrics) SortinoDefined() bool {
	return m.SortinoRatio != SortinoUndefined
}

// Evaluator scores the realized monthly log-returns of a portfolio
type Evaluator struct {
	Convention RiskFreeConvention
}

// NewEvaluator creates an evaluator; an empty convention means Geometric
func NewEvaluator(convention RiskFreeConvention) *Evaluator {
	if convention == "" {
		convention = Geometric
	}
	return &Evaluator{
		Convention: convention,
	}
}

// PortfolioReturns computes the monthly portfolio return of the test window as the
// weighted sum of asset returns
func PortfolioReturns(test *dataframe.DataFrame[time.Time], w *Weights) ([]float64, error) {
	assets, err := test.Select(w.Assets...)
	if err != nil {
		return nil, err
	}
	return assets.Dot(w.Values)
}

// Evaluate computes the period metrics of returns against the monthly risk free rates
// of the same months
func (e *Evaluator) Evaluate(returns, riskFree []float64) (*PeriodMetrics, error) {
	n := len(returns)
	if n == 0 {
		return nil, ErrNoReturns
	}
	if len(riskFree) != n {
		return nil, fmt.Errorf("%w: %d returns and %d risk free rates", ErrLengthMismatch, n, len(riskFree))
	}

	periods := float64(common.PeriodsPerYear)
	metrics := &PeriodMetrics{
		Months: n,
	}

	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	metrics.AnnualReturn = sum * periods / float64(n)

	if n > 1 {
		metrics.AnnualVolatility = stat.StdDev(returns, nil) * math.Sqrt(periods)
	}

	metrics.RiskFree = AnnualizedRiskFree(riskFree, e.Convention)
	metrics.SharpeRatio = SharpeRatio(metrics.AnnualReturn, metrics.RiskFree, metrics.AnnualVolatility)
	metrics.SortinoRatio, metrics.DownsideMonths = SortinoRatio(returns, riskFree)
	metrics.MaxDrawDown = MaxDrawDown(returns)

	log.Debug().Int("Months", n).Float64("AnnualReturn", metrics.AnnualReturn).Float64("Sharpe", metrics.SharpeRatio).Msg("evaluated period")
	return metrics, nil
}

// AnnualizedRiskFree converts monthly risk free rates into an annual rate
func AnnualizedRiskFree(riskFree []float64, convention RiskFreeConvention) float64 {
	if len(riskFree) == 0 {
		return 0
	}

	if convention == Arithmetic {
		return stat.Mean(riskFree, nil) * common.PeriodsPerYear
	}

	growth := 1.0
	for _, rf := range riskFree {
		growth *= 1 + rf
	}
	return math.Pow(growth, common.PeriodsPerYear/float64(len(riskFree))) - 1
}

// SharpeRatio returns (annualReturn - riskFree) / volatility, or 0 without volatility
func SharpeRatio(annualReturn, riskFree, volatility float64) float64 {
	if volatility <= 0 || math.IsNaN(volatility) {
		return 0
	}
	return (annualReturn - riskFree) / volatility
}

// SortinoRatio divides the annualized mean excess return by the annualized downside
// deviation, the sample standard deviation of the negative excess returns. The ratio is
// SortinoUndefined when fewer than two months fall below the risk free rate or the
// downside deviation is zero. The number of downside months is returned alongside.
func SortinoRatio(returns, riskFree []float64) (float64, int) {
	excessSum := 0.0
	downside := make([]float64, 0, len(returns))
	for idx, r := range returns {
		excess := r - riskFree[idx]
		excessSum += excess
		if excess < 0 {
			downside = append(downside, excess)
		}
	}

	if len(downside) < 2 {
		return SortinoUndefined, len(downside)
	}

	downsideDev := stat.StdDev(downside, nil) * math.Sqrt(common.PeriodsPerYear)
	if downsideDev == 0 || math.IsNaN(downsideDev) {
		return SortinoUndefined, len(downside)
	}

	meanExcess := excessSum / float64(len(returns))
	return meanExcess * common.PeriodsPerYear / downsideDev, len(downside)
}

// MaxDrawDown returns the largest relative decline, min(v_t / peak_t - 1), of the value
// path obtained by compounding log-returns from a starting value of 1. The result is
// zero or negative.
func MaxDrawDown(logReturns []float64) float64 {
	value := 1.0
	peak := 1.0
	maxDD := 0.0
	cum := 0.0
	for _, r := range logReturns {
		cum += r
		value = math.Exp(cum)
		peak = math.Max(peak, value)
		maxDD = math.Min(maxDD, value/peak-1)
	}
	return maxDD
}

// ApplyTransactionCost charges turnover * bps / 10000 against the first month of a
// period and returns the adjusted series
func ApplyTransactionCost(returns []float64, turnover, bps float64) []float64 {
	adjusted := make([]float64, len(returns))
	copy(adjusted, returns)
	if len(adjusted) > 0 {
		adjusted[0] -= turnover * bps / 10_000
	}
	return adjusted
}
