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
	"math"

	"gonum.org/v1/gonum/stat"
)

// sortinoCeiling excludes sentinel and near-sentinel values from the averaged Sortino
const sortinoCeiling = 100.0

// Summary consolidates the period metrics of one strategy over a whole backtest
type Summary struct {
	Strategy         string  `json:"strategy"`
	Periods          int     `json:"periods"`
	Months           int     `json:"months"`
	AnnualReturn     float64 `json:"annualReturn"`
	AnnualVolatility float64 `json:"annualVolatility"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	SortinoRatio     float64 `json:"sortinoRatio"`
	MaxDrawDown      float64 `json:"maxDrawDown"`
	MeanTurnover     float64 `json:"meanTurnover"`
}

// Consolidate aggregates per-period metrics. Annual return and Sharpe are averaged
// weighted by the months of each period and the volatility is the square root of the
// month weighted mean variance. The Sortino ratio is the month weighted mean over the
// periods where it is below 100 (SortinoUndefined if there are none) and the drawdown
// is the worst of all periods. turnover holds one value per period.
func Consolidate(strategy string, metrics []*PeriodMetrics, turnover []float64) *Summary {
	summary := &Summary{
		Strategy: strategy,
		Periods:  len(metrics),
	}

	if len(metrics) == 0 {
		summary.SortinoRatio = SortinoUndefined
		return summary
	}

	weights := make([]float64, len(metrics))
	rets := make([]float64, len(metrics))
	variances := make([]float64, len(metrics))
	sharpes := make([]float64, len(metrics))
	sortinos := make([]float64, 0, len(metrics))
	sortinoWeights := make([]float64, 0, len(metrics))
	for idx, m := range metrics {
		weights[idx] = float64(m.Months)
		rets[idx] = m.AnnualReturn
		variances[idx] = m.AnnualVolatility * m.AnnualVolatility
		sharpes[idx] = m.SharpeRatio
		if m.SortinoRatio < sortinoCeiling {
			sortinos = append(sortinos, m.SortinoRatio)
			sortinoWeights = append(sortinoWeights, float64(m.Months))
		}
		summary.Months += m.Months
		summary.MaxDrawDown = math.Min(summary.MaxDrawDown, m.MaxDrawDown)
	}

	summary.AnnualReturn = stat.Mean(rets, weights)
	summary.AnnualVolatility = math.Sqrt(stat.Mean(variances, weights))
	summary.SharpeRatio = stat.Mean(sharpes, weights)

	if len(sortinos) > 0 {
		summary.SortinoRatio = stat.Mean(sortinos, sortinoWeights)
	} else {
		summary.SortinoRatio = SortinoUndefined
	}

	if len(turnover) > 0 {
		summary.MeanTurnover = stat.Mean(turnover, nil)
	}

	return summary
}
