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

// Package significance tests whether the difference between the Sharpe ratios of two
// strategies' pooled monthly returns is statistically significant
package significance

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/penny-vault/pv-riskparity/common"
)

const (
	DefaultResamples = 1000
	DefaultSeed      = 42

	// minimum number of paired observations; the sample covariance of two months is
	// always singular
	minObservations = 3

	// denominators at or below this are treated as zero
	varianceEpsilon = 1e-18
)

// Options configure a comparison
type Options struct {
	Resamples int    `toml:"resamples" json:"resamples"`
	Seed      uint64 `toml:"seed" json:"seed"`
}

// DefaultOptions returns 1000 resamples with seed 42
func DefaultOptions() Options {
	return Options{
		Resamples: DefaultResamples,
		Seed:      DefaultSeed,
	}
}

// LedoitWolf is the closed-form test of the difference of two Sharpe ratios
type LedoitWolf struct {
	SharpeA    float64 `json:"sharpeA"`
	SharpeB    float64 `json:"sharpeB"`
	Difference float64 `json:"difference"`
	TStatistic float64 `json:"tStatistic"`
	PValue     float64 `json:"pValue"`

	// Guarded is true when the variance of the difference was not positive and the
	// test was reported as not significant
	Guarded bool `json:"guarded"`
}

// Bootstrap is the paired resampling test of the difference of two Sharpe ratios
type Bootstrap struct {
	Difference float64 `json:"difference"`
	Std        float64 `json:"std"`
	PValue     float64 `json:"pValue"`
	CILower    float64 `json:"ciLower"`
	CIUpper    float64 `json:"ciUpper"`
	Resamples  int     `json:"resamples"`
}

// Comparison holds both tests for one pair of strategies
type Comparison struct {
	StrategyA     string     `json:"strategyA"`
	StrategyB     string     `json:"strategyB"`
	Months        int        `json:"months"`
	LedoitWolf    LedoitWolf `json:"ledoitWolf"`
	Bootstrap     Bootstrap  `json:"bootstrap"`
	Significant5  bool       `json:"significant5"`
	Significant10 bool       `json:"significant10"`
}

// Label summarizes the significance level of the comparison
func (c *Comparison) Label() string {
	switch {
	case c.Significant5:
		return "5%"
	case c.Significant10:
		return "10%"
	default:
		return "not significant"
	}
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s vs %s: diff %+.3f, p(LW) %.4f, p(boot) %.4f, %s", c.StrategyA, c.StrategyB,
		c.LedoitWolf.Difference, c.LedoitWolf.PValue, c.Bootstrap.PValue, c.Label())
}

// Compare tests the difference of the annualized Sharpe ratios of the monthly returns
// a and b, observed over the same months, against a constant annual risk-free rate.
// The difference is significant at a level when either test rejects equality.
func Compare(nameA string, a []float64, nameB string, b []float64, riskFreeAnnual float64, opts Options) (*Comparison, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %s has %d months, %s has %d", ErrLengthMismatch, nameA, len(a), nameB, len(b))
	}
	if len(a) < minObservations {
		return nil, fmt.Errorf("%w: %d months", ErrTooFewObservations, len(a))
	}
	if opts.Resamples <= 0 {
		return nil, ErrInvalidResampleSize
	}

	rf := riskFreeAnnual / common.PeriodsPerYear
	lw := ledoitWolf(a, b, rf)
	boot := bootstrap(a, b, rf, opts)

	comparison := &Comparison{
		StrategyA:     nameA,
		StrategyB:     nameB,
		Months:        len(a),
		LedoitWolf:    lw,
		Bootstrap:     boot,
		Significant5:  lw.PValue < 0.05 || boot.PValue < 0.05,
		Significant10: lw.PValue < 0.10 || boot.PValue < 0.10,
	}

	log.Info().Str("StrategyA", nameA).Str("StrategyB", nameB).Float64("Difference", lw.Difference).
		Float64("PValueLW", lw.PValue).Float64("PValueBootstrap", boot.PValue).Msg("compared sharpe ratios")

	return comparison, nil
}

// sharpe returns the annualized sharpe ratio of monthly returns in excess of rf; a
// series with no dispersion has a ratio of 0
func sharpe(returns []float64, rf float64) float64 {
	mean, std := stat.MeanStdDev(returns, nil)
	if !(std > 0) {
		return 0
	}
	return (mean - rf) / std * math.Sqrt(common.PeriodsPerYear)
}

func excess(returns []float64, rf float64) []float64 {
	res := make([]float64, len(returns))
	for idx, r := range returns {
		res[idx] = r - rf
	}
	return res
}

func ledoitWolf(a, b []float64, rf float64) LedoitWolf {
	excessA := excess(a, rf)
	excessB := excess(b, rf)

	res := LedoitWolf{
		SharpeA: sharpe(a, rf),
		SharpeB: sharpe(b, rf),
		PValue:  1,
	}
	res.Difference = res.SharpeA - res.SharpeB

	n := float64(len(a))
	mu1 := stat.Mean(excessA, nil)
	mu2 := stat.Mean(excessB, nil)
	var1 := stat.Variance(excessA, nil)
	var2 := stat.Variance(excessB, nil)
	cov12 := stat.Covariance(excessA, excessB, nil)

	denominator := var1*var2 - cov12*cov12
	if denominator <= varianceEpsilon {
		res.Guarded = true
		return res
	}

	varDiff := (var1*mu2*mu2 + var2*mu1*mu1 - 2*cov12*mu1*mu2) / denominator / n
	if !(varDiff > 0) || math.IsInf(varDiff, 0) {
		res.Guarded = true
		return res
	}

	res.TStatistic = res.Difference / math.Sqrt(varDiff)
	studentsT := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}
	res.PValue = 2 * (1 - studentsT.CDF(math.Abs(res.TStatistic)))

	return res
}

func bootstrap(a, b []float64, rf float64, opts Options) Bootstrap {
	n := len(a)
	observed := sharpe(a, rf) - sharpe(b, rf)

	rnd := rand.New(rand.NewSource(opts.Seed))
	sampleA := make([]float64, n)
	sampleB := make([]float64, n)
	diffs := make([]float64, opts.Resamples)

	for ii := range diffs {
		for jj := 0; jj < n; jj++ {
			idx := rnd.Intn(n)
			sampleA[jj] = a[idx]
			sampleB[jj] = b[idx]
		}
		diffs[ii] = sharpe(sampleA, rf) - sharpe(sampleB, rf)
	}

	// share of resampled differences on the other side of zero
	opposite := 0
	for _, diff := range diffs {
		if (observed >= 0 && diff <= 0) || (observed < 0 && diff >= 0) {
			opposite++
		}
	}
	pValue := math.Min(2*float64(opposite)/float64(len(diffs)), 1)

	sort.Float64s(diffs)

	return Bootstrap{
		Difference: observed,
		Std:        stat.PopStdDev(diffs, nil),
		PValue:     pValue,
		CILower:    stat.Quantile(0.025, stat.LinInterp, diffs, nil),
		CIUpper:    stat.Quantile(0.975, stat.LinInterp, diffs, nil),
		Resamples:  len(diffs),
	}
}
