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

// Package estimate derives annualized distribution parameters from a window of
// monthly log-returns.
package estimate

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/dataframe"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LowConfidenceThreshold is the number of observations below which estimates are
// flagged as low confidence
const LowConfidenceThreshold = 12

var (
	ErrNoObservations = errors.New("estimation window has no observations")
	ErrNoAssets       = errors.New("estimation window has no assets")
	ErrNonFinite      = errors.New("estimation window contains non-finite returns")
)

// Params is an immutable snapshot of the estimated parameters of one window
type Params struct {
	Assets          []string
	ExpectedReturns []float64
	Covariance      *mat.SymDense
	Volatilities    []float64
	Observations    int
	LowConfidence   bool

	// Dates of the observations, used to look up the risk free rate of the window
	Dates []time.Time
}

// N returns the number of assets
func (p *Params) N() int {
	return len(p.Assets)
}

// Estimate computes annualized expected returns (mean x 12), covariance (sample
// covariance x 12) and volatilities (standard deviation x sqrt 12) of every column
// of window. The caller is responsible for passing only observations that precede
// the test window. Windows with fewer than 12 rows are estimated but flagged as low
// confidence; the accompanying diagnostic is returned as well.
func Estimate(window *dataframe.DataFrame[time.Time]) (*Params, []common.Diagnostic, error) {
	n := window.Len()
	if n == 0 {
		return nil, nil, ErrNoObservations
	}

	k := window.ColCount()
	if k == 0 {
		return nil, nil, ErrNoAssets
	}

	periods := float64(common.PeriodsPerYear)
	params := &Params{
		Assets:          make([]string, k),
		ExpectedReturns: make([]float64, k),
		Covariance:      mat.NewSymDense(k, nil),
		Volatilities:    make([]float64, k),
		Observations:    n,
		Dates:           make([]time.Time, n),
	}
	copy(params.Assets, window.ColNames)
	copy(params.Dates, window.Index)

	for idx, col := range window.Vals {
		mean := stat.Mean(col, nil)
		if math.IsNaN(mean) || math.IsInf(mean, 0) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNonFinite, window.ColNames[idx])
		}
		params.ExpectedReturns[idx] = mean * periods
	}

	var diags []common.Diagnostic
	if n < LowConfidenceThreshold {
		params.LowConfidence = true
		diags = append(diags, common.NewDiagnostic(common.LowConfidence, "", "",
			"estimated from %d observations ending %s", n, window.End().Format(common.DateFormat)))
	}

	// the sample covariance needs at least two observations
	if n < 2 {
		return params, diags, nil
	}

	obs := mat.NewDense(n, k, nil)
	for colIdx, col := range window.Vals {
		obs.SetCol(colIdx, col)
	}
	stat.CovarianceMatrix(params.Covariance, obs, nil)
	params.Covariance.ScaleSym(periods, params.Covariance)

	for idx := range params.Volatilities {
		params.Volatilities[idx] = math.Sqrt(params.Covariance.At(idx, idx))
	}

	log.Debug().Int("Observations", n).Int("Assets", k).Time("End", window.End()).Msg("estimated parameters")
	return params, diags, nil
}
