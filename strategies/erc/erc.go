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

/*
 * Equal Risk Contribution v1.0
 * Maillard, Roncalli and Teiletche (2010), The Properties of Equally Weighted Risk
 * Contribution Portfolios
 *
 * Risk parity portfolio in which every asset contributes the same amount to the
 * volatility of the portfolio, RC_i = w_i (Σw)_i / σ_p = σ_p / N.
 */

package erc

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/estimate"
	"github.com/penny-vault/pv-riskparity/observability/opentelemetry"
	"github.com/penny-vault/pv-riskparity/portfolio"
	"github.com/penny-vault/pv-riskparity/strategies/ew"
	"github.com/penny-vault/pv-riskparity/strategies/strategy"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	Shortcode = "erc"

	// InverseVolatility names the fallback allocation w_i ∝ 1/σ_i
	InverseVolatility = "inverse-volatility"
)

const (
	// relative tolerance on sum_i (RC_i - σ_p/N)^2 / σ_p^2
	ercTolerance       = 1e-8
	degenerateVariance = 1e-12
)

var (
	// looseBounds are applied to the unconstrained solution before the diversification bounds
	looseBounds = portfolio.Bounds{Lower: 1e-6, Upper: 1}

	ErrDegenerateCovariance = errors.New("covariance matrix has no variance")
)

type RiskParity struct {
	opts strategy.Options
}

// New Construct a new Equal Risk Contribution strategy
func New(opts strategy.Options) (strategy.Strategy, error) {
	var rp strategy.Strategy = &RiskParity{
		opts: opts,
	}
	return rp, nil
}

func (rp *RiskParity) Name() string {
	return Shortcode
}

// Allocate solves for equal risk contributions starting from inverse volatility
// weights, then moves the solution into the configured bounds. If the solver fails
// the inverse volatility weights are used instead.
func (rp *RiskParity) Allocate(ctx context.Context, params *estimate.Params) (*strategy.Allocation, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "erc.Allocate")
	defer span.End()

	n := params.N()
	if n == 0 {
		span.SetStatus(codes.Error, strategy.ErrNoAssets.Error())
		return nil, strategy.ErrNoAssets
	}

	alloc := &strategy.Allocation{
		Strategy: Shortcode,
	}

	bounds, diags := rp.opts.EffectiveBounds(n, Shortcode)
	alloc.Diagnostics = append(alloc.Diagnostics, diags...)

	start, err := InverseVolatilityWeights(params.Volatilities)
	if err != nil {
		alloc.Diagnostics = append(alloc.Diagnostics, common.NewDiagnostic(common.NumericalDegeneracy, "", Shortcode,
			"%s; using equal weights", err))
		alloc.Weights = portfolio.EqualWeights(params.Assets)
		alloc.Fallback = ew.Shortcode
		alloc.Objective = portfolio.ERCObjective(params.Covariance, alloc.Weights.Values)
		alloc.RiskContributions = portfolio.NewRiskReport(params.Covariance, alloc.Weights)
		return alloc, nil
	}

	values, sol, err := Solve(params.Covariance, start, rp.opts.MaxIterations)
	if sol != nil {
		alloc.Iterations = sol.Iterations
		alloc.Method = sol.Method
	}

	if err != nil {
		log.Warn().Err(err).Strs("Assets", params.Assets).Msg("risk parity solver failed")
		alloc.Diagnostics = append(alloc.Diagnostics, common.NewDiagnostic(common.OptimizerFallback, "", Shortcode,
			"solver did not converge (%s); using inverse volatility weights", err))
		alloc.Fallback = InverseVolatility
		values = start
		span.SetAttributes(attribute.Bool("riskparity.fallback", true))
	} else {
		alloc.Converged = true
	}

	values, err = looseBounds.Project(values)
	if err == nil {
		values, err = bounds.Project(values)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	alloc.Weights, err = portfolio.NewWeights(params.Assets, values)
	if err != nil {
		return nil, err
	}
	alloc.Objective = portfolio.ERCObjective(params.Covariance, values)
	alloc.RiskContributions = portfolio.NewRiskReport(params.Covariance, alloc.Weights)

	span.SetAttributes(attribute.Float64("riskparity.relative_std", alloc.RiskContributions.RelativeStd))
	return alloc, nil
}

// InverseVolatilityWeights returns w_i = (1/σ_i) / sum_j (1/σ_j). Every volatility
// must be positive.
func InverseVolatilityWeights(vols []float64) ([]float64, error) {
	w := make([]float64, len(vols))
	for idx, vol := range vols {
		if vol <= 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
			return nil, fmt.Errorf("%w: volatility of asset %d is %g", ErrDegenerateCovariance, idx, vol)
		}
		w[idx] = 1 / vol
	}
	floats.Scale(1/floats.Sum(w), w)
	return w, nil
}

// Solve finds the long-only weights with equal risk contributions. It minimizes
//
//	f(y) = ½ w'Σw - (1/N) sum_i y_i,   w = exp(y)
//
// whose gradient w_i (Σw)_i - 1/N vanishes exactly when every asset contributes the
// same variance; normalizing w to sum to one gives the ERC portfolio. start is scaled
// so that w'Σw = 1 before the search. The solution is accepted when the relative ERC
// objective is below tolerance, otherwise portfolio.ErrDidNotConverge is returned.
func Solve(cov mat.Symmetric, start []float64, maxIterations int) ([]float64, *portfolio.Solution, error) {
	n := len(start)
	variance := portfolio.Variance(cov, start)
	if variance <= degenerateVariance || math.IsNaN(variance) {
		return nil, nil, ErrDegenerateCovariance
	}

	scale := 1 / math.Sqrt(variance)
	y0 := make([]float64, n)
	for idx, val := range start {
		y0[idx] = math.Log(scale * val)
	}

	budget := 1 / float64(n)
	expY := func(y []float64) []float64 {
		w := make([]float64, n)
		for idx, yy := range y {
			w[idx] = math.Exp(yy)
		}
		return w
	}

	problem := portfolio.Problem{
		Func: func(y []float64) float64 {
			w := expY(y)
			v := portfolio.Variance(cov, w)
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return math.Inf(1)
			}
			return 0.5*v - budget*floats.Sum(y)
		},
		Grad: func(grad, y []float64) {
			w := expY(y)
			x := mat.NewVecDense(n, w)
			marginal := mat.NewVecDense(n, nil)
			marginal.MulVec(cov, x)
			for idx := range grad {
				grad[idx] = w[idx]*marginal.AtVec(idx) - budget
			}
		},
	}

	sol, err := portfolio.Minimize(problem, y0, maxIterations)
	if err != nil {
		return nil, sol, err
	}

	w := expY(sol.X)
	total := floats.Sum(w)
	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return nil, sol, fmt.Errorf("%w: weights are not finite", portfolio.ErrDidNotConverge)
	}
	floats.Scale(1/total, w)

	relative := portfolio.ERCObjective(cov, w) / portfolio.Variance(cov, w)
	if relative > ercTolerance || math.IsNaN(relative) {
		return nil, sol, fmt.Errorf("%w: relative ERC objective %g after %s (%s)", portfolio.ErrDidNotConverge, relative, sol.Method, sol.Status)
	}

	return w, sol, nil
}
