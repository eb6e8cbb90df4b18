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
 * Mean-Variance (maximum Sharpe) v1.0
 *
 * Markowitz tangency portfolio: the long-only weights with the highest ratio of
 * expected excess return to volatility, subject to per-asset bounds.
 */

package mv

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

const Shortcode = "mv"

const (
	maxOuterIterations  = 30
	initialPenalty      = 10.0
	maxPenalty          = 1e8
	constraintTolerance = 1e-10
	acceptedResidual    = 1e-6
	degenerateVariance  = 1e-12
)

var (
	ErrConstraintNotMet = errors.New("sum of weights did not converge to one")
)

type MeanVariance struct {
	opts strategy.Options
}

// New Construct a new Mean-Variance strategy
func New(opts strategy.Options) (strategy.Strategy, error) {
	var mv strategy.Strategy = &MeanVariance{
		opts: opts,
	}
	return mv, nil
}

func (mv *MeanVariance) Name() string {
	return Shortcode
}

// Allocate maximizes the Sharpe ratio of the portfolio. When the optimizer does not
// converge the portfolio falls back to equal weights.
func (mv *MeanVariance) Allocate(ctx context.Context, params *estimate.Params) (*strategy.Allocation, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "mv.Allocate")
	defer span.End()

	n := params.N()
	if n == 0 {
		span.SetStatus(codes.Error, strategy.ErrNoAssets.Error())
		return nil, strategy.ErrNoAssets
	}

	alloc := &strategy.Allocation{
		Strategy: Shortcode,
	}

	bounds, diags := mv.opts.EffectiveBounds(n, Shortcode)
	alloc.Diagnostics = append(alloc.Diagnostics, diags...)

	rf := mv.opts.AnnualRiskFree(params)
	span.SetAttributes(attribute.Float64("riskparity.risk_free", rf))

	equal := portfolio.EqualWeights(params.Assets)
	if portfolio.Variance(params.Covariance, equal.Values) <= degenerateVariance {
		alloc.Diagnostics = append(alloc.Diagnostics, common.NewDiagnostic(common.NumericalDegeneracy, "", Shortcode,
			"covariance matrix has no variance; using equal weights"))
		alloc.Weights = equal
		alloc.Fallback = ew.Shortcode
		alloc.Objective = portfolio.DegeneratePenalty
		alloc.RiskContributions = portfolio.NewRiskReport(params.Covariance, equal)
		return alloc, nil
	}

	values, sol, err := maximizeSharpe(params.ExpectedReturns, params.Covariance, rf, bounds, mv.opts.MaxIterations)
	if sol != nil {
		alloc.Iterations = sol.Iterations
		alloc.Method = sol.Method
	}

	if err == nil {
		values, err = bounds.Project(values)
	}

	if err != nil {
		log.Warn().Err(err).Float64("RiskFree", rf).Msg("mean-variance optimization failed")
		alloc.Diagnostics = append(alloc.Diagnostics, common.NewDiagnostic(common.OptimizerFallback, "", Shortcode,
			"optimizer did not converge (%s); using equal weights", err))
		alloc.Weights = equal
		alloc.Fallback = ew.Shortcode
		alloc.Objective, _ = negativeSharpe(params.ExpectedReturns, params.Covariance, rf, equal.Values)
		alloc.RiskContributions = portfolio.NewRiskReport(params.Covariance, equal)
		span.SetAttributes(attribute.Bool("riskparity.fallback", true))
		return alloc, nil
	}

	alloc.Weights, err = portfolio.NewWeights(params.Assets, values)
	if err != nil {
		return nil, err
	}
	alloc.Converged = true
	alloc.Objective, _ = negativeSharpe(params.ExpectedReturns, params.Covariance, rf, values)
	alloc.RiskContributions = portfolio.NewRiskReport(params.Covariance, alloc.Weights)

	log.Debug().Float64("Sharpe", -alloc.Objective).Int("Iterations", alloc.Iterations).Msg("mean-variance optimization converged")
	return alloc, nil
}

// negativeSharpe returns -(w'μ - rf) / sqrt(w'Σw) and its gradient with respect to w.
// A portfolio without variance scores DegeneratePenalty with a zero gradient.
func negativeSharpe(mu []float64, cov mat.Symmetric, rf float64, w []float64) (float64, []float64) {
	grad := make([]float64, len(w))

	x := mat.NewVecDense(len(w), w)
	marginal := mat.NewVecDense(len(w), nil)
	marginal.MulVec(cov, x)
	variance := mat.Dot(x, marginal)
	if variance <= degenerateVariance {
		return portfolio.DegeneratePenalty, grad
	}

	sigma := math.Sqrt(variance)
	excess := floats.Dot(mu, w) - rf
	for idx := range grad {
		grad[idx] = -(mu[idx]/sigma - excess*marginal.AtVec(idx)/(variance*sigma))
	}

	return -excess / sigma, grad
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(s float64) float64 {
	s = math.Min(math.Max(s, 1e-9), 1-1e-9)
	return math.Log(s / (1 - s))
}

// maximizeSharpe solves the bounded problem with the sum constraint handled by an
// augmented Lagrangian. Each weight is parametrized as lower + width * sigmoid(x_i)
// so the bounds always hold and the inner problems are unconstrained.
func maximizeSharpe(mu []float64, cov mat.Symmetric, rf float64, bounds portfolio.Bounds, maxIterations int) ([]float64, *portfolio.Solution, error) {
	n := len(mu)
	width := bounds.Upper - bounds.Lower

	toWeights := func(x []float64) []float64 {
		w := make([]float64, n)
		for idx, xx := range x {
			w[idx] = bounds.Lower + width*sigmoid(xx)
		}
		return w
	}

	// equal weights is the starting point
	if width <= 0 {
		return toWeights(make([]float64, n)), nil, nil
	}
	x := make([]float64, n)
	for idx := range x {
		x[idx] = logit((1.0/float64(n) - bounds.Lower) / width)
	}

	lambda := 0.0
	rho := initialPenalty

	var sol *portfolio.Solution
	residual := math.Inf(1)
	iterations := 0
	for outer := 0; outer < maxOuterIterations; outer++ {
		problem := portfolio.Problem{
			Func: func(x []float64) float64 {
				w := toWeights(x)
				f, _ := negativeSharpe(mu, cov, rf, w)
				h := floats.Sum(w) - 1
				return f + lambda*h + rho/2*h*h
			},
			Grad: func(grad, x []float64) {
				w := toWeights(x)
				_, gw := negativeSharpe(mu, cov, rf, w)
				h := floats.Sum(w) - 1
				for idx, xx := range x {
					s := sigmoid(xx)
					grad[idx] = (gw[idx] + lambda + rho*h) * width * s * (1 - s)
				}
			},
		}

		var err error
		sol, err = portfolio.Minimize(problem, x, maxIterations)
		if err != nil {
			return nil, sol, err
		}
		iterations += sol.Iterations
		x = sol.X

		residual = floats.Sum(toWeights(x)) - 1
		if math.Abs(residual) < constraintTolerance {
			break
		}

		lambda += rho * residual
		rho = math.Min(rho*4, maxPenalty)
	}

	sol.Iterations = iterations
	if math.IsNaN(residual) || math.Abs(residual) > acceptedResidual {
		return nil, sol, fmt.Errorf("%w: residual %g", ErrConstraintNotMet, residual)
	}
	if !sol.Accepted() {
		return nil, sol, fmt.Errorf("%w: %s stopped with status %s", portfolio.ErrDidNotConverge, sol.Method, sol.Status)
	}

	return toWeights(x), sol, nil
}
