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
 * Equal Weight v1.0
 *
 * Allocates 1/N of the portfolio to each of the N assets. Needs no estimate of
 * risk or return and is the benchmark the optimized portfolios are compared to.
 */

package ew

import (
	"context"

	"github.com/penny-vault/pv-riskparity/estimate"
	"github.com/penny-vault/pv-riskparity/portfolio"
	"github.com/penny-vault/pv-riskparity/strategies/strategy"
)

const Shortcode = "ew"

type EqualWeight struct{}

// New Construct a new Equal Weight strategy
func New(opts strategy.Options) (strategy.Strategy, error) {
	var ew strategy.Strategy = &EqualWeight{}
	return ew, nil
}

func (ew *EqualWeight) Name() string {
	return Shortcode
}

// Allocate returns 1/N for every asset
func (ew *EqualWeight) Allocate(ctx context.Context, params *estimate.Params) (*strategy.Allocation, error) {
	if params.N() == 0 {
		return nil, strategy.ErrNoAssets
	}

	weights := portfolio.EqualWeights(params.Assets)
	return &strategy.Allocation{
		Strategy:          Shortcode,
		Weights:           weights,
		Converged:         true,
		RiskContributions: portfolio.NewRiskReport(params.Covariance, weights),
	}, nil
}
