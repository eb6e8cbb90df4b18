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

package strategy

import (
	"context"
	"errors"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/data"
	"github.com/penny-vault/pv-riskparity/estimate"
	"github.com/penny-vault/pv-riskparity/portfolio"
)

var (
	ErrNoAssets = errors.New("parameters contain no assets")
)

// Argument an argument to a strategy
type Argument struct {
	Name        string   `json:"name" toml:"name"`
	Description string   `json:"description" toml:"description"`
	Typecode    string   `json:"typecode" toml:"typecode"`
	Default     string   `json:"default" toml:"default"`
	Advanced    bool     `json:"advanced" toml:"advanced"`
	Options     []string `json:"options" toml:"options"`
}

// StrategyFactory constructs a strategy from the shared options
type StrategyFactory func(opts Options) (Strategy, error)

// StrategyInfo information about a strategy
type StrategyInfo struct {
	Name            string              `json:"name" toml:"name"`
	Shortcode       string              `json:"shortcode" toml:"shortcode"`
	Description     string              `json:"description" toml:"description"`
	LongDescription string              `json:"longDescription" toml:"-"`
	Source          string              `json:"source" toml:"source"`
	Version         string              `json:"version" toml:"version"`
	Arguments       map[string]Argument `json:"arguments" toml:"arguments"`
	Factory         StrategyFactory     `json:"-" toml:"-"`
}

// Options shared by all allocation strategies
type Options struct {
	// Bounds applied to every weight
	Bounds portfolio.Bounds

	// MaxIterations of a single optimizer run; zero uses portfolio.DefaultMaxIterations
	MaxIterations int

	// RiskFreeAnnual is used when RiskFree does not cover the estimation window
	RiskFreeAnnual float64

	// RiskFree monthly series; may be nil
	RiskFree *data.RiskFreeSeries
}

// EffectiveBounds returns the bounds to use for n assets. Bounds that cannot sum to
// one are replaced by [0, 1] and reported with an InfeasibleBounds diagnostic.
func (o Options) EffectiveBounds(n int, strategy string) (portfolio.Bounds, []common.Diagnostic) {
	if o.Bounds.Feasible(n) {
		return o.Bounds, nil
	}

	diag := common.NewDiagnostic(common.InfeasibleBounds, "", strategy,
		"bounds [%g, %g] are infeasible for %d assets; using [0, 1]", o.Bounds.Lower, o.Bounds.Upper, n)
	return portfolio.Unbounded, []common.Diagnostic{diag}
}

// AnnualRiskFree returns the mean monthly risk free rate of the estimation window
// scaled to a year, or RiskFreeAnnual when the series does not cover the window
func (o Options) AnnualRiskFree(params *estimate.Params) float64 {
	if o.RiskFree != nil {
		if rate, ok := o.RiskFree.AnnualMean(params.Dates); ok {
			return rate
		}
	}
	return o.RiskFreeAnnual
}

// Allocation is the outcome of one strategy for one set of parameters. A strategy
// that could not solve its problem still returns weights, with Converged false and
// the simpler allocation that replaced it named in Fallback.
type Allocation struct {
	Strategy          string                `json:"strategy"`
	Weights           *portfolio.Weights    `json:"weights"`
	Converged         bool                  `json:"converged"`
	Fallback          string                `json:"fallback,omitempty"`
	Objective         float64               `json:"objective"`
	Iterations        int                   `json:"iterations"`
	Method            string                `json:"method,omitempty"`
	Diagnostics       []common.Diagnostic   `json:"diagnostics,omitempty"`
	RiskContributions *portfolio.RiskReport `json:"riskContributions,omitempty"`
}

// Strategy maps estimated parameters to portfolio weights. Implementations are
// stateless and safe for concurrent use.
type Strategy interface {
	Name() string
	Allocate(ctx context.Context, params *estimate.Params) (*Allocation, error)
}
