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

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

const (
	boundsTolerance   = 1e-12
	projectionTol     = 1e-14
	feasibilityMargin = 1e-12
)

// Bounds constrain every weight of a long-only portfolio to [Lower, Upper]
type Bounds struct {
	Lower float64 `json:"lower" toml:"lower"`
	Upper float64 `json:"upper" toml:"upper"`
}

// Unbounded is the loosest long-only constraint
var Unbounded = Bounds{Lower: 0, Upper: 1}

// Valid returns an error if the bounds are not an interval inside [0, 1]
func (b Bounds) Valid() error {
	if b.Lower < 0 || b.Upper > 1 || b.Lower > b.Upper {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidBounds, b.Lower, b.Upper)
	}
	return nil
}

// Feasible returns true if n weights inside the bounds can sum to one
func (b Bounds) Feasible(n int) bool {
	if b.Valid() != nil || n < 1 {
		return false
	}
	return float64(n)*b.Lower <= 1+feasibilityMargin && float64(n)*b.Upper >= 1-feasibilityMargin
}

// Contains returns true if w lies within the bounds
func (b Bounds) Contains(w float64) bool {
	return w >= b.Lower-boundsTolerance && w <= b.Upper+boundsTolerance
}

// Clamp limits x to the bounds
func (b Bounds) Clamp(x float64) float64 {
	if x < b.Lower {
		return b.Lower
	}
	if x > b.Upper {
		return b.Upper
	}
	return x
}

// Project returns the point of {w : sum(w) = 1, Lower <= w_i <= Upper} closest to x in
// the euclidean norm. The projection has the form w_i = clamp(x_i - tau) where tau is
// the root of sum(w(tau)) - 1, found with fsolve.
func (b Bounds) Project(x []float64) ([]float64, error) {
	if !b.Feasible(len(x)) {
		return nil, fmt.Errorf("%w: %d assets in [%g, %g]", ErrInfeasibleBounds, len(x), b.Lower, b.Upper)
	}

	shifted := func(tau float64) []float64 {
		w := make([]float64, len(x))
		for idx, xx := range x {
			w[idx] = b.Clamp(xx - tau)
		}
		return w
	}

	f := func(tau float64) float64 {
		sum := 0.0
		for _, xx := range x {
			sum += b.Clamp(xx - tau)
		}
		return sum - 1
	}

	lo := floats.Min(x) - b.Upper
	hi := floats.Max(x) - b.Lower

	// bounds that are tight for n assets pin every weight to one end
	if f(lo) <= 0 {
		return shifted(lo), nil
	}
	if f(hi) >= 0 {
		return shifted(hi), nil
	}

	tau, err := fsolve(f, lo, hi, projectionTol)
	if err != nil {
		log.Error().Err(err).Floats64("X", x).Float64("Lower", b.Lower).Float64("Upper", b.Upper).Msg("could not project weights onto bounds")
		return nil, err
	}

	return shifted(tau), nil
}
