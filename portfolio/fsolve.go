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
)

const (
	fsolveMaxIterations = 500

	// every fsolveCheckEvery steps the bracket must have halved or the next step bisects
	fsolveCheckEvery = 5
)

type objectiveFunc func(float64) float64

// fsolve finds a root of f inside [lo, hi] with the Anderson-Bjorck variant of
// regula falsi. A bracket around the root is kept at every step and stalled
// progress is replaced by bisection, so the search always converges once f(lo) and
// f(hi) differ in sign. The search stops when the bracket is narrower than tol.
func fsolve(f objectiveFunc, lo, hi, tol float64) (float64, error) {
	a, fa := lo, f(lo)
	b, fb := hi, f(hi)

	switch {
	case fa == 0:
		return a, nil
	case fb == 0:
		return b, nil
	case math.IsNaN(fa) || math.IsNaN(fb) || fa*fb > 0:
		return math.NaN(), ErrRootNotBracketed
	}

	gamma := 1.0
	checkpoint := math.Abs(b - a)

	for iter := 1; iter <= fsolveMaxIterations; iter++ {
		// secant through (a, gamma*fa) and (b, fb); always strictly inside the bracket
		x := b - fb*(b-a)/(fb-gamma*fa)

		bisected := false
		if iter%fsolveCheckEvery == 0 {
			if math.Abs(b-a) > checkpoint/2 {
				x = 0.5 * (a + b)
				bisected = true
			}
			checkpoint = math.Abs(b - a)
		}

		// a and b are adjacent floating point numbers
		if x == a || x == b {
			return x, nil
		}

		fx := f(x)
		if fx == 0 {
			return x, nil
		}

		if fx*fb < 0 {
			a, fa = b, fb
			gamma = 1
		} else {
			g := 1 - fx/fb
			if g <= 0 {
				g = 0.5
			}
			gamma *= g
		}
		b, fb = x, fx

		if bisected {
			gamma = 1
		}

		if math.Abs(b-a) <= tol {
			return closerToRoot(a, fa, b, fb), nil
		}
	}

	return closerToRoot(a, fa, b, fb), ErrDidNotConverge
}

func closerToRoot(a, fa, b, fb float64) float64 {
	if math.Abs(fa) < math.Abs(fb) {
		return a
	}
	return b
}
