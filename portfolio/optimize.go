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

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/optimize"
)

// DefaultMaxIterations bounds the major iterations of a single optimizer run
const DefaultMaxIterations = 1000

var acceptedStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
	optimize.StepConvergence:     true,
	optimize.MethodConverge:      true,
}

// Problem is an unconstrained minimization problem. Grad may be nil, in which case
// only derivative free methods are used.
type Problem struct {
	Func func(x []float64) float64
	Grad func(grad, x []float64)
}

// Solution is the best location found by Minimize
type Solution struct {
	X          []float64
	F          float64
	Status     optimize.Status
	Method     string
	Iterations int
}

// Accepted returns true if the optimizer terminated on a convergence criterion
func (s *Solution) Accepted() bool {
	return acceptedStatuses[s.Status]
}

// Minimize runs BFGS from x0 and retries with Nelder-Mead when BFGS is unavailable or
// does not terminate on a convergence criterion. The better of the attempts is
// returned; ErrDidNotConverge is only returned if no attempt produced a finite value.
func Minimize(problem Problem, x0 []float64, maxIterations int) (*Solution, error) {
	if len(x0) == 0 {
		return nil, ErrNoStartingPoint
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	p := optimize.Problem{
		Func: problem.Func,
		Grad: problem.Grad,
	}

	var best *Solution
	consider := func(method string, result *optimize.Result, err error) {
		if result == nil || math.IsNaN(result.F) || math.IsInf(result.F, 0) {
			log.Debug().Err(err).Str("Method", method).Msg("optimizer did not return a location")
			return
		}

		sol := &Solution{
			X:          result.X,
			F:          result.F,
			Status:     result.Status,
			Method:     method,
			Iterations: result.MajorIterations,
		}

		log.Debug().Err(err).Str("Method", method).Str("Status", result.Status.String()).Float64("F", result.F).Int("Iterations", result.MajorIterations).Msg("optimizer finished")

		if best == nil || sol.F < best.F || (!best.Accepted() && sol.Accepted() && sol.F <= best.F) {
			best = sol
		}
	}

	if problem.Grad != nil {
		result, err := optimize.Minimize(p, x0, &optimize.Settings{MajorIterations: maxIterations}, &optimize.BFGS{})
		consider("BFGS", result, err)
		if best != nil && best.Accepted() {
			return best, nil
		}
	}

	result, err := optimize.Minimize(p, x0, &optimize.Settings{MajorIterations: maxIterations}, &optimize.NelderMead{})
	consider("NelderMead", result, err)

	if best == nil {
		return nil, fmt.Errorf("%w: no finite objective value", ErrDidNotConverge)
	}

	return best, nil
}
