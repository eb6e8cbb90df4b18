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
	"strings"

	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/floats"
)

// SumTolerance is the allowed deviation of the sum of weights from one
const SumTolerance = 1e-9

// Weights is the target allocation of a portfolio. Values are in the same order as
// Assets and are not modified once created.
type Weights struct {
	Assets []string  `json:"assets"`
	Values []float64 `json:"values"`
}

// NewWeights creates a weight vector; assets and values must have the same length
func NewWeights(assets []string, values []float64) (*Weights, error) {
	if len(assets) != len(values) {
		return nil, fmt.Errorf("%w: %d assets and %d weights", ErrLengthMismatch, len(assets), len(values))
	}

	w := &Weights{
		Assets: make([]string, len(assets)),
		Values: make([]float64, len(values)),
	}
	copy(w.Assets, assets)
	copy(w.Values, values)
	return w, nil
}

// EqualWeights allocates 1/N to each of the N assets
func EqualWeights(assets []string) *Weights {
	values := make([]float64, len(assets))
	for idx := range values {
		values[idx] = 1.0 / float64(len(assets))
	}

	// NewWeights only fails on a length mismatch
	w, _ := NewWeights(assets, values)
	return w
}

// Len returns the number of assets
func (w *Weights) Len() int {
	return len(w.Assets)
}

// Sum returns the sum of all weights
func (w *Weights) Sum() float64 {
	return floats.Sum(w.Values)
}

// Get returns the weight of asset, or 0 if the asset is not held
func (w *Weights) Get(asset string) float64 {
	for idx, name := range w.Assets {
		if name == asset {
			return w.Values[idx]
		}
	}
	return 0
}

// Map returns the weights keyed by asset
func (w *Weights) Map() map[string]float64 {
	res := make(map[string]float64, len(w.Assets))
	for idx, name := range w.Assets {
		res[name] = w.Values[idx]
	}
	return res
}

// Validate checks that the weights sum to one and respect bounds
func (w *Weights) Validate(bounds Bounds) error {
	if sum := w.Sum(); math.Abs(sum-1) > SumTolerance {
		return fmt.Errorf("%w: sum is %.12f", ErrWeightsDoNotSumToOne, sum)
	}

	for idx, val := range w.Values {
		if !bounds.Contains(val) {
			return fmt.Errorf("%w: %s = %.6f not in [%g, %g]", ErrWeightOutOfBounds, w.Assets[idx], val, bounds.Lower, bounds.Upper)
		}
	}

	return nil
}

// Table renders the weights as an ASCII table
func (w *Weights) Table() string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Asset", "Weight"})
	table.SetBorder(false)
	for idx, name := range w.Assets {
		table.Append([]string{name, fmt.Sprintf("%.2f%%", w.Values[idx]*100)})
	}
	table.Render()
	return s.String()
}

// Turnover is the fraction of the portfolio that is traded when moving from prev to
// next: sum(|next_i - prev_i|) / 2 over the union of assets. With no previous
// allocation the full portfolio is bought and the turnover is 1.
func Turnover(prev, next *Weights) float64 {
	if prev == nil {
		return 1.0
	}

	prevMap := prev.Map()
	total := 0.0
	for idx, name := range next.Assets {
		total += math.Abs(next.Values[idx] - prevMap[name])
		delete(prevMap, name)
	}

	for _, val := range prevMap {
		total += math.Abs(val)
	}

	return total / 2
}
