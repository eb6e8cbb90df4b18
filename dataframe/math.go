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

package dataframe

import (
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// Dot computes the weighted sum of the columns of df, row by row, and returns it as a
// slice with one entry per row. Weights are given in column order.
func (df *DataFrame[T]) Dot(weights []float64) ([]float64, error) {
	if len(weights) != df.ColCount() {
		log.Error().Int("NumWeights", len(weights)).Int("NumColumns", df.ColCount()).Msg("weights must match columns")
		return nil, ErrLengthMismatch
	}

	res := make([]float64, df.Len())
	for colIdx, col := range df.Vals {
		floats.AddScaled(res, weights[colIdx], col)
	}

	return res, nil
}

// LogReturns converts a dataframe of prices into continuously compounded returns,
// ln(p_t / p_{t-1}). The first row is consumed by the difference so the result has
// one row less than df. Non-positive prices produce NaN.
func (df *DataFrame[T]) LogReturns() (*DataFrame[T], error) {
	if df.Len() < 2 {
		return nil, ErrNotEnoughRows
	}

	res := &DataFrame[T]{
		Index:    make([]T, df.Len()-1),
		ColNames: make([]string, len(df.ColNames)),
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(res.Index, df.Index[1:])
	copy(res.ColNames, df.ColNames)

	for colIdx, col := range df.Vals {
		rets := make([]float64, len(col)-1)
		for rowIdx := 1; rowIdx < len(col); rowIdx++ {
			prev, cur := col[rowIdx-1], col[rowIdx]
			if prev <= 0 || cur <= 0 {
				rets[rowIdx-1] = math.NaN()
				continue
			}
			rets[rowIdx-1] = math.Log(cur / prev)
		}
		res.Vals[colIdx] = rets
	}

	return res, nil
}

// MulScalar multiplies all columns in dataframe df by the scalar and returns a new dataframe
func (df *DataFrame[T]) MulScalar(scalar float64) *DataFrame[T] {
	df = df.Copy()

	for colIdx := range df.ColNames {
		floats.Scale(scalar, df.Vals[colIdx])
	}
	return df
}
