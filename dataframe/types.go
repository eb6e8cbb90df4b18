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
	"errors"
	"time"
)

// Indexable are the types that may be used as the row index of a DataFrame
type Indexable interface {
	time.Time | string
}

// DataFrame stores a table of values organized by an index (typically a date).
// The vals array is column major - e.g.,
//
//	PETR4  VALE3
//	1      4
//	2      5
//	3      6
//
// Vals[0][0] = 1
// Vals[0][1] = 2
// Vals[1][0] = 4
type DataFrame[T Indexable] struct {
	Index    []T
	ColNames []string
	Vals     [][]float64
}

var (
	ErrColumnNotFound     = errors.New("column not found")
	ErrIndexNotIncreasing = errors.New("index must be strictly increasing")
	ErrLengthMismatch     = errors.New("number of values does not match number of columns")
	ErrNotEnoughRows      = errors.New("not enough rows")
)
