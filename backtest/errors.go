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

package backtest

import "errors"

var (
	ErrEmptyReturns        = errors.New("return table is empty")
	ErrMissingAssets       = errors.New("return table is missing configured assets")
	ErrNoScheduler         = errors.New("a rebalancing scheduler is required")
	ErrDuplicateStrategy   = errors.New("strategy configured more than once")
	ErrUnknownComparison   = errors.New("comparison references a strategy that is not run")
	ErrInvalidCost         = errors.New("transaction costs must not be negative")
	ErrNonFiniteAllocation = errors.New("strategy returned non-finite weights")
)
