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

package schedule

import "errors"

var (
	ErrTooFewAnchors        = errors.New("at least two rebalancing anchors are required")
	ErrAnchorsNotIncreasing = errors.New("rebalancing anchors must be strictly increasing")
	ErrInvalidWindow        = errors.New("estimation window must be at least one month")
	ErrInvalidGap           = errors.New("estimation gap must be at least one month")
	ErrInvalidMinimum       = errors.New("minimum observation counts must be positive")
)
