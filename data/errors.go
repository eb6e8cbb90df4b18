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

package data

import "errors"

var (
	ErrMissingDateColumn = errors.New("first column of the return table must be the date")
	ErrNoAssetColumns    = errors.New("return table has no asset columns")
	ErrDuplicateColumn   = errors.New("duplicate asset column")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidValue      = errors.New("invalid value")
	ErrDuplicateMonth    = errors.New("more than one row for the same month")
	ErrUnsupportedKind   = errors.New("unsupported input kind")
	ErrInvalidMonth      = errors.New("invalid month key; expected YYYY-MM")
	ErrRiskFreeMissing   = errors.New("risk free series does not cover month")
)
