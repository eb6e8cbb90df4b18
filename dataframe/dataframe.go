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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

// ColIndex returns the index of the specified column; returns -1 if column doesn't exist
func (df *DataFrame[T]) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}

	return -1
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame[T]) ColCount() int {
	return len(df.ColNames)
}

// Column returns the values stored in the named column. The returned slice is
// shared with the dataframe and must not be modified.
func (df *DataFrame[T]) Column(colName string) ([]float64, error) {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, colName)
	}
	return df.Vals[colIdx], nil
}

// Copy returns a deep copy of df
func (df *DataFrame[T]) Copy() *DataFrame[T] {
	vals := make([][]float64, len(df.Vals))
	for colIdx, col := range df.Vals {
		vals[colIdx] = append([]float64(nil), col...)
	}

	return &DataFrame[T]{
		ColNames: append([]string(nil), df.ColNames...),
		Index:    append([]T(nil), df.Index...),
		Vals:     vals,
	}
}

// Drop returns a new dataframe without the rows where any column equals val. A NaN
// val matches every NaN.
func (df *DataFrame[T]) Drop(val float64) *DataFrame[T] {
	matches := func(x float64) bool {
		if math.IsNaN(val) {
			return math.IsNaN(x)
		}
		return x == val
	}

	res := &DataFrame[T]{
		ColNames: df.ColNames,
		Index:    make([]T, 0, len(df.Index)),
		Vals:     make([][]float64, len(df.Vals)),
	}

	for rowIdx := range df.Index {
		if sliceContains(df.Row(rowIdx), matches) {
			continue
		}
		res.Index = append(res.Index, df.Index[rowIdx])
		for colIdx, col := range df.Vals {
			res.Vals[colIdx] = append(res.Vals[colIdx], col[rowIdx])
		}
	}

	return res
}

func sliceContains(vals []float64, pred func(float64) bool) bool {
	for _, v := range vals {
		if pred(v) {
			return true
		}
	}
	return false
}

// dateAt returns the index value at position i when the index holds dates
func (df *DataFrame[T]) dateAt(i int) (time.Time, bool) {
	if i < 0 || i >= len(df.Index) {
		return time.Time{}, false
	}
	dt, ok := any(df.Index[i]).(time.Time)
	return dt, ok
}

// End returns the last date of the dataframe, or the zero time if it is empty
func (df *DataFrame[T]) End() time.Time {
	dt, _ := df.dateAt(len(df.Index) - 1)
	return dt
}

// InsertRow adds a new row to the dataframe. For date indexes the new date must be after the last
// date in the dataframe, and the number of vals must equal the number of columns
func (df *DataFrame[T]) InsertRow(idx T, vals ...float64) error {
	if len(df.Index) != 0 {
		if last, ok := any(df.Index[len(df.Index)-1]).(time.Time); ok {
			newDate := any(idx).(time.Time)
			if !last.Before(newDate) {
				log.Error().Time("LastDate", last).Time("NewDate", newDate).Msg("new row must be after the last row")
				return ErrIndexNotIncreasing
			}
		}
	}

	if len(vals) != len(df.ColNames) {
		log.Error().Int("NumValsPassed", len(vals)).Int("NumColumns", len(df.ColNames)).Msg("number of vals passed must equal number of columns")
		return ErrLengthMismatch
	}

	if len(df.Vals) != len(df.ColNames) {
		df.Vals = make([][]float64, len(df.ColNames))
	}

	df.Index = append(df.Index, idx)
	for colIdx := range df.ColNames {
		df.Vals[colIdx] = append(df.Vals[colIdx], vals[colIdx])
	}

	return nil
}

// Len returns the number of rows in the dataframe
func (df *DataFrame[T]) Len() int {
	return len(df.Index)
}

// Row returns the values of every column at the given row position
func (df *DataFrame[T]) Row(rowIdx int) []float64 {
	row := make([]float64, len(df.Vals))
	for colIdx, col := range df.Vals {
		row[colIdx] = col[rowIdx]
	}
	return row
}

// Select returns a new dataframe that only contains the requested columns in the requested
// order. Column data is shared with df. Missing columns are reported together in the error.
func (df *DataFrame[T]) Select(columns ...string) (*DataFrame[T], error) {
	res := &DataFrame[T]{
		Index:    df.Index,
		ColNames: make([]string, 0, len(columns)),
		Vals:     make([][]float64, 0, len(columns)),
	}

	missing := make([]string, 0)
	for _, col := range columns {
		colIdx := df.ColIndex(col)
		if colIdx == -1 {
			missing = append(missing, col)
			continue
		}
		res.ColNames = append(res.ColNames, col)
		res.Vals = append(res.Vals, df.Vals[colIdx])
	}

	if len(missing) != 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, strings.Join(missing, ", "))
	}

	return res, nil
}

// Start returns the first date of the dataframe, or the zero time if it is empty
func (df *DataFrame[T]) Start() time.Time {
	dt, _ := df.dateAt(0)
	return dt
}

// Table renders df as an ASCII table with one row per index value
func (df *DataFrame[T]) Table() string {
	if len(df.Index) == 0 {
		return "<NO DATA>"
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(append([]string{"Date"}, df.ColNames...))
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for rowIdx, idx := range df.Index {
		row := make([]string, 0, len(df.Vals)+1)
		if dt, ok := any(idx).(time.Time); ok {
			row = append(row, dt.Format("2006-01-02"))
		} else {
			row = append(row, fmt.Sprint(idx))
		}
		for _, col := range df.Vals {
			row = append(row, strconv.FormatFloat(col[rowIdx], 'f', 4, 64))
		}
		table.Append(row)
	}

	table.SetFooter(append([]string{fmt.Sprintf("%d rows", df.Len())}, make([]string, len(df.ColNames))...))
	table.Render()
	return s.String()
}

// Trim returns the rows dated within [begin, end]. Values are shared with df. A
// dataframe without a date index is returned as is.
func (df *DataFrame[T]) Trim(begin, end time.Time) *DataFrame[T] {
	if end.Before(begin) {
		return df.empty()
	}
	if _, ok := df.dateAt(0); !ok {
		return df
	}

	first := sort.Search(len(df.Index), func(i int) bool {
		dt, _ := df.dateAt(i)
		return !dt.Before(begin)
	})
	last := sort.Search(len(df.Index), func(i int) bool {
		dt, _ := df.dateAt(i)
		return dt.After(end)
	})
	if first >= last {
		return df.empty()
	}

	res := &DataFrame[T]{
		ColNames: df.ColNames,
		Index:    df.Index[first:last],
		Vals:     make([][]float64, len(df.Vals)),
	}
	for colIdx, col := range df.Vals {
		res.Vals[colIdx] = col[first:last]
	}
	return res
}

// empty returns a dataframe with the same columns as df but no rows
func (df *DataFrame[T]) empty() *DataFrame[T] {
	vals := make([][]float64, len(df.ColNames))
	for idx := range vals {
		vals[idx] = []float64{}
	}
	return &DataFrame[T]{
		ColNames: df.ColNames,
		Index:    []T{},
		Vals:     vals,
	}
}
