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

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/dataframe"
	"github.com/rs/zerolog/log"
)

// InputKind describes what the values of the input table represent
type InputKind string

const (
	LogReturns InputKind = "log_returns"
	Prices     InputKind = "prices"
)

// LoadOptions control how a return table is parsed
type LoadOptions struct {
	// Kind of values stored in the table; defaults to LogReturns
	Kind InputKind

	// Scale multiplies every value after loading (e.g. 0.01 for tables in percent);
	// zero means 1
	Scale float64

	// DateLayout used to parse the first column; defaults to common.DateFormat.
	// Values in YYYY-MM form are always accepted.
	DateLayout string
}

// LoadReturnsFile reads a return table from a CSV file on disk
func LoadReturnsFile(fn string, opts LoadOptions) (*dataframe.DataFrame[time.Time], error) {
	fh, err := os.Open(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not open return table")
		return nil, err
	}
	defer fh.Close()

	return LoadReturns(fh, opts)
}

// LoadReturns parses a rectangular CSV table of monthly observations. The header row
// holds a date column followed by one column per ticker. Every date is moved to the end
// of its month so that rows are keyed by month. Empty cells are loaded as NaN; callers
// align the table by dropping rows with missing values.
func LoadReturns(r io.Reader, opts LoadOptions) (*dataframe.DataFrame[time.Time], error) {
	if opts.Kind == "" {
		opts.Kind = LogReturns
	}
	if opts.Kind != LogReturns && opts.Kind != Prices {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, opts.Kind)
	}
	if opts.DateLayout == "" {
		opts.DateLayout = common.DateFormat
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoAssetColumns
		}
		return nil, err
	}

	if !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, ErrMissingDateColumn
	}

	tickers := header[1:]
	if len(tickers) == 0 {
		return nil, ErrNoAssetColumns
	}
	common.ArrToUpper(tickers)

	seen := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		if seen[ticker] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, ticker)
		}
		seen[ticker] = true
	}

	df := &dataframe.DataFrame[time.Time]{
		Index:    make([]time.Time, 0, 120),
		ColNames: tickers,
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			log.Error().Err(err).Int("Line", line).Msg("could not read return table")
			return nil, err
		}

		date, err := parseMonth(record[0], opts.DateLayout)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		vals := make([]float64, len(tickers))
		for idx, cell := range record[1:] {
			vals[idx], err = parseValue(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, tickers[idx], err)
			}
		}

		if df.Len() > 0 && df.End().Equal(date) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMonth, common.MonthKey(date))
		}

		if err := df.InsertRow(date, vals...); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	if opts.Kind == Prices {
		df, err = df.LogReturns()
		if err != nil {
			return nil, err
		}
	}

	if opts.Scale != 0 && opts.Scale != 1 {
		df = df.MulScalar(opts.Scale)
	}

	log.Debug().Int("Rows", df.Len()).Int("Assets", df.ColCount()).Str("Kind", string(opts.Kind)).Msg("loaded return table")
	return df, nil
}

func parseMonth(val, layout string) (time.Time, error) {
	val = strings.TrimSpace(val)

	date, err := time.Parse(layout, val)
	if err != nil {
		date, err = time.Parse(common.MonthFormat, val)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, val)
		}
	}

	return time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, time.UTC), nil
}

func parseValue(val string) (float64, error) {
	val = strings.TrimSpace(val)
	if val == "" || strings.EqualFold(val, "nan") {
		return math.NaN(), nil
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, val)
	}
	return f, nil
}
