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
	"sort"
	"strings"
	"time"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/rs/zerolog/log"
)

// RiskFreeSeries maps a calendar month to its monthly risk free rate
type RiskFreeSeries struct {
	rates map[string]float64
}

// NewRiskFreeSeries creates a series from month keys in YYYY-MM form
func NewRiskFreeSeries(rates map[string]float64) (*RiskFreeSeries, error) {
	series := &RiskFreeSeries{
		rates: make(map[string]float64, len(rates)),
	}

	for month, rate := range rates {
		month = strings.TrimSpace(month)
		if _, err := time.Parse(common.MonthFormat, month); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
		}
		series.rates[month] = rate
	}

	return series, nil
}

// LoadRiskFreeFile reads a two column (month, rate) CSV file
func LoadRiskFreeFile(fn string) (*RiskFreeSeries, error) {
	fh, err := os.Open(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not open risk free file")
		return nil, err
	}
	defer fh.Close()

	return LoadRiskFree(fh)
}

// LoadRiskFree parses a two column CSV with a header row. The first column is a month
// (YYYY-MM or a full date) and the second the monthly rate as a decimal fraction.
func LoadRiskFree(r io.Reader) (*RiskFreeSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = 2

	if _, err := reader.Read(); err != nil {
		return nil, err
	}

	rates := make(map[string]float64)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		date, err := parseMonth(record[0], common.DateFormat)
		if err != nil {
			return nil, err
		}

		rate, err := parseValue(record[1])
		if err != nil {
			return nil, err
		}
		if math.IsNaN(rate) {
			continue
		}
		rates[common.MonthKey(date)] = rate
	}

	return NewRiskFreeSeries(rates)
}

// Len returns the number of months in the series
func (s *RiskFreeSeries) Len() int {
	return len(s.rates)
}

// Months returns the covered months in ascending order
func (s *RiskFreeSeries) Months() []string {
	months := make([]string, 0, len(s.rates))
	for month := range s.rates {
		months = append(months, month)
	}
	sort.Strings(months)
	return months
}

// Rate returns the monthly rate for the month containing t
func (s *RiskFreeSeries) Rate(t time.Time) (float64, bool) {
	rate, ok := s.rates[common.MonthKey(t)]
	return rate, ok
}

// Rates returns the monthly rate of every date; a date in an uncovered month is an error
func (s *RiskFreeSeries) Rates(dates []time.Time) ([]float64, error) {
	rates := make([]float64, len(dates))
	for idx, date := range dates {
		rate, ok := s.Rate(date)
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrRiskFreeMissing, common.MonthKey(date))
		}
		rates[idx] = rate
	}
	return rates, nil
}

// Covers returns true if every date falls in a covered month
func (s *RiskFreeSeries) Covers(dates []time.Time) bool {
	for _, date := range dates {
		if _, ok := s.Rate(date); !ok {
			return false
		}
	}
	return true
}

// AnnualMean returns the mean monthly rate over dates scaled to a year. The boolean is
// false when dates is empty or not fully covered.
func (s *RiskFreeSeries) AnnualMean(dates []time.Time) (float64, bool) {
	if len(dates) == 0 {
		return 0, false
	}

	rates, err := s.Rates(dates)
	if err != nil {
		return 0, false
	}

	sum := 0.0
	for _, rate := range rates {
		sum += rate
	}
	return sum / float64(len(rates)) * common.PeriodsPerYear, true
}
