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

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/dataframe"
	"github.com/penny-vault/pv-riskparity/tradecron"
)

const (
	DefaultWindow            = 24
	DefaultGap               = 2
	DefaultMinEstimationRows = 20
	DefaultMinTestRows       = 3
	DefaultLabel             = "Semester"
)

// Period is one rebalancing cycle. Parameters are estimated from the half-open
// interval (EstimationStart, EstimationEnd] and evaluated on [TestStart, TestEnd).
type Period struct {
	Index           int       `json:"index"`
	Name            string    `json:"name"`
	EstimationStart time.Time `json:"estimationStart"`
	EstimationEnd   time.Time `json:"estimationEnd"`
	TestStart       time.Time `json:"testStart"`
	TestEnd         time.Time `json:"testEnd"`
}

// EstimationSlice returns the rows of df used to estimate parameters for the period
func (p *Period) EstimationSlice(df *dataframe.DataFrame[time.Time]) *dataframe.DataFrame[time.Time] {
	return df.Trim(p.EstimationStart.Add(time.Nanosecond), p.EstimationEnd)
}

// TestSlice returns the rows of df the period's weights are evaluated on
func (p *Period) TestSlice(df *dataframe.DataFrame[time.Time]) *dataframe.DataFrame[time.Time] {
	return df.Trim(p.TestStart, p.TestEnd.Add(-time.Nanosecond))
}

func (p *Period) String() string {
	return fmt.Sprintf("%s (estimate %s..%s, test %s..%s)", p.Name,
		p.EstimationStart.Format(common.DateFormat), p.EstimationEnd.Format(common.DateFormat),
		p.TestStart.Format(common.DateFormat), p.TestEnd.Format(common.DateFormat))
}

// Scheduler partitions a backtest into non-overlapping rebalancing periods
type Scheduler struct {
	anchors           []time.Time
	window            int
	gap               int
	minEstimationRows int
	minTestRows       int
	label             string
}

type Option func(*Scheduler)

// WithWindow sets the estimation window length in months
func WithWindow(months int) Option {
	return func(s *Scheduler) {
		s.window = months
	}
}

// WithGap sets the number of months between the estimation end and the anchor
func WithGap(months int) Option {
	return func(s *Scheduler) {
		s.gap = months
	}
}

// WithMinObservations sets the minimum number of rows required in the estimation
// and test slices
func WithMinObservations(estimation, test int) Option {
	return func(s *Scheduler) {
		s.minEstimationRows = estimation
		s.minTestRows = test
	}
}

// WithLabel sets the prefix of period names
func WithLabel(label string) Option {
	return func(s *Scheduler) {
		s.label = label
	}
}

// New creates a scheduler whose test windows run between consecutive anchors
func New(anchors []time.Time, opts ...Option) (*Scheduler, error) {
	if len(anchors) < 2 {
		return nil, ErrTooFewAnchors
	}

	for ii := 1; ii < len(anchors); ii++ {
		if !anchors[ii].After(anchors[ii-1]) {
			log.Error().Time("Previous", anchors[ii-1]).Time("Anchor", anchors[ii]).Msg("rebalancing anchors out of order")
			return nil, fmt.Errorf("%w: %s follows %s", ErrAnchorsNotIncreasing,
				anchors[ii].Format(common.DateFormat), anchors[ii-1].Format(common.DateFormat))
		}
	}

	s := &Scheduler{
		anchors:           make([]time.Time, len(anchors)),
		window:            DefaultWindow,
		gap:               DefaultGap,
		minEstimationRows: DefaultMinEstimationRows,
		minTestRows:       DefaultMinTestRows,
		label:             DefaultLabel,
	}
	copy(s.anchors, anchors)

	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.window < 1:
		return nil, ErrInvalidWindow
	case s.gap < 1:
		return nil, ErrInvalidGap
	case s.minEstimationRows < 1 || s.minTestRows < 1:
		return nil, ErrInvalidMinimum
	}

	return s, nil
}

// FromCalendar creates a scheduler whose anchors are the dates the tradecron spec
// fires on between begin and end (inclusive)
func FromCalendar(spec string, begin, end time.Time, opts ...Option) (*Scheduler, error) {
	calendar, err := tradecron.New(spec)
	if err != nil {
		return nil, err
	}

	anchors, err := calendar.Between(begin, end)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("Calendar", spec).Int("NumAnchors", len(anchors)).Msg("built rebalancing anchors")
	return New(anchors, opts...)
}

// Anchors returns a copy of the rebalancing anchors
func (s *Scheduler) Anchors() []time.Time {
	anchors := make([]time.Time, len(s.anchors))
	copy(anchors, s.anchors)
	return anchors
}

// Periods returns one period per pair of consecutive anchors
func (s *Scheduler) Periods() []*Period {
	periods := make([]*Period, 0, len(s.anchors)-1)
	for ii := 0; ii < len(s.anchors)-1; ii++ {
		estimationEnd := common.ShiftMonths(s.anchors[ii], -s.gap)
		periods = append(periods, &Period{
			Index:           ii,
			Name:            fmt.Sprintf("%s %d", s.label, ii+1),
			EstimationStart: common.ShiftMonths(estimationEnd, -s.window),
			EstimationEnd:   estimationEnd,
			TestStart:       s.anchors[ii],
			TestEnd:         s.anchors[ii+1],
		})
	}
	return periods
}

// Plan returns the periods that have enough observations in returns. Every skipped
// period is reported with a DataInsufficiency diagnostic.
func (s *Scheduler) Plan(returns *dataframe.DataFrame[time.Time]) ([]*Period, []common.Diagnostic) {
	periods := s.Periods()
	planned := make([]*Period, 0, len(periods))
	diags := make([]common.Diagnostic, 0)

	for _, period := range periods {
		estimationRows := period.EstimationSlice(returns).Len()
		testRows := period.TestSlice(returns).Len()

		if estimationRows < s.minEstimationRows {
			diags = append(diags, common.NewDiagnostic(common.DataInsufficiency, period.Name, "",
				"estimation window %s..%s has %d observations, %d required",
				period.EstimationStart.Format(common.DateFormat), period.EstimationEnd.Format(common.DateFormat),
				estimationRows, s.minEstimationRows))
			continue
		}

		if testRows < s.minTestRows {
			diags = append(diags, common.NewDiagnostic(common.DataInsufficiency, period.Name, "",
				"test window %s..%s has %d observations, %d required",
				period.TestStart.Format(common.DateFormat), period.TestEnd.Format(common.DateFormat),
				testRows, s.minTestRows))
			continue
		}

		log.Debug().Str("Period", period.Name).Int("EstimationRows", estimationRows).Int("TestRows", testRows).Msg("planned period")
		planned = append(planned, period)
	}

	return planned, diags
}
