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

package tradecron

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	AtMonthBegin = "@monthbegin"
	AtMonthEnd   = "@monthend"
)

// maximum number of months searched for the next matching month (a schedule such as
// `0 0 30 2 *` never fires)
const maxMonthSearch = 12 * 100

// maximum number of dates returned by Between for schedules without a month modifier
const maxDates = 10_000

// TradeCron is a rebalancing calendar for monthly data. It supports schedules via the
// standard CRON format of: Minutes(Min) Hours(H) DayOfMonth(DoM) Month(M) DayOfWeek(DoW)
// See: https://en.wikipedia.org/wiki/Cron
//
// Additional modifiers snap every month the schedule fires in to a month boundary:
//
//	@monthbegin - first calendar day of each month the timespec fires in
//	@monthend   - last calendar day of each month the timespec fires in
//
// Examples:
//   - every month end: @monthend
//   - January and July month ends: @monthend 0 0 1 1,7 *
//   - first day of each quarter: @monthbegin 0 0 1 1,4,7,10 *
type TradeCron struct {
	Schedule       cron.Schedule
	ScheduleString string
	TimeSpec       string
	DateFlag       string
}

// New parses cronSpec. Fields omitted at the end of the timespec default to '*'.
func New(cronSpec string) (*TradeCron, error) {
	specParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	scheduleStr := strings.TrimSpace(cronSpec)
	if scheduleStr == "" {
		return nil, ErrEmptySchedule
	}
	scheduleStr = expandBriefFormat(scheduleStr)

	// separate special tokens from timespec
	tokens := strings.Split(scheduleStr, " ")

	timeSpecTokens := make([]string, 0, 5)
	specialTokens := make([]string, 0, 1)
	for _, token := range tokens {
		if token[0] == '@' {
			specialTokens = append(specialTokens, token)
		} else {
			timeSpecTokens = append(timeSpecTokens, token)
		}
	}

	var dateFlag string
	for _, token := range specialTokens {
		switch token {
		case AtMonthBegin, AtMonthEnd:
			if dateFlag != "" {
				return nil, ErrConflictingModifiers
			}
			dateFlag = token
		default:
			log.Error().Str("Modifier", token).Str("TradeCronSpec", cronSpec).Msg("unknown tradecron modifier")
			return nil, ErrUnknownModifier
		}
	}

	timeSpec := strings.Join(timeSpecTokens, " ")
	schedule, err := specParser.Parse(timeSpec)
	if err != nil {
		log.Error().Err(err).Str("TimeSpec", timeSpec).Str("TradeCronSpec", cronSpec).Msg("robfig/cron could not parse timespec")
		return nil, err
	}

	tc := &TradeCron{
		Schedule:       schedule,
		ScheduleString: cronSpec,
		TimeSpec:       timeSpec,
		DateFlag:       dateFlag,
	}

	return tc, nil
}

// firesIn returns true if the timespec fires at least once in the month containing t
func (tc *TradeCron) firesIn(t time.Time) bool {
	begin := MonthBegin(t)
	next := tc.Schedule.Next(begin.Add(-time.Nanosecond))
	return !next.IsZero() && next.Before(NextMonth(begin))
}

// anchor snaps t to the month boundary selected by the date flag
func (tc *TradeCron) anchor(t time.Time) time.Time {
	if tc.DateFlag == AtMonthBegin {
		return MonthBegin(t)
	}
	return MonthEnd(t)
}

// IsRebalanceDay evaluates the given date against the schedule and returns true if the
// schedule fires on that calendar day. The time portion of forDate is ignored.
func (tc *TradeCron) IsRebalanceDay(forDate time.Time) bool {
	day := time.Date(forDate.Year(), forDate.Month(), forDate.Day(), 0, 0, 0, 0, forDate.Location())

	if tc.DateFlag != "" {
		return day.Equal(tc.anchor(day)) && tc.firesIn(day)
	}

	next := tc.Schedule.Next(day.Add(-time.Nanosecond))
	return !next.IsZero() && next.Before(day.AddDate(0, 0, 1))
}

// Next returns the first scheduled date strictly after forDate. The zero time is
// returned if the schedule never fires.
func (tc *TradeCron) Next(forDate time.Time) time.Time {
	if tc.DateFlag == "" {
		return tc.Schedule.Next(forDate)
	}

	month := MonthBegin(forDate)
	for ii := 0; ii < maxMonthSearch; ii++ {
		if tc.firesIn(month) {
			if anchor := tc.anchor(month); anchor.After(forDate) {
				return anchor
			}
		}
		month = NextMonth(month)
	}

	log.Warn().Str("TimeSpec", tc.TimeSpec).Time("ForDate", forDate).Msg("tradecron schedule never fires")
	return time.Time{}
}

// Between returns every scheduled date in the closed interval [begin, end] in
// increasing order
func (tc *TradeCron) Between(begin, end time.Time) ([]time.Time, error) {
	if end.Before(begin) {
		return nil, ErrInvalidRange
	}

	dates := make([]time.Time, 0, 16)
	next := tc.Next(begin.Add(-time.Nanosecond))
	for !next.IsZero() && !next.After(end) {
		if len(dates) >= maxDates {
			log.Warn().Str("TimeSpec", tc.TimeSpec).Int("MaxDates", maxDates).Msg("tradecron schedule truncated")
			break
		}
		dates = append(dates, next)
		next = tc.Next(next)
	}

	return dates, nil
}
