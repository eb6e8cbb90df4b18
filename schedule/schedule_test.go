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

package schedule_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/schedule"
	"github.com/penny-vault/pv-riskparity/tradecron"
)

var _ = Describe("Schedule", func() {
	Context("when creating a scheduler", func() {
		It("requires at least two anchors", func() {
			_, err := schedule.New([]time.Time{monthEnd(2018, time.January)})
			Expect(err).To(MatchError(schedule.ErrTooFewAnchors))
		})

		It("requires strictly increasing anchors", func() {
			anchors := []time.Time{monthEnd(2018, time.July), monthEnd(2018, time.January)}
			_, err := schedule.New(anchors)
			Expect(err).To(MatchError(schedule.ErrAnchorsNotIncreasing))

			anchors = []time.Time{monthEnd(2018, time.July), monthEnd(2018, time.July)}
			_, err = schedule.New(anchors)
			Expect(err).To(MatchError(schedule.ErrAnchorsNotIncreasing))
		})

		DescribeTable("validates options",
			func(opt schedule.Option, expected error) {
				_, err := schedule.New(semiannualAnchors(), opt)
				Expect(err).To(MatchError(expected))
			},
			Entry("zero window", schedule.WithWindow(0), schedule.ErrInvalidWindow),
			Entry("zero gap", schedule.WithGap(0), schedule.ErrInvalidGap),
			Entry("negative estimation minimum", schedule.WithMinObservations(-1, 3), schedule.ErrInvalidMinimum),
			Entry("zero test minimum", schedule.WithMinObservations(20, 0), schedule.ErrInvalidMinimum),
		)

		It("does not share the anchor slice with the caller", func() {
			anchors := semiannualAnchors()
			s, err := schedule.New(anchors)
			Expect(err).To(BeNil())

			anchors[0] = monthEnd(2000, time.January)
			Expect(s.Anchors()[0]).To(Equal(monthEnd(2018, time.January)))
		})
	})

	Context("when generating periods", func() {
		var periods []*schedule.Period

		BeforeEach(func() {
			s, err := schedule.New(semiannualAnchors())
			Expect(err).To(BeNil())
			periods = s.Periods()
		})

		It("creates one period per pair of anchors", func() {
			Expect(periods).To(HaveLen(4))
			Expect(periods[0].Name).To(Equal("Semester 1"))
			Expect(periods[3].Name).To(Equal("Semester 4"))
			Expect(periods[2].Index).To(Equal(2))
		})

		It("places the estimation window before the gap", func() {
			Expect(periods[0].EstimationEnd).To(Equal(monthEnd(2017, time.November)))
			Expect(periods[0].EstimationStart).To(Equal(monthEnd(2015, time.November)))
			Expect(periods[0].TestStart).To(Equal(monthEnd(2018, time.January)))
			Expect(periods[0].TestEnd).To(Equal(monthEnd(2018, time.July)))

			Expect(periods[1].EstimationEnd).To(Equal(monthEnd(2018, time.May)))
			Expect(periods[1].EstimationStart).To(Equal(monthEnd(2016, time.May)))
		})

		It("ends every estimation window strictly before its test window", func() {
			for _, period := range periods {
				Expect(period.EstimationEnd.Before(period.TestStart)).To(BeTrue(), period.String())
			}
		})

		It("never overlaps consecutive test windows", func() {
			for ii := 1; ii < len(periods); ii++ {
				Expect(periods[ii].TestStart.Before(periods[ii-1].TestEnd)).To(BeFalse())
				Expect(periods[ii].TestStart).To(Equal(periods[ii-1].TestEnd))
			}
		})

		It("honors custom window and gap", func() {
			s, err := schedule.New(semiannualAnchors(), schedule.WithWindow(12), schedule.WithGap(1), schedule.WithLabel("Period"))
			Expect(err).To(BeNil())
			periods := s.Periods()
			Expect(periods[0].Name).To(Equal("Period 1"))
			Expect(periods[0].EstimationEnd).To(Equal(monthEnd(2017, time.December)))
			Expect(periods[0].EstimationStart).To(Equal(monthEnd(2016, time.December)))
		})
	})

	Context("when slicing returns", func() {
		It("selects exactly window rows for estimation and the anchor months for test", func() {
			df := monthlyFrame(monthEnd(2015, time.January), monthEnd(2019, time.December))
			s, err := schedule.New(semiannualAnchors())
			Expect(err).To(BeNil())

			period := s.Periods()[0]
			estimation := period.EstimationSlice(df)
			Expect(estimation.Len()).To(Equal(24))
			Expect(estimation.Start()).To(Equal(monthEnd(2015, time.December)))
			Expect(estimation.End()).To(Equal(monthEnd(2017, time.November)))

			test := period.TestSlice(df)
			Expect(test.Len()).To(Equal(6))
			Expect(test.Start()).To(Equal(monthEnd(2018, time.January)))
			Expect(test.End()).To(Equal(monthEnd(2018, time.June)))
		})
	})

	Context("when planning a backtest", func() {
		It("keeps every period with enough data", func() {
			df := monthlyFrame(monthEnd(2015, time.December), monthEnd(2019, time.December))
			s, err := schedule.New(semiannualAnchors())
			Expect(err).To(BeNil())

			planned, diags := s.Plan(df)
			Expect(planned).To(HaveLen(4))
			Expect(diags).To(BeEmpty())
		})

		It("skips periods with a short estimation window and reports them", func() {
			df := monthlyFrame(monthEnd(2016, time.June), monthEnd(2019, time.December))
			s, err := schedule.New(semiannualAnchors())
			Expect(err).To(BeNil())

			planned, diags := s.Plan(df)
			Expect(planned).To(HaveLen(3))
			Expect(planned[0].Name).To(Equal("Semester 2"))
			Expect(diags).To(HaveLen(1))
			Expect(diags[0].Kind).To(Equal(common.DataInsufficiency))
			Expect(diags[0].Period).To(Equal("Semester 1"))
			Expect(diags[0].Message).To(ContainSubstring("18 observations"))
		})

		It("skips periods with a short test window and reports them", func() {
			df := monthlyFrame(monthEnd(2015, time.December), monthEnd(2019, time.August))
			s, err := schedule.New(semiannualAnchors())
			Expect(err).To(BeNil())

			planned, diags := s.Plan(df)
			Expect(planned).To(HaveLen(3))
			Expect(diags).To(HaveLen(1))
			Expect(diags[0].Period).To(Equal("Semester 4"))
			Expect(diags[0].Message).To(ContainSubstring("test window"))
		})

		It("accepts a relaxed minimum", func() {
			df := monthlyFrame(monthEnd(2016, time.June), monthEnd(2019, time.August))
			s, err := schedule.New(semiannualAnchors(), schedule.WithMinObservations(12, 2))
			Expect(err).To(BeNil())

			planned, diags := s.Plan(df)
			Expect(planned).To(HaveLen(4))
			Expect(diags).To(BeEmpty())
		})
	})

	Context("when building anchors from a calendar", func() {
		It("uses January and July month ends", func() {
			s, err := schedule.FromCalendar("@monthend 0 0 1 1,7 *", monthEnd(2018, time.January), monthEnd(2020, time.January))
			Expect(err).To(BeNil())
			Expect(s.Anchors()).To(Equal(semiannualAnchors()))
		})

		It("passes options through", func() {
			s, err := schedule.FromCalendar("@monthend 0 0 1 1,7 *", monthEnd(2018, time.January), monthEnd(2020, time.January), schedule.WithWindow(12))
			Expect(err).To(BeNil())
			Expect(s.Periods()[0].EstimationStart).To(Equal(monthEnd(2016, time.November)))
		})

		It("surfaces calendar errors", func() {
			_, err := schedule.FromCalendar("@open", monthEnd(2018, time.January), monthEnd(2020, time.January))
			Expect(err).To(MatchError(tradecron.ErrUnknownModifier))
		})

		It("fails when the calendar yields a single anchor", func() {
			_, err := schedule.FromCalendar("@monthend 0 0 1 1 *", monthEnd(2018, time.January), monthEnd(2018, time.December))
			Expect(err).To(MatchError(schedule.ErrTooFewAnchors))
		})
	})
})
