// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataframe_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-riskparity/dataframe"
)

func monthEnd(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("DataFrame", func() {
	Context("with no values", func() {
		var (
			df *dataframe.DataFrame[time.Time]
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame[time.Time]{}
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
		})

		It("has zero columns", func() {
			Expect(df.ColCount()).To(Equal(0))
		})

		It("does not error on drop", func() {
			df = df.Drop(1)
			Expect(df.Len()).To(Equal(0))
		})

		It("does not error on trim", func() {
			df = df.Trim(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
			Expect(df.Len()).To(Equal(0))
		})

		It("has a zero start and end", func() {
			Expect(df.Start().IsZero()).To(BeTrue())
			Expect(df.End().IsZero()).To(BeTrue())
		})

		It("prints no data", func() {
			Expect(df.Table()).To(Equal("<NO DATA>"))
		})
	})

	Context("with 2 years of month-end values and a single column", func() {
		var (
			df *dataframe.DataFrame[time.Time]
		)

		BeforeEach(func() {
			dates := make([]time.Time, 24)
			vals := make([]float64, 24)
			for idx := range dates {
				dates[idx] = monthEnd(2016+idx/12, time.Month(idx%12+1))
				vals[idx] = float64(idx)
			}
			df = &dataframe.DataFrame[time.Time]{
				ColNames: []string{"PETR4"},
				Index:    dates,
				Vals:     [][]float64{vals},
			}
		})

		It("has length", func() {
			Expect(df.Len()).To(Equal(24))
		})

		It("has 1 column", func() {
			Expect(df.ColCount()).To(Equal(1))
		})

		It("reports start and end", func() {
			Expect(df.Start()).To(Equal(monthEnd(2016, time.January)))
			Expect(df.End()).To(Equal(monthEnd(2017, time.December)))
		})

		It("can remove all 0s with drop", func() {
			df = df.Drop(0)
			Expect(df.Len()).To(Equal(23))
			Expect(df.Vals[0][0]).To(BeNumerically("==", 1.0))
		})

		DescribeTable("trims values by date range", func(a, b time.Time, expectedLen int, expectedA, expectedB time.Time) {
			df = df.Trim(a, b)
			Expect(df.Len()).To(Equal(expectedLen))
			Expect(df.Vals[0]).To(HaveLen(expectedLen))
			if expectedLen > 0 {
				Expect(df.Index[0]).To(Equal(expectedA), "expected begin date")
				Expect(df.Index[len(df.Index)-1]).To(Equal(expectedB), "expected end date")
			}
		},
			Entry("whole range", monthEnd(2016, time.January), monthEnd(2017, time.December), 24, monthEnd(2016, time.January), monthEnd(2017, time.December)),
			Entry("range that does not exist in dataframe (left)", time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2015, 12, 31, 0, 0, 0, 0, time.UTC), 0, time.Time{}, time.Time{}),
			Entry("range that does not exist in dataframe (right)", time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), 0, time.Time{}, time.Time{}),
			Entry("range that ends the day before the first row", time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2016, 1, 30, 0, 0, 0, 0, time.UTC), 0, time.Time{}, time.Time{}),
			Entry("range with bounds between rows", time.Date(2016, 2, 15, 0, 0, 0, 0, time.UTC), time.Date(2016, 5, 15, 0, 0, 0, 0, time.UTC), 3, monthEnd(2016, time.February), monthEnd(2016, time.April)),
			Entry("range that starts before begin", time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), monthEnd(2016, time.March), 3, monthEnd(2016, time.January), monthEnd(2016, time.March)),
			Entry("range that extends beyond the end", monthEnd(2017, time.October), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 3, monthEnd(2017, time.October), monthEnd(2017, time.December)),
			Entry("single date", monthEnd(2016, time.March), monthEnd(2016, time.March), 1, monthEnd(2016, time.March), monthEnd(2016, time.March)),
			Entry("inverted range", time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), 0, time.Time{}, time.Time{}),
		)

		It("does not modify the original when trimming", func() {
			trimmed := df.Trim(monthEnd(2016, time.June), monthEnd(2016, time.August))
			Expect(trimmed.Len()).To(Equal(3))
			Expect(df.Len()).To(Equal(24))
			Expect(df.Vals[0]).To(HaveLen(24))
		})

		It("copies values", func() {
			df2 := df.Copy()
			df2.Vals[0][0] = 100
			Expect(df.Vals[0][0]).To(Equal(0.0))
		})

		It("prints a table", func() {
			Expect(df.Table()).To(ContainSubstring("2016-01-31"))
			Expect(df.Table()).To(ContainSubstring("PETR4"))
		})
	})

	Context("with NaN values in dataframe", func() {
		var (
			df *dataframe.DataFrame[time.Time]
		)

		BeforeEach(func() {
			dates := make([]time.Time, 10)
			dt := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
			for idx := range dates {
				dates[idx] = dt
				dt = dt.AddDate(0, 0, 1)
			}

			vals1 := make([]float64, 10)
			vals2 := make([]float64, 10)

			for idx := range dates {
				if idx < 5 {
					vals1[idx] = float64(idx)
				} else {
					vals1[idx] = math.NaN()
				}

				if idx < 6 {
					vals2[idx] = float64(idx)
				} else {
					vals2[idx] = math.NaN()
				}
			}

			df = &dataframe.DataFrame[time.Time]{
				ColNames: []string{"Col1", "Col2"},
				Index:    dates,
				Vals:     [][]float64{vals1, vals2},
			}
		})

		It("drops NaNs", func() {
			Expect(df.Len()).To(Equal(10))
			df = df.Drop(math.NaN())
			Expect(df.Len()).To(Equal(5), "length")
			Expect(df.ColCount()).To(Equal(2), "col count")
			Expect(df.Vals[0]).To(Equal([]float64{0.0, 1.0, 2.0, 3.0, 4.0}), "vals1")
			Expect(df.Vals[1]).To(Equal([]float64{0.0, 1.0, 2.0, 3.0, 4.0}), "vals2")
			Expect(df.Index[4]).To(Equal(time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)), "last date")
		})
	})

	Context("multi-column", func() {
		var (
			df *dataframe.DataFrame[time.Time]
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame[time.Time]{
				ColNames: []string{"PETR4", "VALE3", "ITUB4"},
				Index: []time.Time{
					monthEnd(2018, time.January),
					monthEnd(2018, time.February),
					monthEnd(2018, time.March),
				},
				Vals: [][]float64{
					{0.01, 0.02, 0.03},
					{-0.01, 0.00, 0.01},
					{0.05, -0.05, 0.00},
				},
			}
		})

		It("selects columns in the requested order", func() {
			sub, err := df.Select("ITUB4", "PETR4")
			Expect(err).To(BeNil())
			Expect(sub.ColNames).To(Equal([]string{"ITUB4", "PETR4"}))
			Expect(sub.Vals[0]).To(Equal([]float64{0.05, -0.05, 0.00}))
		})

		It("reports every missing column", func() {
			_, err := df.Select("PETR4", "WEGE3", "RENT3")
			Expect(errors.Is(err, dataframe.ErrColumnNotFound)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("WEGE3, RENT3"))
		})

		It("looks up a column", func() {
			col, err := df.Column("VALE3")
			Expect(err).To(BeNil())
			Expect(col).To(Equal([]float64{-0.01, 0.00, 0.01}))

			_, err = df.Column("XXXX3")
			Expect(errors.Is(err, dataframe.ErrColumnNotFound)).To(BeTrue())
		})

		It("returns a row", func() {
			Expect(df.Row(1)).To(Equal([]float64{0.02, 0.00, -0.05}))
		})

		It("computes weighted sums", func() {
			rets, err := df.Dot([]float64{0.5, 0.25, 0.25})
			Expect(err).To(BeNil())
			Expect(rets).To(HaveLen(3))
			Expect(rets[0]).To(BeNumerically("~", 0.005+(-0.0025)+0.0125, 1e-12))
			Expect(rets[2]).To(BeNumerically("~", 0.015+0.0025, 1e-12))
		})

		It("rejects weights that do not match the columns", func() {
			_, err := df.Dot([]float64{1})
			Expect(err).To(MatchError(dataframe.ErrLengthMismatch))
		})

		It("scales values without touching the original", func() {
			scaled := df.MulScalar(100)
			Expect(scaled.Vals[0][0]).To(BeNumerically("~", 1.0, 1e-12))
			Expect(df.Vals[0][0]).To(Equal(0.01))
		})
	})

	Context("when inserting rows", func() {
		var (
			df *dataframe.DataFrame[time.Time]
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame[time.Time]{
				ColNames: []string{"A", "B"},
			}
		})

		It("appends rows in order", func() {
			Expect(df.InsertRow(monthEnd(2018, time.January), 1, 2)).To(Succeed())
			Expect(df.InsertRow(monthEnd(2018, time.February), 3, 4)).To(Succeed())
			Expect(df.Len()).To(Equal(2))
			Expect(df.Vals[1]).To(Equal([]float64{2, 4}))
		})

		It("refuses rows that are out of order", func() {
			Expect(df.InsertRow(monthEnd(2018, time.February), 1, 2)).To(Succeed())
			Expect(df.InsertRow(monthEnd(2018, time.January), 3, 4)).To(MatchError(dataframe.ErrIndexNotIncreasing))
		})

		It("refuses rows with the wrong number of values", func() {
			Expect(df.InsertRow(monthEnd(2018, time.January), 1)).To(MatchError(dataframe.ErrLengthMismatch))
		})
	})

	Context("when converting prices to log returns", func() {
		It("computes ln(p_t/p_t-1)", func() {
			prices := &dataframe.DataFrame[time.Time]{
				ColNames: []string{"WEGE3"},
				Index: []time.Time{
					monthEnd(2018, time.January),
					monthEnd(2018, time.February),
					monthEnd(2018, time.March),
				},
				Vals: [][]float64{{10, 11, 9.9}},
			}

			rets, err := prices.LogReturns()
			Expect(err).To(BeNil())
			Expect(rets.Len()).To(Equal(2))
			Expect(rets.Index[0]).To(Equal(monthEnd(2018, time.February)))
			Expect(rets.Vals[0][0]).To(BeNumerically("~", math.Log(1.1), 1e-12))
			Expect(rets.Vals[0][1]).To(BeNumerically("~", math.Log(0.9), 1e-12))
		})

		It("marks non-positive prices as NaN", func() {
			prices := &dataframe.DataFrame[time.Time]{
				ColNames: []string{"WEGE3"},
				Index:    []time.Time{monthEnd(2018, time.January), monthEnd(2018, time.February)},
				Vals:     [][]float64{{0, 11}},
			}

			rets, err := prices.LogReturns()
			Expect(err).To(BeNil())
			Expect(math.IsNaN(rets.Vals[0][0])).To(BeTrue())
		})

		It("needs at least two rows", func() {
			prices := &dataframe.DataFrame[time.Time]{
				ColNames: []string{"WEGE3"},
				Index:    []time.Time{monthEnd(2018, time.January)},
				Vals:     [][]float64{{10}},
			}
			_, err := prices.LogReturns()
			Expect(err).To(MatchError(dataframe.ErrNotEnoughRows))
		})
	})
})
