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

package data_test

import (
	"errors"
	"math"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-riskparity/data"
	"github.com/penny-vault/pv-riskparity/dataframe"
)

var _ = Describe("LoadReturns", func() {
	Context("with a log-return table", func() {
		var (
			df  *dataframe.DataFrame[time.Time]
			err error
		)

		BeforeEach(func() {
			table := `Date,petr4,VALE3
2018-01-31,0.010,-0.020
2018-02-28,0.020,0.015
2018-03-29,,0.005
`
			df, err = data.LoadReturns(strings.NewReader(table), data.LoadOptions{})
		})

		It("loads without error", func() {
			Expect(err).To(BeNil())
		})

		It("normalizes tickers", func() {
			Expect(df.ColNames).To(Equal([]string{"PETR4", "VALE3"}))
		})

		It("moves dates to the month end", func() {
			Expect(df.Index[2]).To(Equal(time.Date(2018, 3, 31, 0, 0, 0, 0, time.UTC)))
		})

		It("loads empty cells as NaN", func() {
			Expect(math.IsNaN(df.Vals[0][2])).To(BeTrue())
			Expect(df.Drop(math.NaN()).Len()).To(Equal(2))
		})

		It("keeps values", func() {
			Expect(df.Vals[1][0]).To(BeNumerically("~", -0.020, 1e-12))
		})
	})

	It("accepts month keys and scales values", func() {
		table := `date,A
2018-01,1.5
2018-02,-0.5
`
		df, err := data.LoadReturns(strings.NewReader(table), data.LoadOptions{Scale: 0.01})
		Expect(err).To(BeNil())
		Expect(df.Index[1]).To(Equal(time.Date(2018, 2, 28, 0, 0, 0, 0, time.UTC)))
		Expect(df.Vals[0][0]).To(BeNumerically("~", 0.015, 1e-12))
		Expect(df.Vals[0][1]).To(BeNumerically("~", -0.005, 1e-12))
	})

	It("converts prices to log returns", func() {
		table := `date,A
2018-01-31,100
2018-02-28,110
2018-03-31,99
`
		df, err := data.LoadReturns(strings.NewReader(table), data.LoadOptions{Kind: data.Prices})
		Expect(err).To(BeNil())
		Expect(df.Len()).To(Equal(2))
		Expect(df.Vals[0][0]).To(BeNumerically("~", math.Log(1.1), 1e-12))
		Expect(df.Vals[0][1]).To(BeNumerically("~", math.Log(0.9), 1e-12))
	})

	DescribeTable("rejects malformed tables", func(table string, opts data.LoadOptions, expected error) {
		_, err := data.LoadReturns(strings.NewReader(table), opts)
		Expect(err).ToNot(BeNil())
		if expected != nil {
			Expect(errors.Is(err, expected)).To(BeTrue(), err.Error())
		}
	},
		Entry("empty input", "", data.LoadOptions{}, data.ErrNoAssetColumns),
		Entry("no date column", "ticker,A\n2018-01-31,1\n", data.LoadOptions{}, data.ErrMissingDateColumn),
		Entry("no assets", "date\n2018-01-31\n", data.LoadOptions{}, data.ErrNoAssetColumns),
		Entry("duplicate ticker", "date,A,a\n2018-01-31,1,2\n", data.LoadOptions{}, data.ErrDuplicateColumn),
		Entry("bad date", "date,A\nJanuary,1\n", data.LoadOptions{}, data.ErrInvalidDate),
		Entry("bad value", "date,A\n2018-01-31,abc\n", data.LoadOptions{}, data.ErrInvalidValue),
		Entry("same month twice", "date,A\n2018-01-02,1\n2018-01-31,2\n", data.LoadOptions{}, data.ErrDuplicateMonth),
		Entry("unordered months", "date,A\n2018-02-28,1\n2018-01-31,2\n", data.LoadOptions{}, dataframe.ErrIndexNotIncreasing),
		Entry("unknown kind", "date,A\n2018-01-31,1\n", data.LoadOptions{Kind: "volume"}, data.ErrUnsupportedKind),
		Entry("ragged row", "date,A,B\n2018-01-31,1\n", data.LoadOptions{}, nil),
	)
})
