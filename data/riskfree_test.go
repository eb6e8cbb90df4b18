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
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-riskparity/data"
)

var _ = Describe("RiskFreeSeries", func() {
	var (
		series *data.RiskFreeSeries
		jan    time.Time
		feb    time.Time
		mar    time.Time
	)

	BeforeEach(func() {
		var err error
		series, err = data.NewRiskFreeSeries(map[string]float64{
			"2018-01": 0.0058,
			"2018-02": 0.0047,
		})
		Expect(err).To(BeNil())

		jan = time.Date(2018, 1, 31, 0, 0, 0, 0, time.UTC)
		feb = time.Date(2018, 2, 28, 0, 0, 0, 0, time.UTC)
		mar = time.Date(2018, 3, 31, 0, 0, 0, 0, time.UTC)
	})

	It("looks up a rate by month", func() {
		rate, ok := series.Rate(time.Date(2018, 1, 15, 0, 0, 0, 0, time.UTC))
		Expect(ok).To(BeTrue())
		Expect(rate).To(Equal(0.0058))
	})

	It("returns the rate for every date", func() {
		rates, err := series.Rates([]time.Time{jan, feb})
		Expect(err).To(BeNil())
		Expect(rates).To(Equal([]float64{0.0058, 0.0047}))
	})

	It("fails on an uncovered month", func() {
		_, err := series.Rates([]time.Time{jan, mar})
		Expect(errors.Is(err, data.ErrRiskFreeMissing)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("2018-03"))
		Expect(series.Covers([]time.Time{jan, mar})).To(BeFalse())
		Expect(series.Covers([]time.Time{jan, feb})).To(BeTrue())
	})

	It("annualizes the mean rate", func() {
		rate, ok := series.AnnualMean([]time.Time{jan, feb})
		Expect(ok).To(BeTrue())
		Expect(rate).To(BeNumerically("~", (0.0058+0.0047)/2*12, 1e-12))

		_, ok = series.AnnualMean([]time.Time{mar})
		Expect(ok).To(BeFalse())
	})

	It("lists months in order", func() {
		Expect(series.Months()).To(Equal([]string{"2018-01", "2018-02"}))
		Expect(series.Len()).To(Equal(2))
	})

	It("rejects invalid month keys", func() {
		_, err := data.NewRiskFreeSeries(map[string]float64{"2018/01": 0.01})
		Expect(errors.Is(err, data.ErrInvalidMonth)).To(BeTrue())
	})

	It("loads from csv", func() {
		loaded, err := data.LoadRiskFree(strings.NewReader("month,rate\n2019-01,0.0054\n2019-02-28,0.0049\n2019-03,\n"))
		Expect(err).To(BeNil())
		Expect(loaded.Months()).To(Equal([]string{"2019-01", "2019-02"}))

		rate, ok := loaded.Rate(time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC))
		Expect(ok).To(BeTrue())
		Expect(rate).To(Equal(0.0049))

		_, ok = loaded.Rate(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))
		Expect(ok).To(BeFalse())
	})
})
