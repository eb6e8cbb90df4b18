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

package portfolio_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-riskparity/dataframe"
	"github.com/penny-vault/pv-riskparity/portfolio"
	"gonum.org/v1/gonum/stat"
)

func constant(val float64, n int) []float64 {
	res := make([]float64, n)
	for idx := range res {
		res[idx] = val
	}
	return res
}

var _ = Describe("Evaluator", func() {
	var (
		evaluator *portfolio.Evaluator
	)

	BeforeEach(func() {
		evaluator = portfolio.NewEvaluator("")
	})

	It("defaults to the geometric convention", func() {
		Expect(evaluator.Convention).To(Equal(portfolio.Geometric))
	})

	Context("when the portfolio earns exactly the risk free rate", func() {
		var (
			metrics *portfolio.PeriodMetrics
		)

		BeforeEach(func() {
			var err error
			rf := constant(0.005, 6)
			metrics, err = evaluator.Evaluate(rf, rf)
			Expect(err).To(BeNil())
		})

		It("has a zero Sharpe ratio", func() {
			Expect(metrics.SharpeRatio).To(BeNumerically("~", 0, 1e-12))
		})

		It("has an undefined Sortino ratio", func() {
			Expect(metrics.SortinoRatio).To(Equal(portfolio.SortinoUndefined))
			Expect(metrics.SortinoDefined()).To(BeFalse())
		})

		It("has no drawdown", func() {
			Expect(metrics.MaxDrawDown).To(Equal(0.0))
		})

		It("compounds the risk free rate", func() {
			Expect(metrics.RiskFree).To(BeNumerically("~", math.Pow(1.005, 12)-1, 1e-12))
			Expect(metrics.AnnualReturn).To(BeNumerically("~", 0.06, 1e-12))
		})
	})

	It("has a zero Sharpe ratio under the arithmetic convention with varying rates", func() {
		rf := []float64{0.004, 0.006, 0.005, 0.007, 0.003, 0.005}
		metrics, err := portfolio.NewEvaluator(portfolio.Arithmetic).Evaluate(rf, rf)
		Expect(err).To(BeNil())
		Expect(metrics.AnnualVolatility).To(BeNumerically(">", 0))
		Expect(metrics.SharpeRatio).To(BeNumerically("~", 0, 1e-12))
		Expect(metrics.SortinoRatio).To(Equal(portfolio.SortinoUndefined))
	})

	It("leaves the Sortino ratio undefined with a single downside month", func() {
		returns := []float64{0.03, -0.02, 0.01, 0.04, 0.05, 0.02}
		metrics, err := evaluator.Evaluate(returns, constant(0.005, 6))
		Expect(err).To(BeNil())
		Expect(metrics.DownsideMonths).To(Equal(1))
		Expect(metrics.SortinoRatio).To(Equal(portfolio.SortinoUndefined))
		Expect(metrics.SortinoDefined()).To(BeFalse())
	})

	Context("with a volatile period", func() {
		var (
			returns []float64
			rf      []float64
			metrics *portfolio.PeriodMetrics
		)

		BeforeEach(func() {
			var err error
			returns = []float64{0.03, -0.02, 0.01, -0.04, 0.05, 0.02}
			rf = constant(0.005, 6)
			metrics, err = evaluator.Evaluate(returns, rf)
			Expect(err).To(BeNil())
		})

		It("annualizes the return arithmetically", func() {
			Expect(metrics.AnnualReturn).To(BeNumerically("~", 0.05*12/6, 1e-12))
		})

		It("annualizes the volatility", func() {
			Expect(metrics.AnnualVolatility).To(BeNumerically("~", stat.StdDev(returns, nil)*math.Sqrt(12), 1e-12))
		})

		It("computes the Sharpe ratio", func() {
			expected := (0.1 - (math.Pow(1.005, 12) - 1)) / (stat.StdDev(returns, nil) * math.Sqrt(12))
			Expect(metrics.SharpeRatio).To(BeNumerically("~", expected, 1e-12))
		})

		It("computes the Sortino ratio from downside months only", func() {
			// excess returns of -0.025 and -0.045
			downside := stat.StdDev([]float64{-0.025, -0.045}, nil) * math.Sqrt(12)
			meanExcess := (0.05 - 6*0.005) / 6
			Expect(metrics.DownsideMonths).To(Equal(2))
			Expect(metrics.SortinoRatio).To(BeNumerically("~", meanExcess*12/downside, 1e-12))
			Expect(metrics.SortinoRatio).To(BeNumerically("~", 0.816497, 1e-6))
		})

		It("computes the drawdown of the compounded path", func() {
			// peak after month 1 at exp(0.03); trough after month 4 at exp(-0.02)
			Expect(metrics.MaxDrawDown).To(BeNumerically("~", math.Exp(-0.05)-1, 1e-12))
		})
	})

	It("has no volatility for a single month", func() {
		metrics, err := evaluator.Evaluate([]float64{0.02}, []float64{0.005})
		Expect(err).To(BeNil())
		Expect(metrics.AnnualVolatility).To(Equal(0.0))
		Expect(metrics.SharpeRatio).To(Equal(0.0))
	})

	It("requires returns", func() {
		_, err := evaluator.Evaluate(nil, nil)
		Expect(errors.Is(err, portfolio.ErrNoReturns)).To(BeTrue())
	})

	It("requires one risk free rate per month", func() {
		_, err := evaluator.Evaluate([]float64{0.01, 0.02}, []float64{0.005})
		Expect(errors.Is(err, portfolio.ErrLengthMismatch)).To(BeTrue())
	})

	DescribeTable("maximum drawdown", func(returns []float64, expected float64) {
		Expect(portfolio.MaxDrawDown(returns)).To(BeNumerically("~", expected, 1e-12))
	},
		Entry("non-decreasing path", []float64{0.01, 0, 0.02, 0.03}, 0.0),
		Entry("empty path", []float64{}, 0.0),
		Entry("immediate loss", []float64{-0.1, 0.05}, math.Exp(-0.1)-1),
		Entry("worst of two", []float64{0.1, -0.05, 0.2, -0.15, -0.05}, math.Exp(-0.2)-1),
	)

	It("charges transaction costs against the first month", func() {
		returns := []float64{0.01, 0.02}
		adjusted := portfolio.ApplyTransactionCost(returns, 0.5, 20)
		Expect(adjusted[0]).To(BeNumerically("~", 0.01-0.5*0.002, 1e-15))
		Expect(adjusted[1]).To(Equal(0.02))
		Expect(returns[0]).To(Equal(0.01))
	})

	It("computes portfolio returns from a test window", func() {
		test := &dataframe.DataFrame[time.Time]{
			Index:    []time.Time{time.Date(2018, 1, 31, 0, 0, 0, 0, time.UTC), time.Date(2018, 2, 28, 0, 0, 0, 0, time.UTC)},
			ColNames: []string{"A", "B", "C"},
			Vals:     [][]float64{{0.01, 0.02}, {0.03, -0.01}, {1, 1}},
		}
		w, _ := portfolio.NewWeights([]string{"B", "A"}, []float64{0.25, 0.75})
		rets, err := portfolio.PortfolioReturns(test, w)
		Expect(err).To(BeNil())
		Expect(rets[0]).To(BeNumerically("~", 0.25*0.03+0.75*0.01, 1e-15))
		Expect(rets[1]).To(BeNumerically("~", 0.25*-0.01+0.75*0.02, 1e-15))

		missing, _ := portfolio.NewWeights([]string{"D"}, []float64{1})
		_, err = portfolio.PortfolioReturns(test, missing)
		Expect(errors.Is(err, dataframe.ErrColumnNotFound)).To(BeTrue())
	})
})
