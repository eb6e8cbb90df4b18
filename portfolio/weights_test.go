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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-riskparity/portfolio"
)

var _ = Describe("Weights", func() {
	assets := []string{"PETR4", "VALE3", "ITUB4", "BBDC4"}

	It("creates equal weights", func() {
		w := portfolio.EqualWeights(assets)
		Expect(w.Len()).To(Equal(4))
		Expect(w.Sum()).To(BeNumerically("~", 1, 1e-12))
		Expect(w.Get("ITUB4")).To(Equal(0.25))
		Expect(w.Get("WEGE3")).To(Equal(0.0))
	})

	It("does not share the caller's slices", func() {
		values := []float64{0.5, 0.5}
		w, err := portfolio.NewWeights([]string{"A", "B"}, values)
		Expect(err).To(BeNil())
		values[0] = 1
		Expect(w.Values[0]).To(Equal(0.5))
	})

	It("rejects mismatched lengths", func() {
		_, err := portfolio.NewWeights([]string{"A"}, []float64{0.5, 0.5})
		Expect(errors.Is(err, portfolio.ErrLengthMismatch)).To(BeTrue())
	})

	Context("when validating", func() {
		It("accepts weights summing to one within bounds", func() {
			w, _ := portfolio.NewWeights([]string{"A", "B", "C"}, []float64{0.2, 0.3, 0.5})
			Expect(w.Validate(portfolio.Unbounded)).To(Succeed())
		})

		It("rejects weights not summing to one", func() {
			w, _ := portfolio.NewWeights([]string{"A", "B"}, []float64{0.5, 0.49})
			Expect(errors.Is(w.Validate(portfolio.Unbounded), portfolio.ErrWeightsDoNotSumToOne)).To(BeTrue())
		})

		It("rejects weights outside the bounds", func() {
			w, _ := portfolio.NewWeights([]string{"A", "B"}, []float64{0.9, 0.1})
			err := w.Validate(portfolio.Bounds{Lower: 0.2, Upper: 0.8})
			Expect(errors.Is(err, portfolio.ErrWeightOutOfBounds)).To(BeTrue())
		})
	})

	Context("when computing turnover", func() {
		It("is 1 for the first allocation", func() {
			Expect(portfolio.Turnover(nil, portfolio.EqualWeights(assets))).To(Equal(1.0))
		})

		It("is 0 between identical allocations", func() {
			Expect(portfolio.Turnover(portfolio.EqualWeights(assets), portfolio.EqualWeights(assets))).To(Equal(0.0))
		})

		It("is half the absolute change", func() {
			prev, _ := portfolio.NewWeights([]string{"A", "B"}, []float64{0.5, 0.5})
			next, _ := portfolio.NewWeights([]string{"A", "B"}, []float64{0.7, 0.3})
			Expect(portfolio.Turnover(prev, next)).To(BeNumerically("~", 0.2, 1e-12))
		})

		It("counts assets that are sold completely", func() {
			prev, _ := portfolio.NewWeights([]string{"A", "B"}, []float64{0.5, 0.5})
			next, _ := portfolio.NewWeights([]string{"A", "C"}, []float64{0.5, 0.5})
			Expect(portfolio.Turnover(prev, next)).To(BeNumerically("~", 0.5, 1e-12))
		})
	})

	It("renders a table", func() {
		Expect(portfolio.EqualWeights(assets).Table()).To(ContainSubstring("25.00%"))
	})
})
