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

package strategies_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-riskparity/portfolio"
	"github.com/penny-vault/pv-riskparity/strategies"
	"github.com/penny-vault/pv-riskparity/strategies/strategy"
)

var _ = Describe("Discover", func() {
	BeforeEach(func() {
		strategies.InitializeStrategyMap()
	})

	It("registers every strategy once", func() {
		strategies.InitializeStrategyMap()
		Expect(strategies.StrategyList).To(HaveLen(3))
		Expect(strategies.Shortcodes()).To(Equal([]string{"erc", "ew", "mv"}))
	})

	It("loads metadata from the embedded files", func() {
		info := strategies.StrategyMap["erc"]
		Expect(info.Name).To(Equal("Equal Risk Contribution"))
		Expect(info.Version).To(Equal("1.0.0"))
		Expect(info.LongDescription).To(ContainSubstring("inverse volatility"))
		Expect(info.Arguments).To(HaveKey("bounds"))
		Expect(info.Factory).ToNot(BeNil())
	})

	It("builds strategies in the requested order", func() {
		strats, err := strategies.Build(strategy.Options{Bounds: portfolio.Unbounded}, "mv", "ew", "erc")
		Expect(err).To(BeNil())
		Expect(strats).To(HaveLen(3))
		Expect(strats[0].Name()).To(Equal("mv"))
		Expect(strats[1].Name()).To(Equal("ew"))
		Expect(strats[2].Name()).To(Equal("erc"))
	})

	It("rejects unknown strategies", func() {
		_, err := strategies.Build(strategy.Options{}, "hrp")
		Expect(errors.Is(err, strategies.ErrUnknownStrategy)).To(BeTrue())
	})
})
