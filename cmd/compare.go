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

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-riskparity/backtest"
	"github.com/penny-vault/pv-riskparity/significance"
)

var (
	compareResamples int
	compareSeed      uint64
)

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().IntVar(&compareResamples, "resamples", significance.DefaultResamples, "number of bootstrap resamples")
	compareCmd.Flags().Uint64Var(&compareSeed, "seed", significance.DefaultSeed, "bootstrap random seed")
}

var compareCmd = &cobra.Command{
	Use:   "compare <result.json> <strategyA> <strategyB>",
	Short: "Test whether two strategies of a saved result have different Sharpe ratios",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		doc, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("FileName", args[0]).Msg("could not read result")
		}

		res, err := backtest.ParseResult(doc)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", args[0]).Msg("could not parse result")
		}

		nameA, nameB := args[1], args[2]
		a := res.PooledReturns(nameA)
		b := res.PooledReturns(nameB)
		if len(a) == 0 || len(b) == 0 {
			log.Fatal().Str("StrategyA", nameA).Str("StrategyB", nameB).Strs("Available", res.Strategies).Msg("strategy not in result")
		}

		cmp, err := significance.Compare(nameA, a, nameB, b, res.RiskFreeAnnual, significance.Options{
			Resamples: compareResamples,
			Seed:      compareSeed,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("could not compare strategies")
		}

		fmt.Println(cmp.String())
	},
}
