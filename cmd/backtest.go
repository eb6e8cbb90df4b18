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
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/config"
	"github.com/penny-vault/pv-riskparity/metrics"
	"github.com/penny-vault/pv-riskparity/observability/opentelemetry"
)

var (
	backtestExperiment string
	backtestReturns    string
	backtestRiskFree   string
	backtestOutput     string
	backtestJSON       bool
	backtestNoCache    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&backtestExperiment, "experiment", "e", "", "experiment file (TOML); defaults to the built-in study")
	backtestCmd.Flags().StringVarP(&backtestReturns, "returns", "r", "", "CSV return table; overrides data.returns")
	backtestCmd.Flags().StringVar(&backtestRiskFree, "risk-free", "", "CSV of monthly risk free rates; overrides risk_free.file")
	backtestCmd.Flags().StringVarP(&backtestOutput, "output", "o", "", "write the report to this file instead of stdout")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "print the full result as JSON")
	backtestCmd.Flags().BoolVar(&backtestNoCache, "no-cache", false, "always run the backtest even if a cached result exists")
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the rolling window backtest of the configured strategies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		shutdown, err := opentelemetry.Setup()
		if err != nil {
			log.Fatal().Err(err).Msg("could not setup tracing")
		}
		defer func() {
			if err := shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("could not flush traces")
			}
		}()

		exp, err := config.Load(backtestExperiment)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load experiment")
		}
		if backtestReturns != "" {
			exp.Data.Returns = backtestReturns
		}
		if backtestRiskFree != "" {
			exp.RiskFree.File = backtestRiskFree
		}

		var cache *common.ResultCache
		if !backtestNoCache {
			cache, err = common.SetupCache()
			if err != nil {
				log.Fatal().Err(err).Msg("could not setup result cache")
			}
		}

		recorder := metrics.NewRecorder()
		res, err := runExperiment(ctx, exp, cache, recorder)
		if err != nil {
			log.Fatal().Err(err).Msg("backtest failed")
		}

		if fn := viper.GetString("metrics.textfile"); fn != "" {
			if err := recorder.WriteTextfile(fn); err != nil {
				log.Error().Err(err).Str("FileName", fn).Msg("could not write metrics")
			}
		}

		var out []byte
		if backtestJSON {
			out, err = res.JSON()
			if err != nil {
				log.Fatal().Err(err).Msg("could not serialize result")
			}
			out = append(out, '\n')
		} else {
			out = []byte(res.Report())
		}

		if backtestOutput == "" {
			fmt.Print(string(out))
			return
		}

		if err := os.WriteFile(backtestOutput, out, 0600); err != nil {
			log.Fatal().Err(err).Str("FileName", backtestOutput).Msg("could not write report")
		}
		log.Info().Str("FileName", backtestOutput).Msg("wrote report")
	},
}
