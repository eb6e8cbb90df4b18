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

	"github.com/penny-vault/pv-riskparity/common"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Logging configuration
	viper.BindEnv("log.level", "RISKPARITY_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "RISKPARITY_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "RISKPARITY_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "RISKPARITY_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "Format log messages for humans")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Result cache
	viper.BindEnv("cache.redis", "RISKPARITY_CACHE_REDIS")
	rootCmd.PersistentFlags().Bool("cache-redis", false, "Write cached results through to redis")
	viper.BindPFlag("cache.redis", rootCmd.PersistentFlags().Lookup("cache-redis"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("cache-redis-url", "redis://localhost:6379/0", "Redis connection string")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("cache-redis-url"))

	viper.BindEnv("cache.ttl", "RISKPARITY_CACHE_TTL")
	rootCmd.PersistentFlags().Int("cache-ttl", 86400, "Seconds a cached result is kept in redis")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	viper.BindEnv("cache.local_size", "RISKPARITY_CACHE_LOCAL_SIZE")
	rootCmd.PersistentFlags().Int("cache-local-size", 16, "Number of results kept in memory")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP collector to send traces to, if blank tracing is disabled")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	viper.BindEnv("otlp.http", "RISKPARITY_OTLP_HTTP")
	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use HTTP instead of gRPC for the OTLP connection")
	viper.BindPFlag("otlp.http", rootCmd.PersistentFlags().Lookup("otlp-http"))

	viper.BindEnv("otlp.insecure", "RISKPARITY_OTLP_INSECURE")
	rootCmd.PersistentFlags().Bool("otlp-insecure", false, "Connect to the OTLP collector without TLS")
	viper.BindPFlag("otlp.insecure", rootCmd.PersistentFlags().Lookup("otlp-insecure"))

	viper.BindEnv("otlp.sample_ratio", "RISKPARITY_OTLP_SAMPLE_RATIO")
	rootCmd.PersistentFlags().Float64("otlp-sample-ratio", 1, "Fraction of runs to trace")
	viper.BindPFlag("otlp.sample_ratio", rootCmd.PersistentFlags().Lookup("otlp-sample-ratio"))

	// Metrics
	viper.BindEnv("metrics.textfile", "RISKPARITY_METRICS_TEXTFILE")
	rootCmd.PersistentFlags().String("metrics-textfile", "", "Write run metrics in Prometheus text format to this file")
	viper.BindPFlag("metrics.textfile", rootCmd.PersistentFlags().Lookup("metrics-textfile"))
}

var rootCmd = &cobra.Command{
	Use:     "riskparity",
	Version: common.CurrentVersion.String(),
	Short:   "Out-of-sample comparison of risk parity, mean-variance and equal weight portfolios",
	Long: `Backtest long-only allocation strategies on rolling estimation windows, evaluate
them out of sample and test whether their Sharpe ratios differ significantly.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
