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
	"bytes"
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-riskparity/backtest"
	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/config"
	"github.com/penny-vault/pv-riskparity/data"
	"github.com/penny-vault/pv-riskparity/metrics"
)

// runInputs are the raw bytes a run depends on; together with the experiment they
// identify a cached result
type runInputs struct {
	returns  []byte
	riskFree []byte
}

func readInputs(exp *config.Experiment) (*runInputs, error) {
	returns, err := os.ReadFile(exp.Data.Returns)
	if err != nil {
		log.Error().Err(err).Str("FileName", exp.Data.Returns).Msg("could not read return table")
		return nil, err
	}

	inputs := &runInputs{returns: returns}
	if exp.RiskFree.File != "" {
		inputs.riskFree, err = os.ReadFile(exp.RiskFree.File)
		if err != nil {
			log.Error().Err(err).Str("FileName", exp.RiskFree.File).Msg("could not read risk free file")
			return nil, err
		}
	}

	return inputs, nil
}

func (in *runInputs) riskFreeSeries(exp *config.Experiment) (*data.RiskFreeSeries, error) {
	if in.riskFree != nil {
		return data.LoadRiskFree(bytes.NewReader(in.riskFree))
	}
	return exp.RiskFreeSeries()
}

// runExperiment executes the backtest described by exp. When cache is non-nil a
// result computed earlier for the same inputs is returned instead.
func runExperiment(ctx context.Context, exp *config.Experiment, cache *common.ResultCache, recorder *metrics.Recorder) (*backtest.Result, error) {
	inputs, err := readInputs(exp)
	if err != nil {
		return nil, err
	}

	key := common.CacheKey(inputs.returns, inputs.riskFree, exp.Digest())
	if cache != nil {
		doc, ok, err := cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("Key", key).Msg("result cache unavailable; running backtest")
		}
		if ok {
			if res, err := backtest.ParseResult(doc); err == nil {
				log.Info().Str("Key", key).Str("RunID", res.RunID).Msg("using cached result")
				recorder.CacheHit()
				return res, nil
			}
			log.Warn().Str("Key", key).Msg("cached result is corrupt; running backtest")
		}
	}

	returns, err := data.LoadReturns(bytes.NewReader(inputs.returns), exp.LoadOptions())
	if err != nil {
		return nil, err
	}

	riskFree, err := inputs.riskFreeSeries(exp)
	if err != nil {
		return nil, err
	}

	opts, err := exp.BacktestOptions(riskFree, recorder)
	if err != nil {
		return nil, err
	}

	driver, err := backtest.New(opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := driver.Run(ctx, returns, riskFree)
	if err != nil {
		return nil, err
	}
	log.Info().Str("RunID", res.RunID).Dur("Elapsed", time.Since(start)).Int("NumPeriods", len(res.Periods)).Msg("backtest finished")

	if cache != nil {
		doc, err := res.JSON()
		if err != nil {
			return nil, err
		}
		if err := cache.Set(ctx, key, doc); err != nil {
			log.Warn().Err(err).Str("Key", key).Msg("could not cache result")
		}
	}

	return res, nil
}
