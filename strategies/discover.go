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

package strategies

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pv-riskparity/strategies/erc"
	"github.com/penny-vault/pv-riskparity/strategies/ew"
	"github.com/penny-vault/pv-riskparity/strategies/mv"
	"github.com/penny-vault/pv-riskparity/strategies/strategy"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
)

//go:embed **/*.md **/*.toml
var resources embed.FS

// StrategyList List of all strategies
var StrategyList = []*strategy.StrategyInfo{}

// StrategyMap Map of strategies
var StrategyMap = make(map[string]*strategy.StrategyInfo)

// InitializeStrategyMap configure the strategy map
func InitializeStrategyMap() {
	Register("ew", ew.New)
	Register("mv", mv.New)
	Register("erc", erc.New)
}

func readResource(fn string) ([]byte, error) {
	file, err := resources.Open(fn)
	if err != nil {
		log.Error().Err(err).Str("File", fn).Msg("failed to open file")
		return nil, err
	}
	defer file.Close()

	doc, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Str("File", fn).Msg("failed to read file")
		return nil, err
	}
	return doc, nil
}

// Register loads the description and metadata embedded for strategyPkg and adds it to
// the strategy map. Registering a shortcode twice is a no-op.
func Register(strategyPkg string, factory strategy.StrategyFactory) {
	// read description
	doc, err := readResource(fmt.Sprintf("%s/description.md", strategyPkg))
	if err != nil {
		return
	}
	longDescription := string(doc)

	// load config file
	fn := fmt.Sprintf("%s/strategy.toml", strategyPkg)
	doc, err = readResource(fn)
	if err != nil {
		return
	}

	var strat strategy.StrategyInfo
	if err := toml.Unmarshal(doc, &strat); err != nil {
		log.Error().Err(err).Str("File", fn).Msg("failed to parse toml file")
		return
	}

	if _, ok := StrategyMap[strat.Shortcode]; ok {
		return
	}

	strat.LongDescription = longDescription
	strat.Factory = factory

	StrategyList = append(StrategyList, &strat)
	StrategyMap[strat.Shortcode] = &strat
}

// Shortcodes returns the registered shortcodes in alphabetical order
func Shortcodes() []string {
	codes := make([]string, 0, len(StrategyMap))
	for code := range StrategyMap {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Build constructs the requested strategies, in order, with shared options
func Build(opts strategy.Options, shortcodes ...string) ([]strategy.Strategy, error) {
	if len(StrategyMap) == 0 {
		InitializeStrategyMap()
	}

	res := make([]strategy.Strategy, 0, len(shortcodes))
	for _, code := range shortcodes {
		info, ok := StrategyMap[code]
		if !ok {
			log.Error().Str("Shortcode", code).Strs("Available", Shortcodes()).Msg("strategy not registered")
			return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, code)
		}

		strat, err := info.Factory(opts)
		if err != nil {
			return nil, err
		}
		res = append(res, strat)
	}
	return res, nil
}
