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
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-riskparity/strategies"
	"github.com/spf13/cobra"
)

var strategiesLong bool

func init() {
	rootCmd.AddCommand(strategiesCmd)

	strategiesCmd.Flags().BoolVarP(&strategiesLong, "long", "l", false, "print the full description of each strategy")
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available allocation strategies",
	Run: func(cmd *cobra.Command, args []string) {
		strategies.InitializeStrategyMap()

		s := &strings.Builder{}
		table := tablewriter.NewWriter(s)
		table.SetHeader([]string{"Shortcode", "Name", "Version", "Description"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		for _, info := range strategies.StrategyList {
			table.Append([]string{info.Shortcode, info.Name, info.Version, info.Description})
		}
		table.Render()
		fmt.Print(s.String())

		if strategiesLong {
			for _, info := range strategies.StrategyList {
				fmt.Println()
				fmt.Println(info.LongDescription)
			}
		}
	},
}
