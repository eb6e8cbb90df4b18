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

package backtest

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/portfolio"
	"github.com/penny-vault/pv-riskparity/strategies/erc"
)

func newTable(s *strings.Builder, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(s)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	return table
}

func pct(val float64) string {
	return fmt.Sprintf("%.2f%%", val*100)
}

func sortino(val float64) string {
	if val >= portfolio.SortinoUndefined {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", val)
}

func summaryTable(summaries []*portfolio.Summary) string {
	s := &strings.Builder{}
	table := newTable(s, "Strategy", "Return", "Volatility", "Sharpe", "Sortino", "Max Drawdown", "Turnover", "Months")
	for _, summary := range summaries {
		table.Append([]string{
			summary.Strategy,
			pct(summary.AnnualReturn),
			pct(summary.AnnualVolatility),
			fmt.Sprintf("%.2f", summary.SharpeRatio),
			sortino(summary.SortinoRatio),
			pct(summary.MaxDrawDown),
			pct(summary.MeanTurnover),
			fmt.Sprintf("%d", summary.Months),
		})
	}
	table.Render()
	return s.String()
}

// SummaryTable renders the consolidated performance of every strategy
func (r *Result) SummaryTable() string {
	return summaryTable(r.Summaries)
}

// PeriodTable renders the metrics of every strategy in every period
func (r *Result) PeriodTable() string {
	s := &strings.Builder{}
	table := newTable(s, "Period", "Strategy", "Return", "Volatility", "Sharpe", "Sortino", "Max Drawdown", "Turnover", "Status")
	for _, pr := range r.History {
		status := "converged"
		if pr.Allocation.Fallback != "" {
			status = "fallback: " + pr.Allocation.Fallback
		}
		table.Append([]string{
			pr.Period,
			pr.Strategy,
			pct(pr.Metrics.AnnualReturn),
			pct(pr.Metrics.AnnualVolatility),
			fmt.Sprintf("%.2f", pr.Metrics.SharpeRatio),
			sortino(pr.Metrics.SortinoRatio),
			pct(pr.Metrics.MaxDrawDown),
			pct(pr.Turnover),
			status,
		})
	}
	table.Render()
	return s.String()
}

// WeightsTable renders the weights of every allocation, one row per period and
// strategy and one column per asset
func (r *Result) WeightsTable() string {
	s := &strings.Builder{}
	header := append([]string{"Period", "Strategy"}, r.Assets...)
	table := newTable(s, header...)
	for _, pr := range r.History {
		row := []string{pr.Period, pr.Strategy}
		for _, asset := range r.Assets {
			row = append(row, pct(pr.Weights().Get(asset)))
		}
		table.Append(row)
	}
	table.Render()
	return s.String()
}

// CostTable renders the consolidated Sharpe ratio and return of every strategy under
// each transaction cost scenario
func (r *Result) CostTable() string {
	s := &strings.Builder{}
	table := newTable(s, "Cost (bps)", "Strategy", "Return", "Sharpe", "Turnover")
	for _, scenario := range r.CostScenarios {
		for _, summary := range scenario.Summaries {
			table.Append([]string{
				fmt.Sprintf("%g", scenario.Bps),
				summary.Strategy,
				pct(summary.AnnualReturn),
				fmt.Sprintf("%.2f", summary.SharpeRatio),
				pct(summary.MeanTurnover),
			})
		}
	}
	table.Render()
	return s.String()
}

// ComparisonTable renders the pairwise significance tests
func (r *Result) ComparisonTable() string {
	s := &strings.Builder{}
	table := newTable(s, "Comparison", "Sharpe Diff", "p-value (LW)", "p-value (Boot)", "95% CI", "Significant")
	for _, cmp := range r.Comparisons {
		table.Append([]string{
			fmt.Sprintf("%s vs %s", cmp.StrategyA, cmp.StrategyB),
			fmt.Sprintf("%+.3f", cmp.LedoitWolf.Difference),
			fmt.Sprintf("%.4f", cmp.LedoitWolf.PValue),
			fmt.Sprintf("%.4f", cmp.Bootstrap.PValue),
			fmt.Sprintf("[%.3f, %.3f]", cmp.Bootstrap.CILower, cmp.Bootstrap.CIUpper),
			cmp.Label(),
		})
	}
	table.Render()
	return s.String()
}

// DiagnosticsTable renders every recovered condition of the run
func (r *Result) DiagnosticsTable() string {
	s := &strings.Builder{}
	table := newTable(s, "Kind", "Period", "Strategy", "Message")
	for _, diag := range r.Diagnostics {
		table.Append([]string{string(diag.Kind), diag.Period, diag.Strategy, diag.Message})
	}
	table.Render()
	return s.String()
}

// Report renders all tables of the run
func (r *Result) Report() string {
	s := &strings.Builder{}
	fmt.Fprintf(s, "Run %s: %d periods, %d assets\n\n", r.RunID, len(r.Periods), len(r.Assets))

	s.WriteString("CONSOLIDATED PERFORMANCE\n")
	s.WriteString(r.SummaryTable())

	s.WriteString("\nPERIODS\n")
	s.WriteString(r.PeriodTable())

	s.WriteString("\nWEIGHTS\n")
	s.WriteString(r.WeightsTable())

	if report, ok := r.RiskReports[erc.Shortcode]; ok {
		s.WriteString("\nRISK CONTRIBUTIONS (last rebalance)\n")
		s.WriteString(report.Table())
	}

	if len(r.CostScenarios) > 0 {
		s.WriteString("\nTRANSACTION COSTS\n")
		s.WriteString(r.CostTable())
	}

	if len(r.Comparisons) > 0 {
		fmt.Fprintf(s, "\nSIGNIFICANCE (risk free %s per year)\n", pct(r.RiskFreeAnnual))
		s.WriteString(r.ComparisonTable())
	}

	if len(r.Diagnostics) > 0 {
		s.WriteString("\nDIAGNOSTICS\n")
		s.WriteString(r.DiagnosticsTable())
	}

	low := len(r.DiagnosticsOfKind(common.LowConfidence))
	if low > 0 {
		fmt.Fprintf(s, "\n%d periods were estimated with fewer than 12 observations\n", low)
	}

	return s.String()
}
