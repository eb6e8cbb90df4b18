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

package portfolio

import (
	"fmt"
	"math"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// DegeneratePenalty is returned by objectives when the portfolio variance vanishes
	DegeneratePenalty = 1e6

	// ConcentrationUndefined is reported when the smallest risk contribution is not positive
	ConcentrationUndefined = 999.0

	minVariance  = 1e-12
	minERCWeight = 1e-8
)

// Variance returns w'Σw
func Variance(cov mat.Symmetric, w []float64) float64 {
	x := mat.NewVecDense(len(w), w)
	return mat.Inner(x, cov, x)
}

// RiskContributions returns RC_i = w_i (Σw)_i / σ_p and the portfolio volatility σ_p.
// The contributions sum to σ_p. A zero variance portfolio has zero contributions.
func RiskContributions(cov mat.Symmetric, w []float64) ([]float64, float64) {
	x := mat.NewVecDense(len(w), w)
	marginal := mat.NewVecDense(len(w), nil)
	marginal.MulVec(cov, x)

	rc := make([]float64, len(w))
	variance := mat.Dot(x, marginal)
	if variance <= minVariance {
		return rc, 0
	}

	sigma := math.Sqrt(variance)
	for idx := range rc {
		rc[idx] = w[idx] * marginal.AtVec(idx) / sigma
	}
	return rc, sigma
}

// ERCObjective measures the distance from equal risk contribution,
// sum_i (RC_i - σ_p/N)^2. Weights are clamped away from zero and renormalized first;
// a portfolio without variance scores DegeneratePenalty.
func ERCObjective(cov mat.Symmetric, w []float64) float64 {
	clamped := make([]float64, len(w))
	for idx, val := range w {
		clamped[idx] = math.Max(val, minERCWeight)
	}
	floats.Scale(1/floats.Sum(clamped), clamped)

	if Variance(cov, clamped) <= minVariance {
		return DegeneratePenalty
	}

	rc, sigma := RiskContributions(cov, clamped)
	target := sigma / float64(len(w))
	obj := 0.0
	for _, val := range rc {
		obj += (val - target) * (val - target)
	}
	return obj
}

// RiskContribution is the share of portfolio volatility attributable to one asset
type RiskContribution struct {
	Asset         string  `json:"asset"`
	Weight        float64 `json:"weight"`
	Contribution  float64 `json:"contribution"`
	Target        float64 `json:"target"`
	RelativeError float64 `json:"relativeError"`
}

// RiskReport summarizes how close an allocation is to equal risk contribution
type RiskReport struct {
	Volatility            float64            `json:"volatility"`
	RelativeStd           float64            `json:"relativeStd"`
	Concentration         float64            `json:"concentration"`
	MeanRelativeDeviation float64            `json:"meanRelativeDeviation"`
	Contributions         []RiskContribution `json:"contributions"`
}

// NewRiskReport computes the risk contribution of every asset held in w
func NewRiskReport(cov mat.Symmetric, w *Weights) *RiskReport {
	rc, sigma := RiskContributions(cov, w.Values)
	report := &RiskReport{
		Volatility:    sigma,
		Contributions: make([]RiskContribution, len(rc)),
	}

	if sigma == 0 || len(rc) == 0 {
		report.Concentration = ConcentrationUndefined
		for idx := range rc {
			report.Contributions[idx] = RiskContribution{
				Asset:  w.Assets[idx],
				Weight: w.Values[idx],
			}
		}
		return report
	}

	target := sigma / float64(len(rc))
	deviation := 0.0
	for idx, val := range rc {
		relErr := val/target - 1
		deviation += math.Abs(relErr)
		report.Contributions[idx] = RiskContribution{
			Asset:         w.Assets[idx],
			Weight:        w.Values[idx],
			Contribution:  val,
			Target:        target,
			RelativeError: relErr,
		}
	}

	_, std := stat.PopMeanStdDev(rc, nil)
	report.RelativeStd = std / sigma
	report.MeanRelativeDeviation = deviation / float64(len(rc))

	minRC := floats.Min(rc)
	if minRC > 0 {
		report.Concentration = floats.Max(rc) / minRC
	} else {
		report.Concentration = ConcentrationUndefined
	}

	return report
}

// Table renders the per-asset contributions as an ASCII table
func (r *RiskReport) Table() string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Asset", "Weight", "Risk Contribution", "Target", "Relative Error"})
	table.SetBorder(false)
	for _, row := range r.Contributions {
		table.Append([]string{
			row.Asset,
			fmt.Sprintf("%.2f%%", row.Weight*100),
			fmt.Sprintf("%.4f", row.Contribution),
			fmt.Sprintf("%.4f", row.Target),
			fmt.Sprintf("%.2f%%", row.RelativeError*100),
		})
	}
	table.SetFooter([]string{"Volatility", fmt.Sprintf("%.4f", r.Volatility), "Std / Vol", fmt.Sprintf("%.6f", r.RelativeStd), ""})
	table.Render()
	return s.String()
}
