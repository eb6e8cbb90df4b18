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

package common

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// DiagnosticKind classifies a recoverable condition observed during a run
type DiagnosticKind string

const (
	// DataInsufficiency a period had too few observations and was skipped
	DataInsufficiency DiagnosticKind = "DataInsufficiency"

	// LowConfidence parameters were estimated from fewer observations than desired
	LowConfidence DiagnosticKind = "LowConfidence"

	// OptimizerFallback an optimizer did not converge and a simpler allocation was used
	OptimizerFallback DiagnosticKind = "OptimizerFallback"

	// NumericalDegeneracy a sentinel was substituted for an undefined quantity
	NumericalDegeneracy DiagnosticKind = "NumericalDegeneracy"

	// InfeasibleBounds the configured weight bounds cannot sum to one for the asset count
	InfeasibleBounds DiagnosticKind = "InfeasibleBounds"
)

// Diagnostic records a recovered failure so that callers can audit data quality
// over a complete run
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Period   string         `json:"period,omitempty"`
	Strategy string         `json:"strategy,omitempty"`
	Message  string         `json:"message"`
}

// NewDiagnostic creates a diagnostic and writes it to the log at warning level
func NewDiagnostic(kind DiagnosticKind, period, strategy, format string, args ...any) Diagnostic {
	diag := Diagnostic{
		Kind:     kind,
		Period:   period,
		Strategy: strategy,
		Message:  fmt.Sprintf(format, args...),
	}

	log.Warn().Str("Kind", string(kind)).Str("Period", period).Str("Strategy", strategy).Msg(diag.Message)
	return diag
}

func (d Diagnostic) String() string {
	if d.Strategy != "" {
		return fmt.Sprintf("[%s] %s/%s: %s", d.Kind, d.Period, d.Strategy, d.Message)
	}
	if d.Period != "" {
		return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Period, d.Message)
	}
	return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
}
