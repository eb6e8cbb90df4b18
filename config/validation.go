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

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/penny-vault/pv-riskparity/portfolio"
)

var customValidations = map[string]validator.Func{
	"date":       validateDate,
	"month":      validateMonth,
	"convention": validateConvention,
}

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := registerValidations(v, customValidations); err != nil {
		return nil, err
	}
	return v, nil
}

func registerValidations(v *validator.Validate, validations map[string]validator.Func) error {
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Error().Err(err).Str("Tag", tag).Msg("could not register validation")
			return fmt.Errorf("%w: register %q: %s", ErrInvalidExperiment, tag, err)
		}
	}
	return nil
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(common.DateFormat, fl.Field().String())
	return err == nil
}

func validateMonth(fl validator.FieldLevel) bool {
	_, err := time.Parse(common.MonthFormat, fl.Field().String())
	return err == nil
}

func validateConvention(fl validator.FieldLevel) bool {
	switch portfolio.RiskFreeConvention(fl.Field().String()) {
	case portfolio.Geometric, portfolio.Arithmetic, "":
		return true
	default:
		return false
	}
}

// Validate checks every field of the experiment and the relations between them
func (e *Experiment) Validate() error {
	validate, err := newValidator()
	if err != nil {
		return err
	}

	if err := validate.Struct(e); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("%w: %s", ErrInvalidExperiment, err)
	}

	return e.validateCrossField()
}

func (e *Experiment) validateCrossField() error {
	if e.Allocation.Lower > e.Allocation.Upper {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidBounds, e.Allocation.Lower, e.Allocation.Upper)
	}

	if len(e.Data.Assets) > 0 && !e.Bounds().Feasible(len(e.Data.Assets)) {
		// recoverable: strategies fall back to [0, 1] and report a diagnostic
		log.Warn().Int("NumAssets", len(e.Data.Assets)).Float64("Lower", e.Allocation.Lower).
			Float64("Upper", e.Allocation.Upper).Msg("weight bounds cannot sum to one for the configured assets")
	}

	if len(e.Schedule.Anchors) > 0 {
		return nil
	}

	if e.Schedule.Calendar == "" || e.Schedule.Begin == "" || e.Schedule.End == "" {
		return ErrNoAnchors
	}

	begin, _ := time.Parse(common.DateFormat, e.Schedule.Begin)
	end, _ := time.Parse(common.DateFormat, e.Schedule.End)
	if !begin.Before(end) {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidDateRange, e.Schedule.Begin, e.Schedule.End)
	}

	return nil
}

func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	msgs := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		switch fieldError.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "date":
			msgs = append(msgs, fmt.Sprintf("%s must be a date in YYYY-MM-DD form, got %q", field, fieldError.Value()))
		case "month":
			msgs = append(msgs, fmt.Sprintf("%s must be a month in YYYY-MM form, got %q", field, fieldError.Value()))
		case "convention":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: geometric, arithmetic", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fieldError.Param()))
		case "min", "gt", "gte", "lt", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s, got %v", field, fieldError.Tag(), fieldError.Param(), fieldError.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation: %s", field, fieldError.Tag()))
		}
	}

	log.Error().Strs("Errors", msgs).Msg("experiment failed validation")
	return fmt.Errorf("%w: %s", ErrInvalidExperiment, strings.Join(msgs, "; "))
}
