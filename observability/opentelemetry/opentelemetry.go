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

package opentelemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/penny-vault/pv-riskparity/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

const (
	Name = "github.com/penny-vault/pv-riskparity"
)

// Setup installs a global tracer provider exporting to the configured OTLP endpoint.
// When no endpoint is configured tracing stays a no-op and the returned shutdown
// function does nothing.
func Setup() (func(context.Context) error, error) {
	if viper.GetString("otlp.endpoint") == "" {
		log.Debug().Msg("otlp endpoint not configured; tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("riskparity"),
			semconv.ServiceVersionKey.String(common.CurrentVersion.String()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	traceExporter, err := otlptrace.New(ctx, newClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// batch spans before export; a run emits one span per period and state
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	log.Info().Str("Endpoint", viper.GetString("otlp.endpoint")).Msg("exporting traces")
	return tracerProvider.Shutdown, nil
}

func newClient() otlptrace.Client {
	endpoint := viper.GetString("otlp.endpoint")
	headers := viper.GetStringMapString("otlp.headers")
	insecure := viper.GetBool("otlp.insecure")

	if viper.GetBool("otlp.http") {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithHeaders(headers),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.NewClient(opts...)
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithHeaders(headers),
	}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.NewClient(opts...)
}

// sampler samples every trace unless otlp.sample_ratio is in (0, 1)
func sampler() sdktrace.Sampler {
	ratio := viper.GetFloat64("otlp.sample_ratio")
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// PeriodAttributes describe one rebalancing period on a span
func PeriodAttributes(runID, period string, estimationRows, testRows int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("riskparity.run_id", runID),
		attribute.String("riskparity.period", period),
		attribute.Int("riskparity.estimation_rows", estimationRows),
		attribute.Int("riskparity.test_rows", testRows),
	}
}
