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

// Package metrics collects prometheus metrics about backtest runs. A run is a one-shot
// process so metrics are written to a textfile for the node exporter instead of
// being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const namespace = "riskparity"

// Recorder owns a registry and the metrics of one process. All methods are safe to
// call on a nil Recorder, which records nothing.
type Recorder struct {
	registry *prometheus.Registry

	PeriodsProcessed   prometheus.Counter
	PeriodsSkipped     prometheus.Counter
	Diagnostics        *prometheus.CounterVec
	Fallbacks          *prometheus.CounterVec
	AllocationDuration *prometheus.HistogramVec
	RunDuration        prometheus.Histogram
	SharpeRatio        *prometheus.GaugeVec
	MeanTurnover       *prometheus.GaugeVec
	CacheHits          prometheus.Counter
}

// NewRecorder creates and registers every metric on a new registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		PeriodsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "periods_processed_total",
			Help:      "Number of rebalancing periods evaluated",
		}),
		PeriodsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "periods_skipped_total",
			Help:      "Number of rebalancing periods skipped for lack of data",
		}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Number of recovered conditions by kind",
		}, []string{"kind"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_fallbacks_total",
			Help:      "Number of allocations that fell back to a simpler strategy",
		}, []string{"strategy"}),
		AllocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_duration_seconds",
			Help:      "Time spent allocating one period",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"strategy"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete backtest",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		}),
		SharpeRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sharpe_ratio",
			Help:      "Consolidated out-of-sample Sharpe ratio of the last run",
		}, []string{"strategy"}),
		MeanTurnover: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_turnover",
			Help:      "Mean turnover per rebalance of the last run",
		}, []string{"strategy"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Number of runs served from the results cache",
		}),
	}

	r.registry.MustRegister(
		r.PeriodsProcessed,
		r.PeriodsSkipped,
		r.Diagnostics,
		r.Fallbacks,
		r.AllocationDuration,
		r.RunDuration,
		r.SharpeRatio,
		r.MeanTurnover,
		r.CacheHits,
	)

	return r
}

// Registry returns the registry the metrics are registered on
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) PeriodProcessed() {
	if r == nil {
		return
	}
	r.PeriodsProcessed.Inc()
}

func (r *Recorder) PeriodSkipped() {
	if r == nil {
		return
	}
	r.PeriodsSkipped.Inc()
}

// Diagnostic counts one recovered condition
func (r *Recorder) Diagnostic(kind string) {
	if r == nil {
		return
	}
	r.Diagnostics.WithLabelValues(kind).Inc()
}

// Allocation records the duration of one allocation and whether it fell back
func (r *Recorder) Allocation(strategy string, dur time.Duration, fallback bool) {
	if r == nil {
		return
	}
	r.AllocationDuration.WithLabelValues(strategy).Observe(dur.Seconds())
	if fallback {
		r.Fallbacks.WithLabelValues(strategy).Inc()
	}
}

// Summary publishes the consolidated results of a strategy
func (r *Recorder) Summary(strategy string, sharpe, turnover float64) {
	if r == nil {
		return
	}
	r.SharpeRatio.WithLabelValues(strategy).Set(sharpe)
	r.MeanTurnover.WithLabelValues(strategy).Set(turnover)
}

func (r *Recorder) Run(dur time.Duration) {
	if r == nil {
		return
	}
	r.RunDuration.Observe(dur.Seconds())
}

func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.CacheHits.Inc()
}

// WriteTextfile writes the current values in the prometheus text format. The file is
// written atomically so a node exporter never reads a partial file.
func (r *Recorder) WriteTextfile(fn string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(fn, r.registry); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not write metrics textfile")
		return err
	}
	log.Info().Str("FileName", fn).Msg("wrote metrics textfile")
	return nil
}
