// Package metrics exposes pipeline counters to Prometheus.
package metrics

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promMetricPrefix = "prefetchml_"

// pipeline stages used as label values
const (
	StageRaw           = "raw"
	StagePostprocessed = "postprocessed"
	StagePredict       = "predict"
)

// skip reasons used as label values
const (
	ReasonMalformed = "malformed"
	ReasonCorrupt   = "corrupt"
	ReasonOverflow  = "overflow"
	ReasonFiltered  = "filtered"
	ReasonShape     = "shape"
)

// prediction outcomes used as label values
const (
	OutcomePredicted = "predicted"
	OutcomeInvalid   = "invalid"
	OutcomeWarmup    = "warmup"
	OutcomeError     = "error"
)

var (
	LinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: promMetricPrefix + "lines_total",
			Help: "Input lines read, by stage",
		},
		[]string{"stage"},
	)
	RecordsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: promMetricPrefix + "records_skipped_total",
			Help: "Records dropped without stopping the pass, by stage and reason",
		},
		[]string{"stage", "reason"},
	)
	FieldClippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: promMetricPrefix + "field_clipped_total",
			Help: "Fields changed by the truncate or saturate overflow policy",
		},
		[]string{"field"},
	)
	SamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: promMetricPrefix + "samples_total",
			Help: "Training samples emitted",
		},
	)
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: promMetricPrefix + "predictions_total",
			Help: "Streaming inference steps, by outcome",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

// Register adds the pipeline collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{LinesTotal, RecordsSkippedTotal, FieldClippedTotal, SamplesTotal, PredictionsTotal} {
			if err := prometheus.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					slog.Error("Failed to register Prometheus metric", slog.String("error", err.Error()))
				}
			}
		}
	})
}

// Skipped counts one dropped record
func Skipped(stage, reason string) {
	RecordsSkippedTotal.WithLabelValues(stage, reason).Inc()
}

// StartServer serves /metrics on listenAddr in the background and returns the server so
// the caller can shut it down.
func StartServer(listenAddr string) *http.Server {
	Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	slog.Info("Starting Prometheus metrics server", slog.String("address", listenAddr))
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Prometheus HTTP server ListenAndServe error", slog.String("error", err.Error()))
		}
	}()
	return server
}
