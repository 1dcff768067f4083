// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Stage Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "featuresmith_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"stage"}, // "featurize", "train", "run"
	)

	StageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featuresmith_stage_runs_total",
			Help: "Total number of pipeline stage runs",
		},
		[]string{"stage", "status"},
	)

	StageLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "featuresmith_stage_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful stage run",
		},
		[]string{"stage"},
	)

	// Ingestion Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "featuresmith_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featuresmith_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featuresmith_rows_loaded_total",
			Help: "Total number of rows loaded from CSV files",
		},
		[]string{"table"},
	)

	// Feature Synthesis Metrics
	Features = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "featuresmith_features",
			Help: "Number of feature definitions in the last synthesis",
		},
	)

	SentinelReplacements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featuresmith_sentinel_replacements_total",
			Help: "Total number of cells converted to missing by post-processing",
		},
		[]string{"partition", "source"}, // source: "unknown", "token"
	)

	// Model Search Metrics
	ModelsTrained = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featuresmith_models_trained_total",
			Help: "Total number of models placed on a leaderboard",
		},
		[]string{"family"},
	)

	LeaderMetric = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "featuresmith_leader_metric",
			Help: "Cross-validated score of the current leader model",
		},
		[]string{"metric"},
	)

	SearchBudgetExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "featuresmith_search_budget_exhausted_total",
			Help: "Total number of model searches stopped by the time budget",
		},
	)
)

// RecordStage records a finished pipeline stage.
func RecordStage(stage string, duration time.Duration, err error) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		StageRuns.WithLabelValues(stage, "failed").Inc()
		return
	}
	StageRuns.WithLabelValues(stage, "succeeded").Inc()
	StageLastSuccess.WithLabelValues(stage).Set(float64(time.Now().Unix()))
}

// RecordDBQuery records a DuckDB query.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRowsLoaded records rows read for a table.
func RecordRowsLoaded(table string, rows int) {
	RowsLoaded.WithLabelValues(table).Add(float64(rows))
}

// SetFeatures records the size of the last feature definition list.
func SetFeatures(n int) {
	Features.Set(float64(n))
}

// RecordSentinels records post-processing replacements for one partition.
func RecordSentinels(partition string, unknown, tokens int) {
	SentinelReplacements.WithLabelValues(partition, "unknown").Add(float64(unknown))
	SentinelReplacements.WithLabelValues(partition, "token").Add(float64(tokens))
}

// RecordModel records a model added to the leaderboard.
func RecordModel(family string) {
	ModelsTrained.WithLabelValues(family).Inc()
}

// SetLeaderMetric records the leader's score for a metric.
func SetLeaderMetric(metric string, value float64) {
	LeaderMetric.WithLabelValues(metric).Set(value)
}

// RecordBudgetExhausted records a search stopped by its time budget.
func RecordBudgetExhausted() {
	SearchBudgetExhausted.Inc()
}

// WriteTextfile writes every registered metric in the text exposition format
// for a node_exporter textfile collector.
func WriteTextfile(path string) error {
	return WriteTextfileFrom(path, prometheus.DefaultGatherer)
}

// WriteTextfileFrom writes the metrics of g to path.
func WriteTextfileFrom(path string, g prometheus.Gatherer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:gosec // 0750 is acceptable for metrics output
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
