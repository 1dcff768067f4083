// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

/*
Package metrics provides Prometheus instrumentation for pipeline runs.

The pipeline is a batch job with no scrape endpoint, so metrics are written
once per invocation with WriteTextfile for a node_exporter textfile
collector:

	node_exporter --collector.textfile.directory=/var/lib/node_exporter

# Available Metrics

Stage Metrics:
  - featuresmith_stage_duration_seconds: Stage wall time (histogram)
    Labels: stage
  - featuresmith_stage_runs_total: Stage runs (counter)
    Labels: stage, status
  - featuresmith_stage_last_success_timestamp_seconds (gauge)
    Labels: stage

Ingestion Metrics:
  - featuresmith_duckdb_query_duration_seconds (histogram)
    Labels: operation (read_csv, read_column)
  - featuresmith_duckdb_query_errors_total (counter)
  - featuresmith_rows_loaded_total (counter)
    Labels: table

Feature Metrics:
  - featuresmith_features: Feature definitions in the last synthesis (gauge)
  - featuresmith_sentinel_replacements_total (counter)
    Labels: partition, source (unknown, token)

Model Search Metrics:
  - featuresmith_models_trained_total (counter)
    Labels: family
  - featuresmith_leader_metric (gauge)
    Labels: metric
  - featuresmith_search_budget_exhausted_total (counter)
*/
package metrics
