// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package config

import (
	"path/filepath"
	"time"
)

// Config holds all pipeline configuration loaded from defaults, an optional
// YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults describing the users/sessions/buckets layout
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override scalar settings
//
// Configuration Categories:
//
//  1. Inputs:
//     - Data: directory holding the raw CSV files
//     - Schema: tables, keys, relationships, target table and label
//     - Database: DuckDB settings for CSV ingestion
//
//  2. Processing:
//     - Features: primitives, depth, custom primitive parameters
//     - AutoML: model families, runtime budget, folds, seed, sort metric
//
//  3. Outputs:
//     - Output: artifact file names and submission format
//     - Registry: BadgerDB run registry
//     - Metrics: Prometheus textfile
//     - Logging: Log levels and output formats
//
// Config is immutable after Load and safe for concurrent read access.
type Config struct {
	Data     DataConfig     `koanf:"data"`
	Schema   SchemaConfig   `koanf:"schema"`
	Database DatabaseConfig `koanf:"database"`
	Features FeaturesConfig `koanf:"features"`
	AutoML   AutoMLConfig   `koanf:"automl"`
	Output   OutputConfig   `koanf:"output"`
	Registry RegistryConfig `koanf:"registry"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DataConfig locates the raw input files.
type DataConfig struct {
	// Dir is prepended to every relative table path.
	Dir string `koanf:"dir" validate:"required"`
}

// SchemaConfig declares the relational layout imposed on the flat files.
type SchemaConfig struct {
	// Target is the table that receives one feature row per entity.
	Target string `koanf:"target" validate:"required"`

	// Label is the target-table column holding the class label (train only).
	Label string `koanf:"label" validate:"required"`

	Tables        []TableConfig        `koanf:"tables" validate:"required,min=1,dive"`
	Relationships []RelationshipConfig `koanf:"relationships" validate:"dive"`
}

// TableConfig describes one flat CSV file and its role in the schema.
type TableConfig struct {
	// Name is the entity id used in relationships and feature names.
	Name string `koanf:"name" validate:"required"`

	// File is the training-partition CSV path.
	File string `koanf:"file" validate:"required"`

	// TestFile is the test-partition CSV path. Only meaningful for the
	// target table; other tables are shared by both partitions.
	TestFile string `koanf:"test_file"`

	// Index names the unique key column. When MakeIndex is set the column is
	// synthesized instead of read.
	Index     string `koanf:"index" validate:"required"`
	MakeIndex bool   `koanf:"make_index"`

	// TimeIndex optionally names the column holding the row timestamp.
	TimeIndex string `koanf:"time_index"`

	// DateColumns maps a column to a strptime format. An empty format lets
	// DuckDB parse the value as a timestamp.
	DateColumns map[string]string `koanf:"date_columns"`

	// TextColumns are free-text columns (eligible for text transforms).
	TextColumns []string `koanf:"text_columns"`

	// CategoricalColumns forces columns DuckDB would read as numbers to be
	// treated as categories.
	CategoricalColumns []string `koanf:"categorical_columns"`
}

// RelationshipConfig declares a one-to-many link parent.key -> child.column.
type RelationshipConfig struct {
	ParentTable  string `koanf:"parent_table" validate:"required"`
	ParentColumn string `koanf:"parent_column" validate:"required"`
	ChildTable   string `koanf:"child_table" validate:"required"`
	ChildColumn  string `koanf:"child_column" validate:"required"`
}

// DatabaseConfig holds DuckDB settings used for CSV ingestion.
type DatabaseConfig struct {
	Threads   int    `koanf:"threads" validate:"gte=0"` // 0 = use runtime.NumCPU()
	MaxMemory string `koanf:"max_memory"`
}

// FeaturesConfig controls deep feature synthesis.
type FeaturesConfig struct {
	AggPrimitives   []string `koanf:"agg_primitives" validate:"required,min=1"`
	TransPrimitives []string `koanf:"trans_primitives"`
	WherePrimitives []string `koanf:"where_primitives"`

	// MaxDepth bounds feature composition depth.
	MaxDepth int `koanf:"max_depth" validate:"gte=1,lte=4"`

	// InterestingValues lists categorical filters used for where-clauses.
	InterestingValues []InterestingValueConfig `koanf:"interesting_values" validate:"dive"`

	// Keywords is the fixed keyword set of the keyword_count transform.
	Keywords []string `koanf:"keywords"`

	// LongSessionThreshold is the long_session_count threshold in seconds.
	LongSessionThreshold float64 `koanf:"long_session_threshold" validate:"gt=0"`

	// LongSessionInclusive switches long_session_count from > to >=.
	LongSessionInclusive bool `koanf:"long_session_inclusive"`

	// UnknownTokens are raw data values treated as missing by post-processing.
	UnknownTokens []string `koanf:"unknown_tokens"`
}

// InterestingValueConfig names categorical values worth a where-clause.
type InterestingValueConfig struct {
	Table  string   `koanf:"table" validate:"required"`
	Column string   `koanf:"column" validate:"required"`
	Values []string `koanf:"values" validate:"required,min=1"`
}

// AutoMLConfig controls the cross-validated model search.
type AutoMLConfig struct {
	// MaxRuntime is the wall-clock training budget.
	MaxRuntime time.Duration `koanf:"max_runtime" validate:"gt=0"`

	// MaxModels caps the number of base models (0 = unlimited within budget).
	MaxModels int `koanf:"max_models" validate:"gte=0"`

	NFolds int   `koanf:"nfolds" validate:"gte=2,lte=20"`
	Seed   int64 `koanf:"seed"`

	IncludeFamilies []string `koanf:"include_families"`
	ExcludeFamilies []string `koanf:"exclude_families"`

	// SortMetric ranks the leaderboard: mean_per_class_error, logloss, misclassification.
	SortMetric string `koanf:"sort_metric" validate:"oneof=mean_per_class_error logloss misclassification"`

	// MaxCategoryLevels caps one-hot encoding width per categorical column.
	MaxCategoryLevels int `koanf:"max_category_levels" validate:"gte=1"`
}

// OutputConfig names the persisted artifacts.
type OutputConfig struct {
	Dir             string `koanf:"dir" validate:"required"`
	TrainMatrix     string `koanf:"train_matrix" validate:"required"`
	TestMatrix      string `koanf:"test_matrix" validate:"required"`
	FeatureDefs     string `koanf:"feature_defs" validate:"required"`
	ModelDir        string `koanf:"model_dir" validate:"required"`
	Leaderboard     string `koanf:"leaderboard" validate:"required"`
	Submission      string `koanf:"submission" validate:"required"`
	SubmissionKey   string `koanf:"submission_key" validate:"required"`
	SubmissionLabel string `koanf:"submission_label" validate:"required"`

	// SubmissionTopK writes k ranked predictions per key (1 = single label).
	SubmissionTopK int `koanf:"submission_top_k" validate:"gte=1"`

	// KeepModels is how many leader versions stay in ModelDir after a
	// training run; 0 keeps every version.
	KeepModels int `koanf:"keep_models" validate:"gte=0"`
}

// RegistryConfig configures the BadgerDB run registry.
type RegistryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is the output path; empty disables the export.
	Textfile string `koanf:"textfile"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Table returns the table configuration with the given name.
func (s *SchemaConfig) Table(name string) (TableConfig, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableConfig{}, false
}

// Resolve joins a table path onto the data directory unless it is absolute.
func (d DataConfig) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.Dir, path)
}

// Path joins an artifact name onto the output directory unless it is absolute.
func (o OutputConfig) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.Dir, name)
}
