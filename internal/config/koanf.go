// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/featuresmith/config.yaml",
	"/etc/featuresmith/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config describing the users/sessions/buckets layout.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir: "data",
		},
		Schema: SchemaConfig{
			Target: "users",
			Label:  "country_destination",
			Tables: []TableConfig{
				{
					Name:     "users",
					File:     "train_users.csv",
					TestFile: "test_users.csv",
					Index:    "id",
					DateColumns: map[string]string{
						"date_account_created":   "%Y-%m-%d",
						"timestamp_first_active": "%Y%m%d%H%M%S",
						"date_first_booking":     "%Y-%m-%d",
					},
					TimeIndex: "timestamp_first_active",
				},
				{
					Name:        "sessions",
					File:        "sessions.csv",
					Index:       "session_id",
					MakeIndex:   true,
					TextColumns: []string{"action_detail"},
				},
				{
					Name:  "buckets",
					File:  "age_gender_bkts.csv",
					Index: "bucket_id",
				},
			},
			Relationships: []RelationshipConfig{
				{ParentTable: "buckets", ParentColumn: "bucket_id", ChildTable: "users", ChildColumn: "age_gender_bucket"},
				{ParentTable: "users", ParentColumn: "id", ChildTable: "sessions", ChildColumn: "user_id"},
			},
		},
		Database: DatabaseConfig{
			Threads:   0, // 0 = use runtime.NumCPU()
			MaxMemory: "2GB",
		},
		Features: FeaturesConfig{
			AggPrimitives:   []string{"count", "sum", "mean", "max", "min", "std", "num_unique", "mode", "long_session_count"},
			TransPrimitives: []string{"day", "month", "year", "weekday", "keyword_count"},
			WherePrimitives: []string{"count", "long_session_count"},
			MaxDepth:        2,
			InterestingValues: []InterestingValueConfig{
				{Table: "sessions", Column: "action_type", Values: []string{"click", "view"}},
			},
			Keywords:             []string{"booking", "reservation", "payment"},
			LongSessionThreshold: 3600,
			LongSessionInclusive: false,
			UnknownTokens:        []string{"-unknown-"},
		},
		AutoML: AutoMLConfig{
			MaxRuntime:        time.Hour,
			MaxModels:         20,
			NFolds:            5,
			Seed:              1,
			IncludeFamilies:   []string{},
			ExcludeFamilies:   []string{},
			SortMetric:        "mean_per_class_error",
			MaxCategoryLevels: 32,
		},
		Output: OutputConfig{
			Dir:             "out",
			TrainMatrix:     "train_features.csv",
			TestMatrix:      "test_features.csv",
			FeatureDefs:     "features.json",
			ModelDir:        "models",
			Leaderboard:     "leaderboard.csv",
			Submission:      "submission.csv",
			SubmissionKey:   "id",
			SubmissionLabel: "country",
			SubmissionTopK:  1,
			KeepModels:      5,
		},
		Registry: RegistryConfig{
			Enabled: true,
			Path:    "out/registry",
		},
		Metrics: MetricsConfig{
			Textfile: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the built-in configuration without file or env layers.
func Default() *Config {
	return defaultConfig()
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override scalar settings
//
// An explicit path wins over CONFIG_PATH and the default search paths.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"features.agg_primitives",
	"features.trans_primitives",
	"features.where_primitives",
	"features.keywords",
	"features.unknown_tokens",
	"automl.include_families",
	"automl.exclude_families",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"data_dir": "data.dir",

	"duckdb_threads":    "database.threads",
	"duckdb_max_memory": "database.max_memory",

	"features_agg_primitives":         "features.agg_primitives",
	"features_trans_primitives":       "features.trans_primitives",
	"features_where_primitives":       "features.where_primitives",
	"features_max_depth":              "features.max_depth",
	"features_keywords":               "features.keywords",
	"features_long_session_threshold": "features.long_session_threshold",
	"features_long_session_inclusive": "features.long_session_inclusive",
	"features_unknown_tokens":         "features.unknown_tokens",

	"automl_max_runtime":         "automl.max_runtime",
	"automl_max_models":          "automl.max_models",
	"automl_nfolds":              "automl.nfolds",
	"automl_seed":                "automl.seed",
	"automl_include_families":    "automl.include_families",
	"automl_exclude_families":    "automl.exclude_families",
	"automl_sort_metric":         "automl.sort_metric",
	"automl_max_category_levels": "automl.max_category_levels",

	"output_dir":         "output.dir",
	"output_keep_models": "output.keep_models",
	"submission_top_k":   "output.submission_top_k",

	"registry_enabled": "registry.enabled",
	"registry_path":    "registry.path",

	"metrics_textfile": "metrics.textfile",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - AUTOML_MAX_RUNTIME -> automl.max_runtime
//   - FEATURES_MAX_DEPTH -> features.max_depth
//   - LOG_LEVEL -> logging.level
//
// Unmapped variables return "" and are skipped, so unrelated environment
// variables never pollute the configuration.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
