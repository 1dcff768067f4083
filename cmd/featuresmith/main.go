// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

// Package main is the entry point for the featuresmith batch pipeline.
//
// Featuresmith turns a set of related flat files (users, their sessions and
// a demographic lookup table) into one feature row per user by deep feature
// synthesis, searches classification models over those rows, and writes a
// key,label submission for the test users.
//
// # Commands
//
//	featuresmith featurize   # raw CSVs -> feature matrices + definitions
//	featuresmith train       # matrices -> leaderboard, model, submission
//	featuresmith run         # both stages under one run id
//	featuresmith runs        # recorded runs, newest first
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (e.g. AUTOML_MAX_RUNTIME=30m, LOG_LEVEL=debug)
//   - Config file (-config, CONFIG_PATH or ./config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the running stage. The model search stops at the
// next checkpoint and the run is recorded as failed.
//
// # Exit Codes
//
//	0  success
//	1  the stage failed
//	2  invalid command line
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/tomtom215/featuresmith/internal/config"
	"github.com/tomtom215/featuresmith/internal/database"
	"github.com/tomtom215/featuresmith/internal/logging"
	"github.com/tomtom215/featuresmith/internal/pipeline"
	"github.com/tomtom215/featuresmith/internal/registry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd, help, err := parseArgs(args, stderr)
	if help {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck // best-effort diagnostics
		return 2
	}

	cfg, err := config.Load(cmd.configPath)
	if err != nil {
		logging.Err(err).Msg("Failed to load configuration")
		return 1
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithNewRunID(ctx)

	if err := execute(ctx, cmd, cfg, stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			logging.Ctx(ctx).Warn().Str("command", cmd.name).Msg("Interrupted")
		} else {
			logging.Ctx(ctx).Error().Err(err).Str("command", cmd.name).Msg("Command failed")
		}
		return 1
	}
	return 0
}

// execute opens the run registry and, for pipeline commands, the database,
// then dispatches cmd.
func execute(ctx context.Context, cmd *command, cfg *config.Config, stdout io.Writer) error {
	runs, err := openRegistry(cfg.Registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := runs.Close(); err != nil {
			logging.Err(err).Msg("Error closing run registry")
		}
	}()

	logger := logging.Logger()

	if cmd.name == cmdRuns {
		recs, err := runs.List(ctx, cmd.limit)
		if err != nil {
			return err
		}
		return printRuns(stdout, recs)
	}

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Err(err).Msg("Error closing database")
		}
	}()

	logging.Ctx(ctx).Info().
		Str("command", cmd.name).
		Str("data_dir", cfg.Data.Dir).
		Str("output_dir", cfg.Output.Dir).
		Msg("Starting featuresmith")

	p := pipeline.New(cfg, db, runs, logger)
	switch cmd.name {
	case cmdFeaturize:
		_, err = p.Featurize(ctx)
	case cmdTrain:
		_, err = p.Train(ctx)
	case cmdRun:
		_, _, err = p.Run(ctx)
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, cmd.name)
	}
	return err
}

// openRegistry opens the BadgerDB registry, or a process-local store when
// the registry is disabled.
func openRegistry(cfg config.RegistryConfig) (registry.Store, error) {
	if !cfg.Enabled {
		return registry.NewMemoryStore(), nil
	}
	store, err := registry.OpenBadger(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run registry: %w", err)
	}
	return store, nil
}

// printRuns writes one aligned line per run record.
func printRuns(w io.Writer, recs []registry.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTAGE\tSTATUS\tSTARTED\tDURATION\tFEATURES\tMODELS\tLEADER\tSCORE") //nolint:errcheck // flushed below
	for i := range recs {
		r := &recs[i]
		score := ""
		if r.Leader != "" {
			score = fmt.Sprintf("%s=%.4f", r.SortMetric, r.LeaderScore)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n", //nolint:errcheck // flushed below
			r.ID, r.Stage, r.Status,
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration().Round(time.Millisecond),
			r.Features, r.Models, r.Leader, score)
	}
	return tw.Flush()
}
