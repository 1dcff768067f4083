// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/config"
	"github.com/tomtom215/featuresmith/internal/database"
	"github.com/tomtom215/featuresmith/internal/registry"
)

// TestPipeline_DuckDB runs both stages against real CSV files.
func TestPipeline_DuckDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping DuckDB pipeline test in short mode")
	}

	cfg := testConfig(t)
	db, err := database.New(&config.DatabaseConfig{Threads: 1, MaxMemory: "256MB"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	for name, build := range newFakeSource().tables {
		if err := db.WriteCSV(context.Background(), filepath.Join(cfg.Data.Dir, name), build()); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	runs, err := registry.OpenBadger("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = runs.Close() })

	p := New(cfg, db, runs, zerolog.Nop())
	fres, tres, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if fres.TrainRows != trainUsers || fres.TestRows != testUsers {
		t.Errorf("rows = %d/%d, want %d/%d", fres.TrainRows, fres.TestRows, trainUsers, testUsers)
	}
	if tres.Submission.Keys != testUsers {
		t.Errorf("submission keys = %d, want %d", tres.Submission.Keys, testUsers)
	}

	recs, err := p.Runs(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Status != registry.StatusSucceeded {
		t.Errorf("records = %+v", recs)
	}
}
