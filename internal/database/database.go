// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

// Package database reads and writes flat CSV files through an in-memory
// DuckDB connection, exchanging them with the rest of the pipeline as frames.
//
// DuckDB's read_csv_auto sniffs the header, delimiter and column types. The
// sniffed types are then narrowed by per-column overrides (text, categorical,
// date formats) and every value is selected through an explicit CAST,
// TRY_CAST or TRY_STRPTIME so that malformed cells surface as NULL rather than
// failing the whole read. NULLs become Missing cells in the resulting frame.
//
// Frames are written back out with the DuckDB appender and COPY ... TO, so
// every CSV the pipeline produces goes through the same engine that reads it.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/config"
)

// DB wraps an in-memory DuckDB connection used for CSV ingestion.
type DB struct {
	conn   *sql.DB
	cfg    *config.DatabaseConfig
	logger zerolog.Logger
}

// New opens an in-memory DuckDB connection.
func New(cfg *config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network environments.
	// read_csv_auto is built in and needs no extension.
	connStr := fmt.Sprintf("?threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false", numThreads)
	if cfg.MaxMemory != "" {
		connStr += "&max_memory=" + cfg.MaxMemory
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With().Str("component", "database").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.logger.Debug().Int("threads", numThreads).Str("max_memory", cfg.MaxMemory).Msg("DuckDB connection opened")
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a SQL string literal. Table function arguments are
// literals rather than bound parameters.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
