// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package database

import (
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/tomtom215/featuresmith/internal/frame"
	"github.com/tomtom215/featuresmith/internal/metrics"
)

// WriteCSV writes f to path with a header row. The frame is appended into a
// scratch table which DuckDB then copies out, so written files use the same
// CSV dialect that ReadCSV sniffs. Missing cells are written as empty fields.
func (db *DB) WriteCSV(ctx context.Context, path string, f *frame.Frame) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("write_csv", time.Since(start), err) }()

	if f.Width() == 0 {
		return fmt.Errorf("write %s: frame has no columns", path)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// One connection for the whole export: the scratch table, the appender
	// and the COPY must see the same session.
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer closeWithLog(conn, &db.logger, "connection")

	table := "export_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	defs := make([]string, f.Width())
	for j, c := range f.Columns() {
		defs[j] = quoteIdent(c.Name) + " " + sqlType(c.Kind)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create export table: %w", err)
	}
	defer func() {
		if _, derr := conn.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+quoteIdent(table)); derr != nil {
			db.logger.Warn().Err(derr).Str("table", table).Msg("Failed to drop export table")
		}
	}()

	err = conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		appender, err := duckdb.NewAppenderFromConn(dc, "", table)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}
		if err := appendRows(ctx, appender, f); err != nil {
			closeQuietly(appender)
			return err
		}
		return appender.Close()
	})
	if err != nil {
		return fmt.Errorf("append rows for %s: %w", path, err)
	}

	query := fmt.Sprintf("COPY %s TO %s (FORMAT CSV, HEADER)", quoteIdent(table), quoteLiteral(path))
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("copy to %s: %w", path, err)
	}

	db.logger.Debug().
		Str("path", path).
		Int("rows", f.Len()).
		Int("columns", f.Width()).
		Dur("duration", time.Since(start)).
		Msg("CSV written")

	return nil
}

// appendRows feeds every row of f to the appender. ctx is checked between
// batches of rows.
func appendRows(ctx context.Context, appender *duckdb.Appender, f *frame.Frame) error {
	cols := f.Columns()
	row := make([]driver.Value, len(cols))
	for i := 0; i < f.Len(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, c := range cols {
			row[j] = cellValue(c, i)
		}
		if err := appender.AppendRow(row...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// sqlType maps a column kind to the DuckDB type it is exported as.
func sqlType(kind frame.Kind) string {
	switch kind {
	case frame.KindNumeric:
		return "DOUBLE"
	case frame.KindBoolean:
		return "BOOLEAN"
	case frame.KindDatetime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// cellValue returns row i of c as a driver value; nil for cells that are
// not present.
func cellValue(c *frame.Column, i int) driver.Value {
	if !c.IsPresent(i) {
		return nil
	}
	switch c.Kind {
	case frame.KindNumeric:
		return c.Num[i]
	case frame.KindBoolean:
		return c.Num[i] != 0
	case frame.KindDatetime:
		return c.Time[i].UTC()
	default:
		return c.Str[i]
	}
}
