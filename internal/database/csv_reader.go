// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/tomtom215/featuresmith/internal/frame"
	"github.com/tomtom215/featuresmith/internal/metrics"
)

// TableSource describes one CSV file and how its columns should be typed.
type TableSource struct {
	// Path is the CSV file location.
	Path string

	// DateColumns maps a column to a strptime format. An empty format casts
	// the value as a timestamp.
	DateColumns map[string]string

	// TextColumns are read as free text.
	TextColumns []string

	// CategoricalColumns are read as categories even when DuckDB sniffs a number.
	CategoricalColumns []string

	// Kinds forces column kinds and takes precedence over every other option.
	// Names absent from the file are ignored.
	Kinds map[string]frame.Kind

	// OrderBy, when set, sorts rows ascending by this column.
	OrderBy string
}

// csvColumn is one column of a sniffed CSV header.
type csvColumn struct {
	name    string
	sqlType string
	kind    frame.Kind
	format  string
}

// ReadCSV reads a CSV file into a frame.
func (db *DB) ReadCSV(ctx context.Context, src TableSource) (f *frame.Frame, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("read_csv", time.Since(start), err) }()

	if _, err := os.Stat(src.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, src.Path)
		}
		return nil, fmt.Errorf("stat %s: %w", src.Path, err)
	}

	cols, err := db.describe(ctx, src.Path)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cols, src); err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	query := buildSelect(cols, src)
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", src.Path, err)
	}
	defer closeWithLog(rows, &db.logger, "rows")

	builders := make([]*columnBuilder, len(cols))
	dest := make([]any, len(cols))
	for i, c := range cols {
		builders[i] = newColumnBuilder(c)
		dest[i] = builders[i].scanTarget()
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", src.Path, err)
		}
		for _, b := range builders {
			b.appendScanned()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", src.Path, err)
	}

	out := make([]*frame.Column, len(builders))
	for i, b := range builders {
		out[i] = b.column()
	}
	f, err = frame.New(out...)
	if err != nil {
		return nil, fmt.Errorf("build frame from %s: %w", src.Path, err)
	}

	db.logger.Debug().
		Str("path", src.Path).
		Int("rows", f.Len()).
		Int("columns", f.Width()).
		Dur("duration", time.Since(start)).
		Msg("CSV loaded")

	return f, nil
}

// ReadColumn reads one column as raw text in file order. Empty cells
// become "".
func (db *DB) ReadColumn(ctx context.Context, path, column string) (values []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("read_column", time.Since(start), err) }()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cols, err := db.describe(ctx, path)
	if err != nil {
		return nil, err
	}
	found := false
	for _, c := range cols {
		if c.name == column {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s in %s", ErrColumnNotFound, column, path)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", quoteIdent(column), readCSVAuto(path, []string{column}))
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	defer closeWithLog(rows, &db.logger, "rows")

	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		values = append(values, v.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", path, err)
	}
	return values, nil
}

// readCSVAuto renders a read_csv_auto call over path that reads the varchar
// columns without type sniffing.
func readCSVAuto(path string, varchar []string) string {
	if len(varchar) == 0 {
		return fmt.Sprintf("read_csv_auto(%s)", quoteLiteral(path))
	}
	types := make([]string, len(varchar))
	for i, name := range varchar {
		types[i] = quoteLiteral(name) + ": 'VARCHAR'"
	}
	return fmt.Sprintf("read_csv_auto(%s, types={%s})", quoteLiteral(path), strings.Join(types, ", "))
}

// describe sniffs the CSV header and column types.
func (db *DB) describe(ctx context.Context, path string) ([]*csvColumn, error) {
	query := fmt.Sprintf("DESCRIBE SELECT * FROM read_csv_auto(%s)", quoteLiteral(path))
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}
	defer closeWithLog(rows, &db.logger, "rows")

	var cols []*csvColumn
	for rows.Next() {
		// column_name, column_type, null, key, default, extra
		var name, typ, null, key, def, extra sql.NullString
		if err := rows.Scan(&name, &typ, &null, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("describe %s: %w", path, err)
		}
		cols = append(cols, &csvColumn{
			name:    name.String,
			sqlType: typ.String,
			kind:    kindForType(typ.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}
	return cols, nil
}

var numericTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "INTEGER": true, "BIGINT": true, "HUGEINT": true,
	"UTINYINT": true, "USMALLINT": true, "UINTEGER": true, "UBIGINT": true, "UHUGEINT": true,
	"FLOAT": true, "DOUBLE": true, "REAL": true,
}

// kindForType maps a DuckDB type name to a column kind.
func kindForType(sqlType string) frame.Kind {
	t := strings.ToUpper(sqlType)
	switch {
	case t == "BOOLEAN":
		return frame.KindBoolean
	case strings.HasPrefix(t, "TIMESTAMP"), t == "DATE":
		return frame.KindDatetime
	case strings.HasPrefix(t, "DECIMAL"), numericTypes[t]:
		return frame.KindNumeric
	default:
		return frame.KindCategorical
	}
}

// applyOverrides narrows sniffed kinds with the source options. Every
// overridden column must exist.
func applyOverrides(cols []*csvColumn, src TableSource) error {
	byName := make(map[string]*csvColumn, len(cols))
	for _, c := range cols {
		byName[c.name] = c
	}
	lookup := func(name string) (*csvColumn, error) {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
		return c, nil
	}

	for _, name := range src.CategoricalColumns {
		c, err := lookup(name)
		if err != nil {
			return err
		}
		c.kind = frame.KindCategorical
	}
	for _, name := range src.TextColumns {
		c, err := lookup(name)
		if err != nil {
			return err
		}
		c.kind = frame.KindText
	}
	for name, format := range src.DateColumns {
		c, err := lookup(name)
		if err != nil {
			return err
		}
		c.kind = frame.KindDatetime
		c.format = format
	}
	for name, kind := range src.Kinds {
		if c, ok := byName[name]; ok {
			c.kind = kind
		}
	}
	if src.OrderBy != "" {
		if _, err := lookup(src.OrderBy); err != nil {
			return err
		}
	}
	return nil
}

// buildSelect renders a SELECT whose projections match the column kinds.
func buildSelect(cols []*csvColumn, src TableSource) string {
	exprs := make([]string, len(cols))
	for i, c := range cols {
		ident := quoteIdent(c.name)
		switch c.kind {
		case frame.KindNumeric:
			exprs[i] = fmt.Sprintf("TRY_CAST(%s AS DOUBLE)", ident)
		case frame.KindBoolean:
			exprs[i] = fmt.Sprintf("TRY_CAST(%s AS BOOLEAN)", ident)
		case frame.KindDatetime:
			if c.format != "" {
				exprs[i] = fmt.Sprintf("TRY_STRPTIME(CAST(%s AS VARCHAR), %s)", ident, quoteLiteral(c.format))
			} else {
				exprs[i] = fmt.Sprintf("TRY_CAST(%s AS TIMESTAMP)", ident)
			}
		default:
			exprs[i] = fmt.Sprintf("CAST(%s AS VARCHAR)", ident)
		}
	}

	// String-backed columns that were sniffed as another type are read as
	// VARCHAR, so a key spelled "7.0" in the file stays "7.0".
	var raw []string
	for _, c := range cols {
		if (c.kind == frame.KindCategorical || c.kind == frame.KindText) && !strings.EqualFold(c.sqlType, "VARCHAR") {
			raw = append(raw, c.name)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(exprs, ", "))
	b.WriteString(" FROM ")
	b.WriteString(readCSVAuto(src.Path, raw))
	if src.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(quoteIdent(src.OrderBy))
		b.WriteString(" NULLS LAST")
	}
	return b.String()
}

// columnBuilder accumulates scanned values for one column. Cells without
// a value are kept as NaN, zero times and empty strings, which the frame
// constructors store as Missing.
type columnBuilder struct {
	name string
	kind frame.Kind

	f sql.NullFloat64
	b sql.NullBool
	s sql.NullString
	t sql.NullTime

	num   []float64
	bools []bool
	str   []string
	tm    []time.Time

	// nullBools lists the rows of a boolean column that held no value.
	nullBools []int
}

func newColumnBuilder(c *csvColumn) *columnBuilder {
	return &columnBuilder{name: c.name, kind: c.kind}
}

func (cb *columnBuilder) scanTarget() any {
	switch cb.kind {
	case frame.KindNumeric:
		return &cb.f
	case frame.KindBoolean:
		return &cb.b
	case frame.KindDatetime:
		return &cb.t
	default:
		return &cb.s
	}
}

func (cb *columnBuilder) appendScanned() {
	switch cb.kind {
	case frame.KindNumeric:
		if cb.f.Valid {
			cb.num = append(cb.num, cb.f.Float64)
		} else {
			cb.num = append(cb.num, math.NaN())
		}
	case frame.KindBoolean:
		if !cb.b.Valid {
			cb.nullBools = append(cb.nullBools, len(cb.bools))
		}
		cb.bools = append(cb.bools, cb.b.Valid && cb.b.Bool)
	case frame.KindDatetime:
		if cb.t.Valid {
			cb.tm = append(cb.tm, cb.t.Time.UTC())
		} else {
			cb.tm = append(cb.tm, time.Time{})
		}
	default:
		cb.str = append(cb.str, cb.s.String)
	}
}

func (cb *columnBuilder) column() *frame.Column {
	switch cb.kind {
	case frame.KindNumeric:
		return frame.NewNumeric(cb.name, cb.num)
	case frame.KindBoolean:
		c := frame.NewBoolean(cb.name, cb.bools)
		for _, i := range cb.nullBools {
			c.SetState(i, frame.Missing)
		}
		return c
	case frame.KindDatetime:
		return frame.NewDatetime(cb.name, cb.tm)
	default:
		return frame.NewString(cb.name, cb.kind, cb.str)
	}
}
