// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package database

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/config"
	"github.com/tomtom215/featuresmith/internal/frame"
)

// testDBSemaphore serializes DuckDB usage across tests. Concurrent CGO calls
// from many parallel tests can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB opens an in-memory database held for the whole test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := New(&config.DatabaseConfig{Threads: 1, MaxMemory: "256MB"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadCSV_SniffedKinds(t *testing.T) {
	db := setupTestDB(t)

	path := writeFile(t, "users.csv", "id,age,signup,active,gender\n"+
		"u2,34,2014-01-02,true,FEMALE\n"+
		"u1,,2014-01-01,false,\n")

	f, err := db.ReadCSV(context.Background(), TableSource{Path: path})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if f.Len() != 2 || f.Width() != 5 {
		t.Fatalf("frame shape = %dx%d, want 2x5", f.Len(), f.Width())
	}

	want := map[string]frame.Kind{
		"id":     frame.KindCategorical,
		"age":    frame.KindNumeric,
		"signup": frame.KindDatetime,
		"active": frame.KindBoolean,
		"gender": frame.KindCategorical,
	}
	for name, kind := range want {
		c, ok := f.Column(name)
		if !ok {
			t.Fatalf("column %s missing", name)
		}
		if c.Kind != kind {
			t.Errorf("column %s kind = %v, want %v", name, c.Kind, kind)
		}
	}

	age, _ := f.Column("age")
	if age.State[1] != frame.Missing {
		t.Errorf("empty numeric cell state = %v, want missing", age.State[1])
	}
	gender, _ := f.Column("gender")
	if gender.State[1] != frame.Missing {
		t.Errorf("empty string cell state = %v, want missing", gender.State[1])
	}
}

func TestReadCSV_OverridesAndOrder(t *testing.T) {
	db := setupTestDB(t)

	path := writeFile(t, "users.csv", "id,timestamp_first_active,bucket,note\n"+
		"b,20090319043255,7,great booking\n"+
		"a,20100101000000,8,\n")

	f, err := db.ReadCSV(context.Background(), TableSource{
		Path:               path,
		DateColumns:        map[string]string{"timestamp_first_active": "%Y%m%d%H%M%S"},
		CategoricalColumns: []string{"bucket"},
		TextColumns:        []string{"note"},
		OrderBy:            "id",
	})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	id, _ := f.Column("id")
	if id.Str[0] != "a" || id.Str[1] != "b" {
		t.Errorf("rows not ordered by id: %v", id.Str)
	}

	ts, _ := f.Column("timestamp_first_active")
	if ts.Kind != frame.KindDatetime {
		t.Fatalf("timestamp kind = %v, want datetime", ts.Kind)
	}
	wantTS := time.Date(2009, 3, 19, 4, 32, 55, 0, time.UTC)
	if !ts.Time[1].Equal(wantTS) {
		t.Errorf("parsed timestamp = %v, want %v", ts.Time[1], wantTS)
	}

	bucket, _ := f.Column("bucket")
	if bucket.Kind != frame.KindCategorical || bucket.Str[0] != "8" {
		t.Errorf("bucket = %v %v, want categorical \"8\"", bucket.Kind, bucket.Str)
	}

	note, _ := f.Column("note")
	if note.Kind != frame.KindText || note.Str[1] != "great booking" {
		t.Errorf("note = %v %v", note.Kind, note.Str)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.ReadCSV(ctx, TableSource{Path: filepath.Join(t.TempDir(), "absent.csv")})
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing file error = %v, want ErrFileNotFound", err)
	}

	path := writeFile(t, "t.csv", "a,b\n1,2\n")
	_, err = db.ReadCSV(ctx, TableSource{Path: path, TextColumns: []string{"c"}})
	if !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("unknown override error = %v, want ErrColumnNotFound", err)
	}
}

func TestReadColumn_FileOrder(t *testing.T) {
	db := setupTestDB(t)

	path := writeFile(t, "test_users.csv", "id,age\nz,1\nx,2\ny,\n")
	got, err := db.ReadColumn(context.Background(), path, "id")
	if err != nil {
		t.Fatalf("ReadColumn() error = %v", err)
	}
	want := []string{"z", "x", "y"}
	if len(got) != len(want) {
		t.Fatalf("ReadColumn() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ReadColumn()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := db.ReadColumn(context.Background(), path, "nope"); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("ReadColumn(nope) error = %v, want ErrColumnNotFound", err)
	}
}

func TestReadCSV_KeysKeepRawSpelling(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// DuckDB sniffs these keys as DOUBLE and would render them as 7 and 3.
	path := writeFile(t, "test_users.csv", "id,age\n7.0,30\n3.0,41\n")

	f, err := db.ReadCSV(ctx, TableSource{Path: path, CategoricalColumns: []string{"id"}, OrderBy: "id"})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	id, _ := f.Column("id")
	if id.Kind != frame.KindCategorical || id.Str[0] != "3.0" || id.Str[1] != "7.0" {
		t.Errorf("id = %v %v, want categorical [3.0 7.0]", id.Kind, id.Str)
	}
	age, _ := f.Column("age")
	if age.Kind != frame.KindNumeric || age.Num[0] != 41 {
		t.Errorf("age = %v %v, want numeric sorted with its key", age.Kind, age.Num)
	}

	got, err := db.ReadColumn(ctx, path, "id")
	if err != nil {
		t.Fatalf("ReadColumn() error = %v", err)
	}
	if len(got) != 2 || got[0] != "7.0" || got[1] != "3.0" {
		t.Errorf("ReadColumn() = %v, want [7.0 3.0]", got)
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created := time.Date(2014, 1, 2, 3, 4, 5, 0, time.UTC)
	active := frame.NewBoolean("active", []bool{true, false, true})
	active.SetState(2, frame.Missing)
	f, err := frame.New(
		frame.NewString("id", frame.KindCategorical, []string{"u1", "u2", "u3"}),
		frame.NewNumeric("age", []float64{34.5, math.NaN(), 20}),
		active,
		frame.NewDatetime("created", []time.Time{created, {}, created}),
		frame.NewString("note", frame.KindText, []string{"a, quoted \"note\"", "", "plain"}),
	)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out", "matrix.csv")
	if err := db.WriteCSV(ctx, path, f); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if header, _, _ := strings.Cut(string(data), "\n"); header != "id,age,active,created,note" {
		t.Errorf("header = %q", header)
	}

	got, err := db.ReadCSV(ctx, TableSource{
		Path:  path,
		Kinds: map[string]frame.Kind{"id": frame.KindCategorical, "note": frame.KindText},
	})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("rows = %d, want 3", got.Len())
	}
	for _, c := range f.Columns() {
		back, ok := got.Column(c.Name)
		if !ok {
			t.Fatalf("column %s not written", c.Name)
		}
		if back.Kind != c.Kind {
			t.Errorf("column %s kind = %v, want %v", c.Name, back.Kind, c.Kind)
		}
		for i := 0; i < c.Len(); i++ {
			if back.State[i] != c.State[i] || back.Format(i) != c.Format(i) {
				t.Errorf("%s[%d] = %q (%v), want %q (%v)", c.Name, i, back.Format(i), back.State[i], c.Format(i), c.State[i])
			}
		}
	}

	// Scratch tables do not outlive the write.
	var tables int
	if err := db.conn.QueryRowContext(ctx, "SELECT count(*) FROM duckdb_tables()").Scan(&tables); err != nil {
		t.Fatal(err)
	}
	if tables != 0 {
		t.Errorf("tables left behind = %d, want 0", tables)
	}
}

func TestWriteCSV_NoColumns(t *testing.T) {
	db := setupTestDB(t)

	empty, err := frame.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := db.WriteCSV(context.Background(), filepath.Join(t.TempDir(), "x.csv"), empty); err == nil {
		t.Error("WriteCSV() with no columns expected error")
	}
}

func TestQuoting(t *testing.T) {
	t.Parallel()

	if got := quoteIdent(`a"b`); got != `"a""b"` {
		t.Errorf("quoteIdent() = %s", got)
	}
	if got := quoteLiteral("it's"); got != "'it''s'" {
		t.Errorf("quoteLiteral() = %s", got)
	}
}

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

func TestCloseHelpers(t *testing.T) {
	t.Parallel()

	closeQuietly(nil)
	closeWithLog(nil, nil, "nil")

	c := &mockCloser{err: errors.New("boom")}
	logger := zerolog.Nop()
	closeWithLog(c, &logger, "test")
	if !c.closed {
		t.Error("closeWithLog did not close")
	}

	c2 := &mockCloser{}
	closeQuietly(c2)
	if !c2.closed {
		t.Error("closeQuietly did not close")
	}
}
