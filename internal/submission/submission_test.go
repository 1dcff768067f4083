// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package submission

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/featuresmith/internal/automl"
	"github.com/tomtom215/featuresmith/internal/frame"
)

// staticKeys serves the same raw keys for every file and writes frames
// as plain CSV.
type staticKeys []string

func (s staticKeys) ReadColumn(context.Context, string, string) ([]string, error) {
	return s, nil
}

func (s staticKeys) WriteCSV(_ context.Context, path string, f *frame.Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck // flushed below

	w := csv.NewWriter(file)
	if err := w.Write(f.Names()); err != nil {
		return err
	}
	for i := 0; i < f.Len(); i++ {
		record := make([]string, f.Width())
		for j, c := range f.Columns() {
			record[j] = c.Format(i)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func testPredictions() *automl.Predictions {
	return &automl.Predictions{
		Keys:    []string{"a1", "b2", "c3"},
		Classes: []string{"FR", "NDF", "US"},
		Probs: mat.NewDense(3, 3, []float64{
			0.1, 0.7, 0.2,
			0.6, 0.1, 0.3,
			0.2, 0.3, 0.5,
		}),
	}
}

func defaultOptions(dir string) Options {
	return Options{
		TestFile:    "test_users.csv",
		KeyColumn:   "id",
		Path:        filepath.Join(dir, "out", "submission.csv"),
		KeyHeader:   "id",
		LabelHeader: "country",
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestWrite_SingleLabel(t *testing.T) {
	t.Parallel()

	// File order differs from prediction order.
	w := NewWriter(staticKeys{"c3", "a1", "b2"}, zerolog.Nop())
	opts := defaultOptions(t.TempDir())

	sum, err := w.Write(context.Background(), testPredictions(), opts)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if sum.Keys != 3 || sum.Rows != 3 {
		t.Errorf("summary = %+v", sum)
	}

	want := "id,country\na1,NDF\nb2,FR\nc3,US\n"
	if got := readFile(t, opts.Path); got != want {
		t.Errorf("submission =\n%s\nwant\n%s", got, want)
	}
}

func TestWrite_TopK(t *testing.T) {
	t.Parallel()

	w := NewWriter(staticKeys{"a1", "b2", "c3"}, zerolog.Nop())
	opts := defaultOptions(t.TempDir())
	opts.TopK = 2

	sum, err := w.Write(context.Background(), testPredictions(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Rows != 6 {
		t.Errorf("rows = %d, want 6", sum.Rows)
	}
	want := "id,country\na1,NDF\na1,US\nb2,FR\nb2,US\nc3,US\nc3,NDF\n"
	if got := readFile(t, opts.Path); got != want {
		t.Errorf("submission =\n%s\nwant\n%s", got, want)
	}
}

func TestWrite_KeyMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  staticKeys
	}{
		{"missing key", staticKeys{"a1", "b2"}},
		{"extra key", staticKeys{"a1", "b2", "c3", "d4"}},
		{"different key", staticKeys{"a1", "b2", "zz"}},
		{"duplicate key", staticKeys{"a1", "a1", "b2"}},
		{"empty key", staticKeys{"a1", "", "b2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := defaultOptions(t.TempDir())
			_, err := NewWriter(tt.raw, zerolog.Nop()).Write(context.Background(), testPredictions(), opts)
			if !errors.Is(err, ErrKeyMismatch) {
				t.Errorf("Write() error = %v, want ErrKeyMismatch", err)
			}
			if _, statErr := os.Stat(opts.Path); statErr == nil {
				t.Error("submission written despite key mismatch")
			}
		})
	}
}
