// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

// Package loader reads the configured flat files and assembles them into
// entity sets.
//
// The label column is removed from the training target table before any
// relational processing and kept in a map keyed by the target key, so it can
// only ever be reattached by key.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/config"
	"github.com/tomtom215/featuresmith/internal/database"
	"github.com/tomtom215/featuresmith/internal/frame"
)

var (
	// ErrMissingLabel is returned when a training row has no label.
	ErrMissingLabel = errors.New("training row has no label")
	// ErrLabelNotFound is returned when the training target lacks the label column.
	ErrLabelNotFound = errors.New("label column not found")
)

// CSVReader reads CSV files into frames.
type CSVReader interface {
	ReadCSV(ctx context.Context, src database.TableSource) (*frame.Frame, error)
}

// Labels holds training labels keyed by target key.
type Labels struct {
	Column string
	ByKey  map[string]string
}

// Dataset holds every raw table after loading.
type Dataset struct {
	// Tables maps table name to frame. The target entry is the training
	// partition with the label removed.
	Tables map[string]*frame.Frame

	// TestTarget is the test partition of the target table.
	TestTarget *frame.Frame

	Labels Labels
}

// Loader reads the tables declared in a schema.
type Loader struct {
	reader CSVReader
	data   config.DataConfig
	schema config.SchemaConfig
	logger zerolog.Logger
}

// New creates a loader.
func New(reader CSVReader, data config.DataConfig, schema config.SchemaConfig, logger zerolog.Logger) *Loader {
	return &Loader{
		reader: reader,
		data:   data,
		schema: schema,
		logger: logger.With().Str("component", "loader").Logger(),
	}
}

// Load reads every table, sorted by its key where the key is natural.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	ds := &Dataset{Tables: make(map[string]*frame.Frame, len(l.schema.Tables))}

	for _, t := range l.schema.Tables {
		f, err := l.reader.ReadCSV(ctx, l.source(t, t.File, nil))
		if err != nil {
			return nil, fmt.Errorf("load table %s: %w", t.Name, err)
		}
		ds.Tables[t.Name] = f

		l.logger.Info().Str("table", t.Name).Int("rows", f.Len()).Int("columns", f.Width()).Msg("Table loaded")
	}

	target, _ := l.schema.Table(l.schema.Target)
	train := ds.Tables[target.Name]

	labels, err := stripLabel(train, target.Index, l.schema.Label)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", target.Name, err)
	}
	ds.Labels = labels

	// The test partition is read with the train kinds so that both
	// partitions yield the same column kinds.
	kinds := make(map[string]frame.Kind, train.Width())
	for _, c := range train.Columns() {
		kinds[c.Name] = c.Kind
	}
	test, err := l.reader.ReadCSV(ctx, l.source(target, target.TestFile, kinds))
	if err != nil {
		return nil, fmt.Errorf("load table %s test partition: %w", target.Name, err)
	}
	if test.Has(l.schema.Label) {
		if _, err := test.Drop(l.schema.Label); err != nil {
			return nil, err
		}
	}
	ds.TestTarget = test

	l.logger.Info().
		Int("train_rows", train.Len()).
		Int("test_rows", test.Len()).
		Int("labels", len(labels.ByKey)).
		Dur("duration", time.Since(start)).
		Msg("Raw tables loaded")

	return ds, nil
}

// source builds a table source. kinds, when set, constrains columns the file
// actually has; unknown names are ignored.
func (l *Loader) source(t config.TableConfig, file string, kinds map[string]frame.Kind) database.TableSource {
	src := database.TableSource{
		Path:               l.data.Resolve(file),
		DateColumns:        t.DateColumns,
		TextColumns:        t.TextColumns,
		CategoricalColumns: l.keyColumns(t),
	}
	if !t.MakeIndex {
		src.OrderBy = t.Index
	}
	if kinds != nil {
		src.Kinds = kinds
	}
	return src
}

// keyColumns returns the configured categorical columns of t plus every
// column that joins rows: its natural index and the child side of each
// relationship. Keys are read as raw text so the submission sees the same
// spelling as the feature matrix.
func (l *Loader) keyColumns(t config.TableConfig) []string {
	cols := append([]string(nil), t.CategoricalColumns...)
	if !t.MakeIndex {
		cols = append(cols, t.Index)
	}
	for _, r := range l.schema.Relationships {
		if r.ChildTable == t.Name {
			cols = append(cols, r.ChildColumn)
		}
	}
	return cols
}

// stripLabel removes the label column and returns it keyed by index.
func stripLabel(f *frame.Frame, index, label string) (Labels, error) {
	key, err := f.MustColumn(index)
	if err != nil {
		return Labels{}, err
	}
	col, err := f.Drop(label)
	if err != nil {
		return Labels{}, fmt.Errorf("%w: %s", ErrLabelNotFound, label)
	}

	byKey := make(map[string]string, col.Len())
	for i := 0; i < col.Len(); i++ {
		k, ok := key.Key(i)
		if !ok {
			return Labels{}, fmt.Errorf("row %d has no %s", i, index)
		}
		if col.State[i] != frame.Present {
			return Labels{}, fmt.Errorf("%w: %s=%s", ErrMissingLabel, index, k)
		}
		byKey[k] = col.Format(i)
	}
	return Labels{Column: label, ByKey: byKey}, nil
}
