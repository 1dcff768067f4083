// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

// Package submission writes scored test rows as a two-column key,label file.
//
// The key column is read again from the raw test file and matched against
// the keys carried by the predictions. Any difference between the two key
// sets fails the write instead of pairing a key with another row's label.
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/automl"
	"github.com/tomtom215/featuresmith/internal/frame"
)

// ErrKeyMismatch is returned when the raw test keys and the predicted keys
// differ.
var ErrKeyMismatch = errors.New("submission keys do not match predictions")

// Files reads the raw key column and writes the submission file.
type Files interface {
	// ReadColumn reads one raw column of a CSV file in file order.
	ReadColumn(ctx context.Context, path, column string) ([]string, error)

	// WriteCSV writes a frame with a header row.
	WriteCSV(ctx context.Context, path string, f *frame.Frame) error
}

// Options locates the raw keys and shapes the output file.
type Options struct {
	// TestFile is the raw test partition holding KeyColumn.
	TestFile  string
	KeyColumn string

	// Path is the submission file to write.
	Path string

	// KeyHeader and LabelHeader are the output column names.
	KeyHeader   string
	LabelHeader string

	// TopK writes the k most probable labels per key, best first.
	TopK int
}

// Summary describes a written submission.
type Summary struct {
	Path string
	Keys int
	Rows int
}

// Writer writes submissions.
type Writer struct {
	files  Files
	logger zerolog.Logger
}

// NewWriter creates a submission writer.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWriter(files Files, logger zerolog.Logger) *Writer {
	return &Writer{files: files, logger: logger.With().Str("component", "submission").Logger()}
}

// Write verifies the keys and writes the submission in prediction order.
func (w *Writer) Write(ctx context.Context, preds *automl.Predictions, opts Options) (Summary, error) {
	start := time.Now()
	k := max(opts.TopK, 1)

	raw, err := w.files.ReadColumn(ctx, opts.TestFile, opts.KeyColumn)
	if err != nil {
		return Summary{}, fmt.Errorf("read submission keys: %w", err)
	}
	if err := MatchKeys(raw, preds.Keys); err != nil {
		return Summary{}, err
	}

	n := preds.Len()
	keys := make([]string, 0, n*k)
	labels := make([]string, 0, n*k)
	for i := 0; i < n; i++ {
		for _, label := range preds.TopK(i, k) {
			keys = append(keys, preds.Keys[i])
			labels = append(labels, label)
		}
	}

	out, err := frame.New(
		frame.NewString(opts.KeyHeader, frame.KindCategorical, keys),
		frame.NewString(opts.LabelHeader, frame.KindCategorical, labels),
	)
	if err != nil {
		return Summary{}, fmt.Errorf("build submission: %w", err)
	}
	if err := w.files.WriteCSV(ctx, opts.Path, out); err != nil {
		return Summary{}, fmt.Errorf("write submission: %w", err)
	}

	w.logger.Info().
		Str("path", opts.Path).
		Int("keys", n).
		Int("rows", out.Len()).
		Int("top_k", k).
		Dur("duration", time.Since(start)).
		Msg("Submission written")

	return Summary{Path: opts.Path, Keys: n, Rows: out.Len()}, nil
}

// MatchKeys reports whether raw and predicted hold exactly the same keys,
// each once. Order is irrelevant.
func MatchKeys(raw, predicted []string) error {
	if len(raw) != len(predicted) {
		return fmt.Errorf("%w: %d raw keys, %d predictions", ErrKeyMismatch, len(raw), len(predicted))
	}
	want := make(map[string]bool, len(predicted))
	for _, k := range predicted {
		if want[k] {
			return fmt.Errorf("%w: duplicate predicted key %q", ErrKeyMismatch, k)
		}
		want[k] = true
	}
	seen := make(map[string]bool, len(raw))
	for _, k := range raw {
		if k == "" {
			return fmt.Errorf("%w: empty raw key", ErrKeyMismatch)
		}
		if !want[k] {
			return fmt.Errorf("%w: raw key %q has no prediction", ErrKeyMismatch, k)
		}
		if seen[k] {
			return fmt.Errorf("%w: duplicate raw key %q", ErrKeyMismatch, k)
		}
		seen[k] = true
	}
	return nil
}
