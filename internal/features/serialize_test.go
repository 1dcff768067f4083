// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package features

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/frame"
)

func TestSaveLoadFeatures_ReplayMatches(t *testing.T) {
	t.Parallel()

	s := NewSynthesizer(zerolog.Nop())
	opts := depthOneOptions()
	opts.MaxDepth = 2
	opts.LongSessionInclusive = true

	_, defs, err := s.DFS(context.Background(), trainSet(t), opts)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "defs", "features.json")
	if err := SaveFeatures(path, "users", defs); err != nil {
		t.Fatalf("SaveFeatures() error = %v", err)
	}
	target, loaded, err := LoadFeatures(path)
	if err != nil {
		t.Fatalf("LoadFeatures() error = %v", err)
	}
	if target != "users" {
		t.Errorf("target = %q, want users", target)
	}

	direct, err := s.CalculateFeatureMatrix(context.Background(), testSet(t), "users", defs)
	if err != nil {
		t.Fatal(err)
	}
	replayed, err := s.CalculateFeatureMatrix(context.Background(), testSet(t), "users", loaded)
	if err != nil {
		t.Fatalf("replay from file error = %v", err)
	}

	if a, b := renderFrame(direct), renderFrame(replayed); a != b {
		t.Errorf("replay from decoded definitions differs:\n%s\nvs\n%s", a, b)
	}

	// Primitive parameters travel with the definitions.
	for _, f := range loaded {
		if f.Primitive == "long_session_count" && (f.Params == nil || !f.Params.Inclusive || f.Params.Threshold != 3600) {
			t.Errorf("%s lost its parameters: %+v", f.Name, f.Params)
		}
	}
}

// renderFrame formats every cell of f, one line per row under a header.
func renderFrame(f *frame.Frame) string {
	var b strings.Builder
	b.WriteString(strings.Join(f.Names(), ","))
	for i := 0; i < f.Len(); i++ {
		b.WriteByte('\n')
		for j, c := range f.Columns() {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(c.Format(i))
		}
	}
	return b.String()
}

func TestReadFeatures_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
		wantMsg string
	}{
		{
			name:    "future version",
			input:   `{"version": 99, "target": "users", "features": []}`,
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "unknown primitive",
			input:   `{"version": 1, "target": "users", "features": [{"name": "X", "type": "transform", "entity": "users", "kind": "numeric", "primitive": "trend", "base": {"name": "a", "type": "identity", "entity": "users", "kind": "numeric", "variable": "a"}}]}`,
			wantErr: ErrUnknownPrimitive,
		},
		{
			name:    "aggregation without relationship",
			input:   `{"version": 1, "target": "users", "features": [{"name": "X", "type": "aggregation", "entity": "users", "kind": "numeric", "primitive": "count", "base": {"name": "a", "type": "identity", "entity": "s", "kind": "numeric", "variable": "a"}}]}`,
			wantMsg: "no relationship",
		},
		{
			name:    "bad kind",
			input:   `{"version": 1, "target": "users", "features": [{"name": "a", "type": "identity", "entity": "users", "kind": "blob", "variable": "a"}]}`,
			wantMsg: "decode feature definitions",
		},
		{
			name:    "malformed json",
			input:   `{"version": 1,`,
			wantMsg: "decode feature definitions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := ReadFeatures(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("ReadFeatures() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want containing %q", err, tt.wantMsg)
			}
		})
	}
}
