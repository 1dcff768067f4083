// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package storage

import (
	"context"
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type testState struct {
	Weights []float64
	Classes []string
}

func sampleState() testState {
	return testState{Weights: []float64{0.5, -1.25, 3}, Classes: []string{"FR", "NDF", "US"}}
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{"creates directory if not exists", func(t *testing.T) string { return filepath.Join(t.TempDir(), "models") }},
		{"uses existing directory", func(t *testing.T) string { return t.TempDir() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, err := NewStore(tt.setup(t))
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}
			if store == nil {
				t.Fatal("NewStore() returned nil store")
			}
		})
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	saved, err := store.Save(ctx, "leader", 0, sampleState(), ModelMetadata{ModelID: "GLM_1", Family: "glm", Score: 0.25})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.Version != 1 || saved.Checksum == "" || saved.SizeBytes == 0 {
		t.Errorf("saved metadata = %+v", saved)
	}

	var got testState
	meta, err := store.Load(ctx, "leader", 0, &got)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if meta.ModelID != "GLM_1" || meta.Version != 1 {
		t.Errorf("metadata = %+v", meta)
	}
	want := sampleState()
	if len(got.Weights) != len(want.Weights) || got.Weights[1] != want.Weights[1] || got.Classes[2] != "US" {
		t.Errorf("Load() state = %+v, want %+v", got, want)
	}
}

func TestStore_VersionsAndReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		state := testState{Weights: []float64{float64(i)}}
		meta, err := store.Save(ctx, "leader", 0, state, ModelMetadata{})
		if err != nil {
			t.Fatal(err)
		}
		if meta.Version != i+1 {
			t.Errorf("Save() version = %d, want %d", meta.Version, i+1)
		}
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got testState
	meta, err := reopened.Load(ctx, "leader", 0, &got)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Version != 3 || got.Weights[0] != 2 {
		t.Errorf("latest after reopen = v%d %v, want v3 [2]", meta.Version, got.Weights)
	}

	if _, err := reopened.Load(ctx, "leader", 1, &got); err != nil || got.Weights[0] != 0 {
		t.Errorf("Load(v1) = %v, %v", got.Weights, err)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var got testState
	if _, err := store.Load(context.Background(), "leader", 0, &got); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Load() error = %v, want ErrModelNotFound", err)
	}
	if _, err := store.Load(context.Background(), "leader", 7, &got); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Load(v7) error = %v, want ErrModelNotFound", err)
	}
}

func TestStore_ChecksumValidation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := store.Save(ctx, "leader", 0, sampleState(), ModelMetadata{}); err != nil {
		t.Fatal(err)
	}

	// Rewrite the file with a forged checksum.
	path := filepath.Join(dir, "leader_v1.gob.gz")
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	sf.Metadata.Checksum = "deadbeef"
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := gob.NewEncoder(out).Encode(sf); err != nil {
		t.Fatal(err)
	}
	_ = out.Close()

	var got testState
	if _, err := store.Load(ctx, "leader", 1, &got); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Load() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestStore_Prune(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, name := range []string{"leader", "leader", "leader", "DRF_1"} {
		if _, err := store.Save(ctx, name, 0, sampleState(), ModelMetadata{ModelID: name}); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Prune(ctx, "leader", 1); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	for v, want := range map[string]bool{"leader_v1.gob.gz": false, "leader_v2.gob.gz": false, "leader_v3.gob.gz": true, "DRF_1_v1.gob.gz": true} {
		_, err := os.Stat(filepath.Join(dir, v))
		if exists := err == nil; exists != want {
			t.Errorf("%s exists = %v, want %v", v, exists, want)
		}
	}
}

func TestParseModelFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		file    string
		name    string
		version int
		ok      bool
	}{
		{"leader_v1.gob.gz", "leader", 1, true},
		{"StackedEnsemble_AllModels_v12.gob.gz", "StackedEnsemble_AllModels", 12, true},
		{"model_value_v2.gob.gz", "model_value", 2, true},
		{"leader_v1.gob", "", 0, false},
		{"leader.gob.gz", "", 0, false},
		{"leader_vx.gob.gz", "", 0, false},
		{"_v1.gob.gz", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()
			name, version, ok := parseModelFilename(tt.file)
			if name != tt.name || version != tt.version || ok != tt.ok {
				t.Errorf("parseModelFilename(%q) = (%q, %d, %v), want (%q, %d, %v)",
					tt.file, name, version, ok, tt.name, tt.version, tt.ok)
			}
		})
	}
}

func TestStore_ConcurrentSaves(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Save(ctx, "leader", 0, sampleState(), ModelMetadata{}); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}()
	}
	wg.Wait()

	files, err := store.listFiles()
	if err != nil {
		t.Fatal(err)
	}
	if got := files["leader"]; len(got) != 8 || got[7] != 8 {
		t.Errorf("versions on disk = %v, want 1..8", got)
	}
}
