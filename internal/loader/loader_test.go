// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package loader

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/config"
	"github.com/tomtom215/featuresmith/internal/database"
	"github.com/tomtom215/featuresmith/internal/frame"
)

// fakeReader serves frames by file base name and records every request.
type fakeReader struct {
	frames   map[string]func() *frame.Frame
	requests []database.TableSource
}

func (r *fakeReader) ReadCSV(_ context.Context, src database.TableSource) (*frame.Frame, error) {
	r.requests = append(r.requests, src)
	build, ok := r.frames[filepath.Base(src.Path)]
	if !ok {
		return nil, database.ErrFileNotFound
	}
	return build(), nil
}

func testSchema() config.SchemaConfig {
	return config.SchemaConfig{
		Target: "users",
		Label:  "country_destination",
		Tables: []config.TableConfig{
			{Name: "users", File: "train_users.csv", TestFile: "test_users.csv", Index: "id"},
			{Name: "sessions", File: "sessions.csv", Index: "session_id", MakeIndex: true, TextColumns: []string{"action_detail"}},
		},
		Relationships: []config.RelationshipConfig{
			{ParentTable: "users", ParentColumn: "id", ChildTable: "sessions", ChildColumn: "user_id"},
		},
	}
}

func newFakeReader() *fakeReader {
	return &fakeReader{frames: map[string]func() *frame.Frame{
		"train_users.csv": func() *frame.Frame {
			f, _ := frame.New(
				frame.NewString("id", frame.KindCategorical, []string{"u1", "u2"}),
				frame.NewNumeric("age", []float64{30, math.NaN()}),
				frame.NewString("country_destination", frame.KindCategorical, []string{"US", "NDF"}),
			)
			return f
		},
		"test_users.csv": func() *frame.Frame {
			f, _ := frame.New(
				frame.NewString("id", frame.KindCategorical, []string{"u9"}),
				frame.NewNumeric("age", []float64{41}),
			)
			return f
		},
		"sessions.csv": func() *frame.Frame {
			f, _ := frame.New(
				frame.NewString("user_id", frame.KindCategorical, []string{"u1", "u1", "u9"}),
				frame.NewString("action_detail", frame.KindCategorical, []string{"a", "b", "c"}),
				frame.NewNumeric("secs_elapsed", []float64{10, 4000, 5}),
			)
			return f
		},
	}}
}

func TestLoad_StripsLabelAndReadsTestWithTrainKinds(t *testing.T) {
	t.Parallel()

	r := newFakeReader()
	l := New(r, config.DataConfig{Dir: "/data"}, testSchema(), zerolog.Nop())
	ds, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	train := ds.Tables["users"]
	if train.Has("country_destination") {
		t.Error("label column still present in training target")
	}
	if ds.Labels.Column != "country_destination" {
		t.Errorf("Labels.Column = %q", ds.Labels.Column)
	}
	if ds.Labels.ByKey["u1"] != "US" || ds.Labels.ByKey["u2"] != "NDF" {
		t.Errorf("Labels.ByKey = %v", ds.Labels.ByKey)
	}
	if ds.TestTarget.Len() != 1 {
		t.Errorf("test rows = %d, want 1", ds.TestTarget.Len())
	}

	if len(r.requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(r.requests))
	}
	if got := r.requests[0].Path; got != filepath.Join("/data", "train_users.csv") {
		t.Errorf("train path = %q", got)
	}
	if r.requests[0].OrderBy != "id" {
		t.Errorf("natural key table ordered by %q, want id", r.requests[0].OrderBy)
	}
	if r.requests[1].OrderBy != "" {
		t.Errorf("synthesized key table ordered by %q, want none", r.requests[1].OrderBy)
	}

	test := r.requests[2]
	if filepath.Base(test.Path) != "test_users.csv" {
		t.Fatalf("third request = %q, want test partition", test.Path)
	}
	if test.Kinds["age"] != frame.KindNumeric || test.Kinds["id"] != frame.KindCategorical {
		t.Errorf("test partition kinds = %v", test.Kinds)
	}
	if _, ok := test.Kinds["country_destination"]; ok {
		t.Error("label kind forwarded to test partition")
	}
}

func TestLoad_ReadsKeyColumnsAsCategories(t *testing.T) {
	t.Parallel()

	schema := testSchema()
	schema.Tables[0].CategoricalColumns = []string{"signup_app"}
	r := newFakeReader()
	if _, err := New(r, config.DataConfig{Dir: "/data"}, schema, zerolog.Nop()).Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := map[string][]string{
		"train_users.csv": {"signup_app", "id"},
		"sessions.csv":    {"user_id"},
		"test_users.csv":  {"signup_app", "id"},
	}
	for _, req := range r.requests {
		name := filepath.Base(req.Path)
		if got := strings.Join(req.CategoricalColumns, ","); got != strings.Join(want[name], ",") {
			t.Errorf("%s categorical columns = %v, want %v", name, req.CategoricalColumns, want[name])
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(r *fakeReader, s *config.SchemaConfig)
		wantErr error
	}{
		{
			name:    "missing file",
			mutate:  func(r *fakeReader, _ *config.SchemaConfig) { delete(r.frames, "sessions.csv") },
			wantErr: database.ErrFileNotFound,
		},
		{
			name:    "label column absent",
			mutate:  func(_ *fakeReader, s *config.SchemaConfig) { s.Label = "target" },
			wantErr: ErrLabelNotFound,
		},
		{
			name: "row without label",
			mutate: func(r *fakeReader, _ *config.SchemaConfig) {
				r.frames["train_users.csv"] = func() *frame.Frame {
					f, _ := frame.New(
						frame.NewString("id", frame.KindCategorical, []string{"u1"}),
						frame.NewString("country_destination", frame.KindCategorical, []string{""}),
					)
					return f
				}
			},
			wantErr: ErrMissingLabel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newFakeReader()
			schema := testSchema()
			tt.mutate(r, &schema)
			_, err := New(r, config.DataConfig{Dir: "/data"}, schema, zerolog.Nop()).Load(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_DropsLabelFromTestPartition(t *testing.T) {
	t.Parallel()

	r := newFakeReader()
	r.frames["test_users.csv"] = func() *frame.Frame {
		f, _ := frame.New(
			frame.NewString("id", frame.KindCategorical, []string{"u9"}),
			frame.NewString("country_destination", frame.KindCategorical, []string{"FR"}),
		)
		return f
	}

	ds, err := New(r, config.DataConfig{Dir: "/data"}, testSchema(), zerolog.Nop()).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ds.TestTarget.Has("country_destination") {
		t.Error("label column kept in test partition")
	}
}

func TestDataset_EntitySet(t *testing.T) {
	t.Parallel()

	schema := testSchema()
	ds, err := New(newFakeReader(), config.DataConfig{Dir: "/data"}, schema, zerolog.Nop()).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	train, err := ds.EntitySet(schema, PartitionTrain, zerolog.Nop())
	if err != nil {
		t.Fatalf("EntitySet(train) error = %v", err)
	}
	test, err := ds.EntitySet(schema, PartitionTest, zerolog.Nop())
	if err != nil {
		t.Fatalf("EntitySet(test) error = %v", err)
	}

	trainUsers, _ := train.Entity("users")
	testUsers, _ := test.Entity("users")
	if trainUsers.Len() != 2 || testUsers.Len() != 1 {
		t.Errorf("users rows train=%d test=%d, want 2 and 1", trainUsers.Len(), testUsers.Len())
	}
	if len(train.Relationships()) != 1 || len(test.Relationships()) != 1 {
		t.Error("relationship not added to both entity sets")
	}

	sessions, _ := train.Entity("sessions")
	if !sessions.Frame.Has("session_id") {
		t.Error("synthesized index missing")
	}
	if c, _ := sessions.Frame.Column("action_detail"); c.Kind != frame.KindText {
		t.Errorf("action_detail kind = %v, want text", c.Kind)
	}

	// Both sets copy the shared table.
	if ds.Tables["sessions"].Has("session_id") {
		t.Error("raw sessions table was mutated by entity set assembly")
	}
}

func TestDataset_EntitySet_BadRelationship(t *testing.T) {
	t.Parallel()

	schema := testSchema()
	ds, err := New(newFakeReader(), config.DataConfig{Dir: "/data"}, schema, zerolog.Nop()).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	schema.Relationships[0].ChildColumn = "device"
	if _, err := ds.EntitySet(schema, PartitionTrain, zerolog.Nop()); err == nil {
		t.Error("EntitySet() expected error for unknown child column")
	}
}
