// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package features

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/entityset"
	"github.com/tomtom215/featuresmith/internal/frame"
)

// sessionRow is one row of the sessions fixture.
type sessionRow struct {
	userID string
	action string
	secs   float64
	detail string
}

func mustFrame(t *testing.T, cols ...*frame.Column) *frame.Frame {
	t.Helper()
	f, err := frame.New(cols...)
	if err != nil {
		t.Fatalf("frame.New() error = %v", err)
	}
	return f
}

// buildEntitySet assembles users, sessions and buckets with the two
// relationships buckets -> users and users -> sessions.
func buildEntitySet(t *testing.T, userIDs []string, ages []float64, buckets []string, sessions []sessionRow) *entityset.EntitySet {
	t.Helper()

	es := entityset.New("fixture", zerolog.Nop())

	created := make([]time.Time, len(userIDs))
	for i := range created {
		created[i] = time.Date(2014, time.Month(i+1), 10, 0, 0, 0, 0, time.UTC)
	}
	users := mustFrame(t,
		frame.NewString("id", frame.KindCategorical, userIDs),
		frame.NewNumeric("age", ages),
		frame.NewString("age_gender_bucket", frame.KindCategorical, buckets),
		frame.NewDatetime("date_account_created", created),
	)

	sUser := make([]string, len(sessions))
	sAction := make([]string, len(sessions))
	sSecs := make([]float64, len(sessions))
	sDetail := make([]string, len(sessions))
	for i, s := range sessions {
		sUser[i], sAction[i], sSecs[i], sDetail[i] = s.userID, s.action, s.secs, s.detail
	}
	sess := mustFrame(t,
		frame.NewString("user_id", frame.KindCategorical, sUser),
		frame.NewString("action_type", frame.KindCategorical, sAction),
		frame.NewNumeric("secs_elapsed", sSecs),
		frame.NewString("action_detail", frame.KindText, sDetail),
	)

	bkts := mustFrame(t,
		frame.NewString("bucket_id", frame.KindCategorical, []string{"b1", "b2"}),
		frame.NewNumeric("population", []float64{10, 20}),
	)

	if _, err := es.AddEntity("buckets", bkts, entityset.EntityOptions{Index: "bucket_id"}); err != nil {
		t.Fatalf("AddEntity(buckets) error = %v", err)
	}
	if _, err := es.AddEntity("users", users, entityset.EntityOptions{Index: "id", TimeIndex: "date_account_created"}); err != nil {
		t.Fatalf("AddEntity(users) error = %v", err)
	}
	if _, err := es.AddEntity("sessions", sess, entityset.EntityOptions{Index: "session_id", MakeIndex: true}); err != nil {
		t.Fatalf("AddEntity(sessions) error = %v", err)
	}

	rels := []entityset.Relationship{
		{ParentEntity: "buckets", ParentVariable: "bucket_id", ChildEntity: "users", ChildVariable: "age_gender_bucket"},
		{ParentEntity: "users", ParentVariable: "id", ChildEntity: "sessions", ChildVariable: "user_id"},
	}
	for _, r := range rels {
		if err := es.AddRelationship(r); err != nil {
			t.Fatalf("AddRelationship(%s) error = %v", r, err)
		}
	}
	return es
}

// trainSet is 3 users, 5 sessions referencing 2 of them, 2 buckets
// referenced by every user.
func trainSet(t *testing.T) *entityset.EntitySet {
	t.Helper()
	return buildEntitySet(t,
		[]string{"u3", "u1", "u2"},
		[]float64{math.NaN(), 30, 40},
		[]string{"b2", "b1", "b1"},
		[]sessionRow{
			{"u1", "click", 100, "booking request"},
			{"u1", "view", 4000, "Booking BOOKING"},
			{"u1", "click", 3600, ""},
			{"u2", "view", 3700, "payment"},
			{"u2", "view", math.NaN(), "lookup"},
		},
	)
}

// testSet shares the train structure with a different row set.
func testSet(t *testing.T) *entityset.EntitySet {
	t.Helper()
	return buildEntitySet(t,
		[]string{"u9", "u7"},
		[]float64{22, 55},
		[]string{"b1", "b2"},
		[]sessionRow{
			{"u7", "view", 5000, "reservation"},
		},
	)
}

func depthOneOptions() Options {
	return Options{
		TargetEntity:    "users",
		AggPrimitives:   []string{"count", "mean", "num_unique", "long_session_count"},
		TransPrimitives: []string{"month", "keyword_count"},
		WherePrimitives: []string{"count"},
		InterestingValues: []InterestingValues{
			{Entity: "sessions", Variable: "action_type", Values: []string{"click"}},
		},
		MaxDepth:             1,
		Keywords:             []string{"booking", "payment", "reservation"},
		LongSessionThreshold: 3600,
	}
}

// cellAt returns the column and row index for key in a feature matrix.
func cellAt(t *testing.T, fm *frame.Frame, keyName, key, column string) (*frame.Column, int) {
	t.Helper()
	kc, ok := fm.Column(keyName)
	if !ok {
		t.Fatalf("key column %s missing", keyName)
	}
	row := -1
	for i := 0; i < kc.Len(); i++ {
		if k, _ := kc.Key(i); k == key {
			row = i
		}
	}
	if row < 0 {
		t.Fatalf("key %s not found", key)
	}
	c, ok := fm.Column(column)
	if !ok {
		t.Fatalf("column %q missing; have %v", column, fm.Names())
	}
	return c, row
}

func assertNum(t *testing.T, fm *frame.Frame, key, column string, want float64) {
	t.Helper()
	c, row := cellAt(t, fm, "id", key, column)
	if c.State[row] != frame.Present {
		t.Errorf("%s[%s] state = %v, want present %v", column, key, c.State[row], want)
		return
	}
	if math.Abs(c.Num[row]-want) > 1e-9 {
		t.Errorf("%s[%s] = %v, want %v", column, key, c.Num[row], want)
	}
}

func assertState(t *testing.T, fm *frame.Frame, key, column string, want frame.State) {
	t.Helper()
	c, row := cellAt(t, fm, "id", key, column)
	if c.State[row] != want {
		t.Errorf("%s[%s] state = %v, want %v", column, key, c.State[row], want)
	}
}
