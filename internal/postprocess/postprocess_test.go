// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package postprocess

import (
	"math"
	"testing"

	"github.com/tomtom215/featuresmith/internal/frame"
)

func TestReplaceSentinels_ZeroVersusNoRows(t *testing.T) {
	t.Parallel()

	// Row 0 has zero unique actions, row 1 had no related rows at all,
	// row 2 was already missing.
	unique := frame.NewNumeric("NUM_UNIQUE(sessions.action_type)", []float64{0, 0, math.NaN()})
	unique.SetState(1, frame.Unknown)

	if unique.State[0] == unique.State[1] {
		t.Fatal("zero and sentinel must be distinguishable before post-processing")
	}

	f, err := frame.New(unique)
	if err != nil {
		t.Fatal(err)
	}

	rep := ReplaceSentinels(f, Options{})

	if unique.State[0] != frame.Present || unique.Num[0] != 0 {
		t.Errorf("true zero changed: state=%v value=%v", unique.State[0], unique.Num[0])
	}
	if unique.State[1] != frame.Missing {
		t.Errorf("sentinel state = %v, want missing", unique.State[1])
	}
	if unique.State[2] != frame.Missing {
		t.Errorf("missing state = %v, want missing", unique.State[2])
	}
	if unique.Count(frame.Unknown) != 0 {
		t.Error("unknown cells remain")
	}
	if rep.TotalSentinel != 1 || len(rep.Columns) != 1 {
		t.Errorf("report = %+v, want one sentinel in one column", rep)
	}
}

func TestReplaceSentinels_NoImputation(t *testing.T) {
	t.Parallel()

	c := frame.NewNumeric("MEAN(x)", []float64{1, 3, 0})
	c.SetState(2, frame.Unknown)
	f, err := frame.New(c)
	if err != nil {
		t.Fatal(err)
	}

	ReplaceSentinels(f, Options{})

	if c.State[2] != frame.Missing {
		t.Fatalf("state = %v, want missing", c.State[2])
	}
	if _, ok := c.Float(2); ok {
		t.Error("missing cell should not yield a value")
	}
}

func TestReplaceSentinels_Tokens(t *testing.T) {
	t.Parallel()

	gender := frame.NewString("gender", frame.KindCategorical, []string{"-unknown-", "MALE", "FEMALE"})
	key := frame.NewString("id", frame.KindCategorical, []string{"-unknown-", "b", "c"})
	age := frame.NewNumeric("age", []float64{1, 2, 3})
	f, err := frame.New(key, gender, age)
	if err != nil {
		t.Fatal(err)
	}

	rep := ReplaceSentinels(f, Options{UnknownTokens: []string{"-unknown-"}, Exclude: []string{"id"}})

	if gender.State[0] != frame.Missing || gender.State[1] != frame.Present {
		t.Errorf("gender states = %v", gender.State)
	}
	if key.State[0] != frame.Present {
		t.Error("excluded key column was modified")
	}
	if rep.TotalTokens != 1 || rep.Columns[0].Column != "gender" {
		t.Errorf("report = %+v", rep)
	}
}
