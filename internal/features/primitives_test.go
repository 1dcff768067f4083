// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package features

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/featuresmith/internal/frame"
)

func TestKeywordCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		keywords []string
		want     int
	}{
		{"two keywords", "This is terrible and disgusting", []string{"terrible", "disgusting"}, 2},
		{"case insensitive", "TERRIBLE Terrible terrible", []string{"terrible"}, 3},
		{"substring not token", "bookings rebooking", []string{"booking"}, 2},
		{"no match", "lovely", []string{"terrible"}, 0},
		{"empty keyword ignored", "abc", []string{""}, 0},
		{"empty text", "", []string{"a"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KeywordCount(tt.text, tt.keywords); got != tt.want {
				t.Errorf("KeywordCount(%q, %v) = %d, want %d", tt.text, tt.keywords, got, tt.want)
			}
		})
	}
}

func TestLongSessionCount(t *testing.T) {
	t.Parallel()

	values := []float64{100, 4000, 3600, 3700}

	if got := LongSessionCount(values, 3600, false); got != 2 {
		t.Errorf("strict LongSessionCount() = %d, want 2", got)
	}
	if got := LongSessionCount(values, 3600, true); got != 3 {
		t.Errorf("inclusive LongSessionCount() = %d, want 3", got)
	}
	if got := LongSessionCount(nil, 3600, false); got != 0 {
		t.Errorf("LongSessionCount(nil) = %d, want 0", got)
	}
}

func TestAggregations(t *testing.T) {
	t.Parallel()

	num := frame.NewNumeric("x", []float64{1, 2, math.NaN(), 6})
	cat := frame.NewString("c", frame.KindCategorical, []string{"b", "a", "b", ""})
	all := []int{0, 1, 2, 3}

	tests := []struct {
		name      string
		primitive string
		col       *frame.Column
		rows      []int
		wantState frame.State
		wantNum   float64
		wantStr   string
	}{
		{"count includes missing", "count", num, all, frame.Present, 4, ""},
		{"sum skips missing", "sum", num, all, frame.Present, 9, ""},
		{"sum of nothing is zero", "sum", num, []int{2}, frame.Present, 0, ""},
		{"mean", "mean", num, all, frame.Present, 3, ""},
		{"mean of nothing is missing", "mean", num, []int{2}, frame.Missing, 0, ""},
		{"min", "min", num, all, frame.Present, 1, ""},
		{"max", "max", num, all, frame.Present, 6, ""},
		{"median", "median", num, all, frame.Present, 2, ""},
		{"std", "std", num, []int{0, 1}, frame.Present, math.Sqrt(0.5), ""},
		{"std single value", "std", num, []int{0}, frame.Missing, 0, ""},
		{"num_unique", "num_unique", cat, all, frame.Present, 2, ""},
		{"num_unique of nothing is zero", "num_unique", cat, []int{3}, frame.Present, 0, ""},
		{"mode", "mode", cat, all, frame.Present, 0, "b"},
		{"mode tie takes smallest", "mode", cat, []int{0, 1}, frame.Present, 0, "a"},
		{"long_session_count default threshold", "long_session_count", num, all, frame.Present, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := Lookup(tt.primitive)
			if err != nil {
				t.Fatal(err)
			}
			got := p.agg(tt.col, tt.rows, nil)
			if got.state != tt.wantState {
				t.Fatalf("state = %v, want %v", got.state, tt.wantState)
			}
			if got.state != frame.Present {
				return
			}
			if math.Abs(got.num-tt.wantNum) > 1e-12 || got.str != tt.wantStr {
				t.Errorf("value = (%v, %q), want (%v, %q)", got.num, got.str, tt.wantNum, tt.wantStr)
			}
		})
	}
}

func TestTransforms(t *testing.T) {
	t.Parallel()

	// 2014-06-15 was a Sunday.
	ts := frame.NewDatetime("t", []time.Time{time.Date(2014, 6, 15, 13, 0, 0, 0, time.UTC), {}})
	text := frame.NewString("s", frame.KindText, []string{"great booking, fast payment", ""})
	params := &Params{Keywords: []string{"booking", "payment"}}

	tests := []struct {
		primitive string
		col       *frame.Column
		want      float64
	}{
		{"day", ts, 15},
		{"month", ts, 6},
		{"year", ts, 2014},
		{"hour", ts, 13},
		{"weekday", ts, 6},
		{"num_words", text, 4},
		{"num_characters", text, 27},
		{"keyword_count", text, 2},
	}

	for _, tt := range tests {
		t.Run(tt.primitive, func(t *testing.T) {
			t.Parallel()
			p, err := Lookup(tt.primitive)
			if err != nil {
				t.Fatal(err)
			}
			got := p.trans(tt.col, 0, params)
			if got.state != frame.Present || got.num != tt.want {
				t.Errorf("%s = (%v, %v), want %v", tt.primitive, got.num, got.state, tt.want)
			}
			if missing := p.trans(tt.col, 1, params); missing.state != frame.Missing {
				t.Errorf("%s of missing input = %v, want missing", tt.primitive, missing.state)
			}
		})
	}
}

func TestIsNull(t *testing.T) {
	t.Parallel()

	p, err := Lookup("is_null")
	if err != nil {
		t.Fatal(err)
	}
	c := frame.NewNumeric("x", []float64{0, math.NaN()})
	if got := p.trans(c, 0, nil); got.num != 0 {
		t.Errorf("is_null(present) = %v, want 0", got.num)
	}
	if got := p.trans(c, 1, nil); got.num != 1 || got.state != frame.Present {
		t.Errorf("is_null(missing) = %v/%v, want 1/present", got.num, got.state)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	if _, err := Lookup("MEAN"); err != nil {
		t.Errorf("Lookup is case-insensitive: %v", err)
	}
	_, err := Lookup("trend")
	if !errors.Is(err, ErrUnknownPrimitive) {
		t.Errorf("Lookup(trend) error = %v, want ErrUnknownPrimitive", err)
	}
	// The error names the registered primitives so a typo is easy to fix.
	if err != nil && !strings.Contains(err.Error(), "keyword_count, long_session_count") {
		t.Errorf("Lookup(trend) error = %v, want the known primitives listed", err)
	}

	names := PrimitiveNames()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("PrimitiveNames() not sorted: %v", names)
		}
	}
}
