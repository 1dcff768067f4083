// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the physical/semantic kind of a column.
type Kind uint8

const (
	KindNumeric Kind = iota
	KindBoolean
	KindCategorical
	KindText
	KindDatetime
)

var kindNames = [...]string{
	KindNumeric:     "numeric",
	KindBoolean:     "boolean",
	KindCategorical: "categorical",
	KindText:        "text",
	KindDatetime:    "datetime",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind parses a kind name as produced by String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == strings.ToLower(s) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown column kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// stringBacked reports whether values live in Column.Str.
func (k Kind) stringBacked() bool {
	return k == KindCategorical || k == KindText
}

// State marks whether a cell holds a value.
type State uint8

const (
	// Present cells hold a value.
	Present State = iota
	// Missing cells hold no value.
	Missing
	// Unknown cells were produced by an aggregation that had no related rows
	// to aggregate. They are distinct from Missing until post-processing.
	Unknown
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Missing:
		return "missing"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// DatetimeLayout is the layout used when datetimes are rendered as text.
const DatetimeLayout = "2006-01-02 15:04:05"

// Column is a named vector of a single kind. Numeric and boolean values are
// stored in Num (booleans as 0/1), categorical and text in Str, datetimes in
// Time. State has one entry per row.
type Column struct {
	Name  string
	Kind  Kind
	Num   []float64
	Str   []string
	Time  []time.Time
	State []State
}

// NewEmpty returns a column of n Missing cells.
func NewEmpty(name string, kind Kind, n int) *Column {
	c := &Column{Name: name, Kind: kind, State: make([]State, n)}
	switch {
	case kind == KindDatetime:
		c.Time = make([]time.Time, n)
	case kind.stringBacked():
		c.Str = make([]string, n)
	default:
		c.Num = make([]float64, n)
	}
	for i := range c.State {
		c.State[i] = Missing
	}
	return c
}

// NewNumeric returns a numeric column. NaN values are stored as Missing.
func NewNumeric(name string, values []float64) *Column {
	c := NewEmpty(name, KindNumeric, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			c.SetNum(i, v)
		}
	}
	return c
}

// NewBoolean returns a boolean column with every cell present.
func NewBoolean(name string, values []bool) *Column {
	c := NewEmpty(name, KindBoolean, len(values))
	for i, v := range values {
		c.SetBool(i, v)
	}
	return c
}

// NewString returns a categorical or text column. Empty strings are Missing.
func NewString(name string, kind Kind, values []string) *Column {
	if !kind.stringBacked() {
		kind = KindCategorical
	}
	c := NewEmpty(name, kind, len(values))
	for i, v := range values {
		if v != "" {
			c.SetStr(i, v)
		}
	}
	return c
}

// NewDatetime returns a datetime column. Zero times are Missing.
func NewDatetime(name string, values []time.Time) *Column {
	c := NewEmpty(name, KindDatetime, len(values))
	for i, v := range values {
		if !v.IsZero() {
			c.SetTime(i, v)
		}
	}
	return c
}

// Len returns the number of rows.
func (c *Column) Len() int { return len(c.State) }

// IsPresent reports whether row i holds a value.
func (c *Column) IsPresent(i int) bool { return c.State[i] == Present }

// SetNum stores a numeric value at row i and marks it present.
func (c *Column) SetNum(i int, v float64) {
	c.Num[i] = v
	c.State[i] = Present
}

// SetBool stores a boolean value at row i and marks it present.
func (c *Column) SetBool(i int, v bool) {
	if v {
		c.Num[i] = 1
	} else {
		c.Num[i] = 0
	}
	c.State[i] = Present
}

// SetStr stores a string value at row i and marks it present.
func (c *Column) SetStr(i int, v string) {
	c.Str[i] = v
	c.State[i] = Present
}

// SetTime stores a datetime value at row i and marks it present.
func (c *Column) SetTime(i int, v time.Time) {
	c.Time[i] = v
	c.State[i] = Present
}

// SetState overrides the state of row i, clearing its value when the state
// is not Present.
func (c *Column) SetState(i int, s State) {
	c.State[i] = s
	if s == Present {
		return
	}
	switch {
	case c.Kind == KindDatetime:
		c.Time[i] = time.Time{}
	case c.Kind.stringBacked():
		c.Str[i] = ""
	default:
		c.Num[i] = 0
	}
}

// Float returns row i as a float. Datetimes convert to unix seconds;
// string-backed columns never convert.
func (c *Column) Float(i int) (float64, bool) {
	if c.State[i] != Present {
		return 0, false
	}
	switch {
	case c.Kind == KindDatetime:
		return float64(c.Time[i].Unix()), true
	case c.Kind.stringBacked():
		return 0, false
	default:
		return c.Num[i], true
	}
}

// Key returns a canonical string for row i suitable for equality joins.
func (c *Column) Key(i int) (string, bool) {
	if c.State[i] != Present {
		return "", false
	}
	switch {
	case c.Kind == KindDatetime:
		return c.Time[i].UTC().Format(time.RFC3339Nano), true
	case c.Kind.stringBacked():
		return c.Str[i], true
	default:
		return strconv.FormatFloat(c.Num[i], 'f', -1, 64), true
	}
}

// Format renders row i for CSV output. Non-present cells render empty.
func (c *Column) Format(i int) string {
	if c.State[i] != Present {
		return ""
	}
	switch c.Kind {
	case KindDatetime:
		return c.Time[i].UTC().Format(DatetimeLayout)
	case KindBoolean:
		return strconv.FormatBool(c.Num[i] != 0)
	case KindCategorical, KindText:
		return c.Str[i]
	default:
		return strconv.FormatFloat(c.Num[i], 'f', -1, 64)
	}
}

// Count returns the number of cells in state s.
func (c *Column) Count(s State) int {
	n := 0
	for _, st := range c.State {
		if st == s {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, State: append([]State(nil), c.State...)}
	if c.Num != nil {
		out.Num = append([]float64(nil), c.Num...)
	}
	if c.Str != nil {
		out.Str = append([]string(nil), c.Str...)
	}
	if c.Time != nil {
		out.Time = append([]time.Time(nil), c.Time...)
	}
	return out
}

// Take returns a new column holding rows idx in order.
func (c *Column) Take(idx []int) *Column {
	out := NewEmpty(c.Name, c.Kind, len(idx))
	for j, i := range idx {
		out.State[j] = c.State[i]
		switch {
		case c.Kind == KindDatetime:
			out.Time[j] = c.Time[i]
		case c.Kind.stringBacked():
			out.Str[j] = c.Str[i]
		default:
			out.Num[j] = c.Num[i]
		}
	}
	return out
}

// Renamed returns a shallow copy with a different name. Value slices are shared.
func (c *Column) Renamed(name string) *Column {
	cp := *c
	cp.Name = name
	return &cp
}

// less orders present cells by value and places non-present cells last.
func (c *Column) less(a, b int) bool {
	pa, pb := c.State[a] == Present, c.State[b] == Present
	if !pa || !pb {
		return pa && !pb
	}
	switch {
	case c.Kind == KindDatetime:
		return c.Time[a].Before(c.Time[b])
	case c.Kind.stringBacked():
		return c.Str[a] < c.Str[b]
	default:
		return c.Num[a] < c.Num[b]
	}
}
