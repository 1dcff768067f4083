// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

/*
Package frame provides the column-oriented table used between pipeline stages.

A Frame is an ordered set of equally long named columns. Each cell carries a
State so that three situations stay distinguishable through every step:

  - Present: a value exists (including a true zero)
  - Missing: no value, either absent in the source or explicitly cleared
  - Unknown: produced by an aggregation that had no related rows

Frames are not safe for concurrent mutation. Operations that reorder or
subset rows (SortBy, Take) move every column together so that an explicit key
column stays aligned with its values.
*/
package frame

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrColumnNotFound is returned when a named column does not exist.
	ErrColumnNotFound = errors.New("column not found")
	// ErrDuplicateColumn is returned when adding a column whose name exists.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrLengthMismatch is returned when a column length differs from the frame.
	ErrLengthMismatch = errors.New("column length mismatch")
)

// Frame is an ordered collection of named columns of equal length.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a frame from columns. All columns must share one length.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols)), rows: -1}
	for _, c := range cols {
		if err := f.AddColumn(c); err != nil {
			return nil, err
		}
	}
	if f.rows < 0 {
		f.rows = 0
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f.rows < 0 {
		return 0
	}
	return f.rows
}

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.cols) }

// Names returns column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The slice must not be modified.
func (f *Frame) Columns() []*Column { return f.cols }

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// MustColumn returns the named column or an error wrapping ErrColumnNotFound.
func (f *Frame) MustColumn(name string) (*Column, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return c, nil
}

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// AddColumn appends a column. The first column of an empty frame fixes the
// row count.
func (f *Frame) AddColumn(c *Column) error {
	if _, dup := f.index[c.Name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
	}
	if f.rows >= 0 && len(f.cols) > 0 && c.Len() != f.rows {
		return fmt.Errorf("%w: %s has %d rows, frame has %d", ErrLengthMismatch, c.Name, c.Len(), f.rows)
	}
	if len(f.cols) == 0 {
		f.rows = c.Len()
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// InsertColumn places a column at position pos.
func (f *Frame) InsertColumn(pos int, c *Column) error {
	if err := f.AddColumn(c); err != nil {
		return err
	}
	if pos < 0 || pos >= len(f.cols)-1 {
		return nil
	}
	copy(f.cols[pos+1:], f.cols[pos:len(f.cols)-1])
	f.cols[pos] = c
	f.reindex()
	return nil
}

// Drop removes the named column and returns it.
func (f *Frame) Drop(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	c := f.cols[i]
	f.cols = append(f.cols[:i], f.cols[i+1:]...)
	f.reindex()
	return c, nil
}

// Select returns a frame with only the named columns, in the given order.
// Columns are shared, not copied.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := f.MustColumn(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		out.rows = f.Len()
	}
	return out, nil
}

// Take returns a new frame with rows idx, in order.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{index: make(map[string]int, len(f.cols)), rows: len(idx)}
	for _, c := range f.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.Take(idx))
	}
	return out
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{index: make(map[string]int, len(f.cols)), rows: f.rows}
	for _, c := range f.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.Clone())
	}
	return out
}

// SortBy stably reorders every column by the named column's values,
// ascending, with non-present cells last.
func (f *Frame) SortBy(name string) error {
	key, err := f.MustColumn(name)
	if err != nil {
		return err
	}
	order := make([]int, f.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return key.less(order[a], order[b])
	})
	sorted := f.Take(order)
	f.cols = sorted.cols
	return nil
}

// Unique reports whether every cell of the named column is present and
// distinct.
func (f *Frame) Unique(name string) (bool, error) {
	c, err := f.MustColumn(name)
	if err != nil {
		return false, err
	}
	seen := make(map[string]struct{}, c.Len())
	for i := 0; i < c.Len(); i++ {
		k, ok := c.Key(i)
		if !ok {
			return false, nil
		}
		if _, dup := seen[k]; dup {
			return false, nil
		}
		seen[k] = struct{}{}
	}
	return true, nil
}

// KeyIndex maps each present key of the named column to its row.
// Later duplicates overwrite earlier rows.
func (f *Frame) KeyIndex(name string) (map[string]int, error) {
	c, err := f.MustColumn(name)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, c.Len())
	for i := 0; i < c.Len(); i++ {
		if k, ok := c.Key(i); ok {
			idx[k] = i
		}
	}
	return idx, nil
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.cols))
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
}
