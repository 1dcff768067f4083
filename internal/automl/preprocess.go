// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/featuresmith/internal/frame"
)

// ErrSchemaMismatch is returned when a frame does not carry the columns the
// preprocessor was fitted on.
var ErrSchemaMismatch = errors.New("frame does not match training columns")

const (
	levelOther   = "__other__"
	levelMissing = "__missing__"
)

// EncodedColumn describes how one input column becomes model inputs.
type EncodedColumn struct {
	Name string     `json:"name"`
	Kind frame.Kind `json:"kind"`

	// Mean imputes missing numeric, boolean and datetime values.
	Mean float64 `json:"mean,omitempty"`
	// Indicator adds a 0/1 column flagging imputed rows.
	Indicator bool `json:"indicator,omitempty"`

	// Levels are the one-hot levels of a categorical column, most frequent
	// first. Values outside them map to the other column.
	Levels []string `json:"levels,omitempty"`
}

// width is the number of model inputs the column expands to.
func (e *EncodedColumn) width() int {
	if e.Kind == frame.KindCategorical {
		return len(e.Levels) + 2
	}
	if e.Indicator {
		return 2
	}
	return 1
}

// Preprocessor turns a feature frame into a dense numeric matrix. It is
// fitted on the training frame and replayed unchanged on scoring frames.
type Preprocessor struct {
	Columns []EncodedColumn `json:"columns"`
}

// FitPreprocessor learns encodings from f. Text columns and the excluded
// names are not model inputs.
func FitPreprocessor(f *frame.Frame, maxLevels int, exclude ...string) *Preprocessor {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	p := &Preprocessor{}
	for _, c := range f.Columns() {
		if skip[c.Name] || c.Kind == frame.KindText {
			continue
		}
		enc := EncodedColumn{Name: c.Name, Kind: c.Kind}
		if c.Kind == frame.KindCategorical {
			enc.Levels = topLevels(c, maxLevels)
		} else {
			var sum float64
			var n int
			for i := 0; i < c.Len(); i++ {
				if v, ok := c.Float(i); ok {
					sum += v
					n++
				}
			}
			if n > 0 {
				enc.Mean = sum / float64(n)
			}
			enc.Indicator = n < c.Len()
		}
		p.Columns = append(p.Columns, enc)
	}
	return p
}

// topLevels returns up to k levels by descending frequency, ties by value.
func topLevels(c *frame.Column, k int) []string {
	counts := make(map[string]int)
	for i := 0; i < c.Len(); i++ {
		if c.IsPresent(i) {
			counts[c.Str[i]]++
		}
	}
	levels := make([]string, 0, len(counts))
	for v := range counts {
		levels = append(levels, v)
	}
	sort.Slice(levels, func(a, b int) bool {
		if counts[levels[a]] != counts[levels[b]] {
			return counts[levels[a]] > counts[levels[b]]
		}
		return levels[a] < levels[b]
	})
	if len(levels) > k {
		levels = levels[:k]
	}
	return levels
}

// Width is the number of encoded model inputs.
func (p *Preprocessor) Width() int {
	w := 0
	for i := range p.Columns {
		w += p.Columns[i].width()
	}
	return w
}

// InputNames names every encoded model input in matrix order.
func (p *Preprocessor) InputNames() []string {
	names := make([]string, 0, p.Width())
	for i := range p.Columns {
		e := &p.Columns[i]
		switch {
		case e.Kind == frame.KindCategorical:
			for _, l := range e.Levels {
				names = append(names, e.Name+"."+l)
			}
			names = append(names, e.Name+"."+levelOther, e.Name+"."+levelMissing)
		case e.Indicator:
			names = append(names, e.Name, e.Name+"."+levelMissing)
		default:
			names = append(names, e.Name)
		}
	}
	return names
}

// Transform encodes f. Every fitted column must be present with its fitted kind.
func (p *Preprocessor) Transform(f *frame.Frame) (*mat.Dense, error) {
	cols := make([]*frame.Column, len(p.Columns))
	for i := range p.Columns {
		c, ok := f.Column(p.Columns[i].Name)
		if !ok {
			return nil, fmt.Errorf("%w: missing column %s", ErrSchemaMismatch, p.Columns[i].Name)
		}
		if c.Kind != p.Columns[i].Kind {
			return nil, fmt.Errorf("%w: column %s is %s, trained as %s", ErrSchemaMismatch, c.Name, c.Kind, p.Columns[i].Kind)
		}
		cols[i] = c
	}

	n := f.Len()
	width := p.Width()
	if n == 0 || width == 0 {
		return nil, fmt.Errorf("%w: empty matrix (%d rows, %d inputs)", ErrSchemaMismatch, n, width)
	}
	x := mat.NewDense(n, width, nil)

	offset := 0
	for ci := range p.Columns {
		e := &p.Columns[ci]
		c := cols[ci]
		if e.Kind == frame.KindCategorical {
			index := make(map[string]int, len(e.Levels))
			for j, l := range e.Levels {
				index[l] = j
			}
			for i := 0; i < n; i++ {
				switch j, ok := index[c.Str[i]]; {
				case !c.IsPresent(i):
					x.Set(i, offset+len(e.Levels)+1, 1)
				case ok:
					x.Set(i, offset+j, 1)
				default:
					x.Set(i, offset+len(e.Levels), 1)
				}
			}
		} else {
			for i := 0; i < n; i++ {
				v, ok := c.Float(i)
				if !ok {
					v = e.Mean
					if e.Indicator {
						x.Set(i, offset+1, 1)
					}
				}
				x.Set(i, offset, v)
			}
		}
		offset += e.width()
	}
	return x, nil
}
