// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tomtom215/featuresmith/internal/frame"
)

// ErrUnknownPrimitive is returned for a primitive name with no registration.
var ErrUnknownPrimitive = errors.New("unknown primitive")

// DefaultLongSessionThreshold is one hour in seconds.
const DefaultLongSessionThreshold = 3600

// Params holds the parameters of parameterized primitives. They are stored on
// each feature so that replay does not depend on the caller's options.
type Params struct {
	Keywords  []string `json:"keywords,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	Inclusive bool     `json:"inclusive,omitempty"`
}

// cell is a single computed value.
type cell struct {
	num   float64
	str   string
	state frame.State
}

func numCell(v float64) cell { return cell{num: v, state: frame.Present} }
func strCell(v string) cell  { return cell{str: v, state: frame.Present} }

var missingCell = cell{state: frame.Missing}

type aggregateFunc func(c *frame.Column, rows []int, p *Params) cell
type transformFunc func(c *frame.Column, i int, p *Params) cell

// Primitive is a named aggregation or transform.
type Primitive struct {
	Name        string
	Aggregation bool

	// Inputs lists accepted base kinds. Empty means the primitive counts
	// rows and takes the child index as its base.
	Inputs []frame.Kind

	// Return is the result kind unless ReturnInput is set.
	Return      frame.Kind
	ReturnInput bool

	parameterized bool
	agg           aggregateFunc
	trans         transformFunc
}

// Accepts reports whether the primitive takes a base of kind k.
func (p *Primitive) Accepts(k frame.Kind) bool {
	for _, in := range p.Inputs {
		if in == k {
			return true
		}
	}
	return false
}

// CountsRows reports whether the primitive counts child rows.
func (p *Primitive) CountsRows() bool { return p.Aggregation && len(p.Inputs) == 0 }

func (p *Primitive) returnKind(base frame.Kind) frame.Kind {
	if p.ReturnInput {
		return base
	}
	return p.Return
}

var registry = map[string]*Primitive{}

func register(p *Primitive) { registry[p.Name] = p }

// Lookup returns the registered primitive with the given name. The error
// for an unknown name lists the registered ones.
func Lookup(name string) (*Primitive, error) {
	p, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %s)", ErrUnknownPrimitive, name, strings.Join(PrimitiveNames(), ", "))
	}
	return p, nil
}

// PrimitiveNames returns every registered primitive name, sorted.
func PrimitiveNames() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var (
	numericOnly = []frame.Kind{frame.KindNumeric}
	allKinds    = []frame.Kind{frame.KindNumeric, frame.KindBoolean, frame.KindCategorical, frame.KindText, frame.KindDatetime}
)

func init() {
	// Aggregations
	register(&Primitive{Name: "count", Aggregation: true, Return: frame.KindNumeric, agg: aggCount})
	register(&Primitive{Name: "sum", Aggregation: true, Inputs: numericOnly, Return: frame.KindNumeric, agg: aggSum})
	register(&Primitive{Name: "mean", Aggregation: true, Inputs: numericOnly, Return: frame.KindNumeric, agg: aggMean})
	register(&Primitive{Name: "min", Aggregation: true, Inputs: numericOnly, Return: frame.KindNumeric, agg: aggMin})
	register(&Primitive{Name: "max", Aggregation: true, Inputs: numericOnly, Return: frame.KindNumeric, agg: aggMax})
	register(&Primitive{Name: "std", Aggregation: true, Inputs: numericOnly, Return: frame.KindNumeric, agg: aggStd})
	register(&Primitive{Name: "median", Aggregation: true, Inputs: numericOnly, Return: frame.KindNumeric, agg: aggMedian})
	register(&Primitive{Name: "num_unique", Aggregation: true, Inputs: []frame.Kind{frame.KindCategorical}, Return: frame.KindNumeric, agg: aggNumUnique})
	register(&Primitive{Name: "mode", Aggregation: true, Inputs: []frame.Kind{frame.KindCategorical}, ReturnInput: true, agg: aggMode})
	register(&Primitive{Name: "percent_true", Aggregation: true, Inputs: []frame.Kind{frame.KindBoolean}, Return: frame.KindNumeric, agg: aggPercentTrue})
	register(&Primitive{Name: "long_session_count", Aggregation: true, Inputs: numericOnly, Return: frame.KindNumeric, parameterized: true, agg: aggLongSessionCount})

	// Transforms
	register(&Primitive{Name: "day", Inputs: []frame.Kind{frame.KindDatetime}, Return: frame.KindNumeric, trans: datePart(func(t time.Time) int { return t.Day() })})
	register(&Primitive{Name: "month", Inputs: []frame.Kind{frame.KindDatetime}, Return: frame.KindNumeric, trans: datePart(func(t time.Time) int { return int(t.Month()) })})
	register(&Primitive{Name: "year", Inputs: []frame.Kind{frame.KindDatetime}, Return: frame.KindNumeric, trans: datePart(func(t time.Time) int { return t.Year() })})
	register(&Primitive{Name: "hour", Inputs: []frame.Kind{frame.KindDatetime}, Return: frame.KindNumeric, trans: datePart(func(t time.Time) int { return t.Hour() })})
	// Monday is 0.
	register(&Primitive{Name: "weekday", Inputs: []frame.Kind{frame.KindDatetime}, Return: frame.KindNumeric, trans: datePart(func(t time.Time) int { return (int(t.Weekday()) + 6) % 7 })})
	register(&Primitive{Name: "num_words", Inputs: []frame.Kind{frame.KindText}, Return: frame.KindNumeric, trans: textMeasure(func(s string) int { return len(strings.Fields(s)) })})
	register(&Primitive{Name: "num_characters", Inputs: []frame.Kind{frame.KindText}, Return: frame.KindNumeric, trans: textMeasure(utf8.RuneCountInString)})
	register(&Primitive{Name: "is_null", Inputs: allKinds, Return: frame.KindBoolean, trans: transIsNull})
	register(&Primitive{Name: "keyword_count", Inputs: []frame.Kind{frame.KindText}, Return: frame.KindNumeric, parameterized: true, trans: transKeywordCount})
}

// KeywordCount sums the case-insensitive substring occurrences of every
// keyword in text. Words are not tokenized, so "bookings" matches "booking".
func KeywordCount(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		n += strings.Count(lower, strings.ToLower(kw))
	}
	return n
}

// LongSessionCount counts values above threshold, or at or above it when
// inclusive is set.
func LongSessionCount(values []float64, threshold float64, inclusive bool) int {
	n := 0
	for _, v := range values {
		if v > threshold || (inclusive && v == threshold) {
			n++
		}
	}
	return n
}

// presentNums collects the present numeric values of rows.
func presentNums(c *frame.Column, rows []int) []float64 {
	out := make([]float64, 0, len(rows))
	for _, i := range rows {
		if c.State[i] == frame.Present {
			out = append(out, c.Num[i])
		}
	}
	return out
}

func aggCount(_ *frame.Column, rows []int, _ *Params) cell {
	return numCell(float64(len(rows)))
}

func aggSum(c *frame.Column, rows []int, _ *Params) cell {
	s := 0.0
	for _, v := range presentNums(c, rows) {
		s += v
	}
	return numCell(s)
}

func aggMean(c *frame.Column, rows []int, _ *Params) cell {
	vals := presentNums(c, rows)
	if len(vals) == 0 {
		return missingCell
	}
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return numCell(s / float64(len(vals)))
}

func aggMin(c *frame.Column, rows []int, _ *Params) cell {
	vals := presentNums(c, rows)
	if len(vals) == 0 {
		return missingCell
	}
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Min(m, v)
	}
	return numCell(m)
}

func aggMax(c *frame.Column, rows []int, _ *Params) cell {
	vals := presentNums(c, rows)
	if len(vals) == 0 {
		return missingCell
	}
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Max(m, v)
	}
	return numCell(m)
}

// aggStd is the sample standard deviation; fewer than two values is missing.
func aggStd(c *frame.Column, rows []int, _ *Params) cell {
	vals := presentNums(c, rows)
	if len(vals) < 2 {
		return missingCell
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	ss := 0.0
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return numCell(math.Sqrt(ss / float64(len(vals)-1)))
}

func aggMedian(c *frame.Column, rows []int, _ *Params) cell {
	vals := presentNums(c, rows)
	if len(vals) == 0 {
		return missingCell
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return numCell(vals[mid])
	}
	return numCell((vals[mid-1] + vals[mid]) / 2)
}

func aggNumUnique(c *frame.Column, rows []int, _ *Params) cell {
	seen := make(map[string]struct{})
	for _, i := range rows {
		if c.State[i] == frame.Present {
			seen[c.Str[i]] = struct{}{}
		}
	}
	return numCell(float64(len(seen)))
}

// aggMode returns the most frequent value; ties go to the smallest value.
func aggMode(c *frame.Column, rows []int, _ *Params) cell {
	counts := make(map[string]int)
	for _, i := range rows {
		if c.State[i] == frame.Present {
			counts[c.Str[i]]++
		}
	}
	if len(counts) == 0 {
		return missingCell
	}
	best, bestN := "", -1
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return strCell(best)
}

func aggPercentTrue(c *frame.Column, rows []int, _ *Params) cell {
	vals := presentNums(c, rows)
	if len(vals) == 0 {
		return missingCell
	}
	t := 0.0
	for _, v := range vals {
		if v != 0 {
			t++
		}
	}
	return numCell(t / float64(len(vals)))
}

func aggLongSessionCount(c *frame.Column, rows []int, p *Params) cell {
	threshold := float64(DefaultLongSessionThreshold)
	inclusive := false
	if p != nil {
		threshold, inclusive = p.Threshold, p.Inclusive
	}
	return numCell(float64(LongSessionCount(presentNums(c, rows), threshold, inclusive)))
}

func datePart(part func(time.Time) int) transformFunc {
	return func(c *frame.Column, i int, _ *Params) cell {
		if c.State[i] != frame.Present {
			return missingCell
		}
		return numCell(float64(part(c.Time[i])))
	}
}

func textMeasure(measure func(string) int) transformFunc {
	return func(c *frame.Column, i int, _ *Params) cell {
		if c.State[i] != frame.Present {
			return missingCell
		}
		return numCell(float64(measure(c.Str[i])))
	}
}

func transIsNull(c *frame.Column, i int, _ *Params) cell {
	if c.State[i] == frame.Present {
		return numCell(0)
	}
	return numCell(1)
}

func transKeywordCount(c *frame.Column, i int, p *Params) cell {
	if c.State[i] != frame.Present {
		return missingCell
	}
	var keywords []string
	if p != nil {
		keywords = p.Keywords
	}
	return numCell(float64(KeywordCount(c.Str[i], keywords)))
}
