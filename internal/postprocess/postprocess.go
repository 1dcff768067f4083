// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

// Package postprocess normalizes a synthesized feature matrix before it is
// persisted. Unknown sentinels (aggregations with no related rows) and
// configured placeholder tokens in the raw data become Missing. Values are
// never imputed and present zeros are never touched.
package postprocess

import (
	"sort"

	"github.com/tomtom215/featuresmith/internal/frame"
)

// Options configures ReplaceSentinels.
type Options struct {
	// UnknownTokens are categorical or text values that mean "no value",
	// e.g. "-unknown-".
	UnknownTokens []string

	// Exclude names columns left untouched, typically the key and label.
	Exclude []string
}

// ColumnReport counts replacements in one column.
type ColumnReport struct {
	Column   string `json:"column"`
	Sentinel int    `json:"sentinel"`
	Tokens   int    `json:"tokens"`
}

// Report summarizes a ReplaceSentinels call.
type Report struct {
	Columns       []ColumnReport `json:"columns"`
	TotalSentinel int            `json:"total_sentinel"`
	TotalTokens   int            `json:"total_tokens"`
}

// ReplaceSentinels converts every Unknown cell of f to Missing, and every
// string cell equal to an unknown token to Missing, in place. Only columns
// with at least one replacement appear in the report, sorted by name.
func ReplaceSentinels(f *frame.Frame, opts Options) Report {
	tokens := make(map[string]struct{}, len(opts.UnknownTokens))
	for _, t := range opts.UnknownTokens {
		tokens[t] = struct{}{}
	}
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, n := range opts.Exclude {
		excluded[n] = struct{}{}
	}

	var rep Report
	for _, c := range f.Columns() {
		if _, skip := excluded[c.Name]; skip {
			continue
		}

		cr := ColumnReport{Column: c.Name}
		stringBacked := c.Kind == frame.KindCategorical || c.Kind == frame.KindText
		for i, st := range c.State {
			switch {
			case st == frame.Unknown:
				c.SetState(i, frame.Missing)
				cr.Sentinel++
			case st == frame.Present && stringBacked && len(tokens) > 0:
				if _, ok := tokens[c.Str[i]]; ok {
					c.SetState(i, frame.Missing)
					cr.Tokens++
				}
			}
		}

		if cr.Sentinel > 0 || cr.Tokens > 0 {
			rep.Columns = append(rep.Columns, cr)
			rep.TotalSentinel += cr.Sentinel
			rep.TotalTokens += cr.Tokens
		}
	}

	sort.Slice(rep.Columns, func(i, j int) bool { return rep.Columns[i].Column < rep.Columns[j].Column })
	return rep
}
