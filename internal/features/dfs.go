// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/entityset"
	"github.com/tomtom215/featuresmith/internal/frame"
)

var (
	// ErrTargetNotFound is returned when the target entity is not in the set.
	ErrTargetNotFound = errors.New("target entity not found")
	// ErrInvalidDepth is returned for a maximum depth below one.
	ErrInvalidDepth = errors.New("max depth must be at least 1")
	// ErrWrongPrimitiveKind is returned when a transform is listed as an
	// aggregation or the reverse.
	ErrWrongPrimitiveKind = errors.New("primitive listed under the wrong kind")
)

// InterestingValues lists categorical values of one variable worth a
// where-clause.
type InterestingValues struct {
	Entity   string
	Variable string
	Values   []string
}

// Options configures deep feature synthesis.
type Options struct {
	TargetEntity    string
	AggPrimitives   []string
	TransPrimitives []string

	// WherePrimitives are the aggregations also computed once per
	// interesting value.
	WherePrimitives   []string
	InterestingValues []InterestingValues

	MaxDepth int

	// Keywords parameterizes keyword_count.
	Keywords []string

	// LongSessionThreshold and LongSessionInclusive parameterize
	// long_session_count. A zero threshold uses DefaultLongSessionThreshold.
	LongSessionThreshold float64
	LongSessionInclusive bool
}

// Synthesizer runs deep feature synthesis and replays feature definitions.
type Synthesizer struct {
	logger zerolog.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{logger: logger.With().Str("component", "features").Logger()}
}

// DFS generates feature definitions for the target entity and materializes
// them. The matrix has the target key as its first column and one row per
// target entity, sorted by key.
func (s *Synthesizer) DFS(ctx context.Context, es *entityset.EntitySet, opts Options) (*frame.Frame, []*Feature, error) {
	start := time.Now()

	defs, err := s.BuildFeatures(es, opts)
	if err != nil {
		return nil, nil, err
	}

	fm, err := s.CalculateFeatureMatrix(ctx, es, opts.TargetEntity, defs)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("entityset", es.ID).
		Str("target", opts.TargetEntity).
		Int("max_depth", opts.MaxDepth).
		Int("features", len(defs)).
		Int("rows", fm.Len()).
		Dur("duration", time.Since(start)).
		Msg("Deep feature synthesis complete")

	return fm, defs, nil
}

// BuildFeatures generates feature definitions without computing them.
// The list is deterministic: entities and relationships are visited in
// declaration order and primitives in the order given.
func (s *Synthesizer) BuildFeatures(es *entityset.EntitySet, opts Options) ([]*Feature, error) {
	if opts.MaxDepth < 1 {
		return nil, ErrInvalidDepth
	}
	if _, ok := es.Entity(opts.TargetEntity); !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, opts.TargetEntity)
	}

	b, err := newBuilder(es, opts)
	if err != nil {
		return nil, err
	}

	all := b.run(opts.TargetEntity, opts.MaxDepth, map[string]bool{})

	target, _ := es.Entity(opts.TargetEntity)
	out := make([]*Feature, 0, len(all))
	for _, f := range all {
		if f.Type == TypeIdentity && target.Type(f.Variable).IsKey() {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// builder holds resolved primitives for one synthesis run.
type builder struct {
	es        *entityset.EntitySet
	aggs      []*Primitive
	trans     []*Primitive
	where     map[string]bool
	interest  map[string][]InterestingValues
	keywordP  *Params
	longSessP *Params
}

func newBuilder(es *entityset.EntitySet, opts Options) (*builder, error) {
	b := &builder{
		es:       es,
		where:    make(map[string]bool, len(opts.WherePrimitives)),
		interest: make(map[string][]InterestingValues),
	}

	for _, name := range opts.AggPrimitives {
		p, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if !p.Aggregation {
			return nil, fmt.Errorf("%w: %s is a transform", ErrWrongPrimitiveKind, name)
		}
		b.aggs = append(b.aggs, p)
	}
	for _, name := range opts.TransPrimitives {
		p, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if p.Aggregation {
			return nil, fmt.Errorf("%w: %s is an aggregation", ErrWrongPrimitiveKind, name)
		}
		b.trans = append(b.trans, p)
	}
	for _, name := range opts.WherePrimitives {
		p, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if !p.Aggregation {
			return nil, fmt.Errorf("%w: %s is a transform", ErrWrongPrimitiveKind, name)
		}
		b.where[p.Name] = true
	}
	for _, iv := range opts.InterestingValues {
		e, ok := es.Entity(iv.Entity)
		if !ok {
			continue
		}
		c, ok := e.Frame.Column(iv.Variable)
		if !ok || c.Kind != frame.KindCategorical {
			return nil, fmt.Errorf("interesting values %s.%s: variable must be categorical", iv.Entity, iv.Variable)
		}
		b.interest[iv.Entity] = append(b.interest[iv.Entity], iv)
	}

	b.keywordP = &Params{Keywords: append([]string(nil), opts.Keywords...)}
	threshold := opts.LongSessionThreshold
	if threshold == 0 {
		threshold = DefaultLongSessionThreshold
	}
	b.longSessP = &Params{Threshold: threshold, Inclusive: opts.LongSessionInclusive}

	return b, nil
}

func (b *builder) params(p *Primitive) *Params {
	if !p.parameterized {
		return nil
	}
	switch p.Name {
	case "keyword_count":
		return b.keywordP
	case "long_session_count":
		return b.longSessP
	default:
		return nil
	}
}

// run returns every feature of entity id whose depth is at most budget.
// Entities on path are not revisited.
func (b *builder) run(id string, budget int, path map[string]bool) []*Feature {
	e, _ := b.es.Entity(id)

	var feats []*Feature
	seen := make(map[string]bool)
	add := func(f *Feature) {
		if seen[f.Name] {
			return
		}
		seen[f.Name] = true
		feats = append(feats, f)
	}

	identities := make(map[string]*Feature)
	for _, c := range e.Frame.Columns() {
		f := newIdentity(id, c.Name, c.Kind)
		identities[c.Name] = f
		add(f)
	}
	if budget == 0 {
		return feats
	}

	nextPath := make(map[string]bool, len(path)+1)
	for k := range path {
		nextPath[k] = true
	}
	nextPath[id] = true

	// Direct features from parents.
	var directs []*Feature
	for _, rel := range b.es.ParentRelationships(id) {
		if nextPath[rel.ParentEntity] {
			continue
		}
		parent, _ := b.es.Entity(rel.ParentEntity)
		ref := b.parentRef(rel)
		for _, pf := range b.run(rel.ParentEntity, budget-1, nextPath) {
			if pf.Type == TypeIdentity && parent.Type(pf.Variable).IsKey() {
				continue
			}
			directs = append(directs, newDirect(pf, rel, ref))
		}
	}

	// Transforms of identity and direct features.
	for _, base := range append(identityList(feats), directs...) {
		if base.Type == TypeIdentity && e.Type(base.Variable).IsKey() {
			continue
		}
		if base.Depth >= budget {
			continue
		}
		for _, p := range b.trans {
			if p.Accepts(base.Kind) {
				add(newTransform(p, base, b.params(p)))
			}
		}
	}

	// Aggregations over children.
	for _, rel := range b.es.ChildRelationships(id) {
		if nextPath[rel.ChildEntity] {
			continue
		}
		child, _ := b.es.Entity(rel.ChildEntity)
		childFeats := b.run(rel.ChildEntity, budget-1, nextPath)
		ref := b.childRef(rel)
		interesting := b.interest[rel.ChildEntity]

		for _, p := range b.aggs {
			if p.CountsRows() {
				idx, _ := child.Frame.Column(child.Index)
				base := newIdentity(child.ID, child.Index, idx.Kind)
				add(newAggregation(p, base, rel, ref, nil, nil))
				b.addWhere(add, p, base, rel, ref, interesting, "")
				continue
			}
			for _, cf := range childFeats {
				if cf.Type == TypeIdentity && child.Type(cf.Variable).IsKey() {
					continue
				}
				if cf.Depth >= budget || !p.Accepts(cf.Kind) {
					continue
				}
				add(newAggregation(p, cf, rel, ref, nil, b.params(p)))
				if cf.Type == TypeIdentity {
					b.addWhere(add, p, cf, rel, ref, interesting, cf.Variable)
				}
			}
		}
	}

	for _, d := range directs {
		add(d)
	}

	return feats
}

// addWhere adds where-clause variants of an aggregation, skipping filters
// on the aggregated variable itself.
func (b *builder) addWhere(add func(*Feature), p *Primitive, base *Feature, rel entityset.Relationship, ref string, interesting []InterestingValues, baseVar string) {
	if !b.where[p.Name] {
		return
	}
	for _, iv := range interesting {
		if iv.Variable == baseVar {
			continue
		}
		for _, v := range iv.Values {
			add(newAggregation(p, base, rel, ref, &Where{Variable: iv.Variable, Value: v}, b.params(p)))
		}
	}
}

// childRef names the child inside aggregation names, qualified by the foreign
// key when several relationships link the same pair.
func (b *builder) childRef(rel entityset.Relationship) string {
	n := 0
	for _, r := range b.es.ChildRelationships(rel.ParentEntity) {
		if r.ChildEntity == rel.ChildEntity {
			n++
		}
	}
	if n > 1 {
		return fmt.Sprintf("%s[%s]", rel.ChildEntity, rel.ChildVariable)
	}
	return rel.ChildEntity
}

// parentRef names the parent inside direct feature names.
func (b *builder) parentRef(rel entityset.Relationship) string {
	n := 0
	for _, r := range b.es.ParentRelationships(rel.ChildEntity) {
		if r.ParentEntity == rel.ParentEntity {
			n++
		}
	}
	if n > 1 {
		return fmt.Sprintf("%s[%s]", rel.ParentEntity, rel.ChildVariable)
	}
	return rel.ParentEntity
}

func identityList(fs []*Feature) []*Feature {
	out := make([]*Feature, 0, len(fs))
	for _, f := range fs {
		if f.Type == TypeIdentity {
			out = append(out, f)
		}
	}
	return out
}
