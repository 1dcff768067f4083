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

	"github.com/tomtom215/featuresmith/internal/entityset"
	"github.com/tomtom215/featuresmith/internal/frame"
)

// ErrIncompatibleSchema is returned when feature definitions reference
// entities, variables or relationships the entity set does not have.
var ErrIncompatibleSchema = errors.New("entity set is incompatible with feature definitions")

// CalculateFeatureMatrix evaluates feature definitions against an entity
// set. The result has the target key as its first column followed by one
// column per definition in order, one row per target entity, sorted by key.
//
// Aggregations for a parent row with no related child rows produce Unknown
// cells. Parent rows that have related rows but no usable values produce 0
// for counting primitives and Missing for statistics.
func (s *Synthesizer) CalculateFeatureMatrix(ctx context.Context, es *entityset.EntitySet, target string, defs []*Feature) (*frame.Frame, error) {
	start := time.Now()

	te, ok := es.Entity(target)
	if !ok {
		return nil, fmt.Errorf("%w: target entity %s", ErrIncompatibleSchema, target)
	}
	key, ok := te.Frame.Column(te.Index)
	if !ok {
		return nil, fmt.Errorf("%w: target index %s", ErrIncompatibleSchema, te.Index)
	}

	calc := &calculator{
		es:     es,
		memo:   make(map[string]*frame.Column),
		groups: make(map[entityset.Relationship][][]int),
	}

	cols := make([]*frame.Column, 0, len(defs)+1)
	cols = append(cols, key.Clone())
	for _, f := range defs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Entity != target {
			return nil, fmt.Errorf("%w: feature %q belongs to %s, not %s", ErrIncompatibleSchema, f.Name, f.Entity, target)
		}
		col, err := calc.compute(f)
		if err != nil {
			return nil, err
		}
		out := col.Clone()
		out.Name = f.Name
		cols = append(cols, out)
	}

	fm, err := frame.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("assemble feature matrix: %w", err)
	}
	if err := fm.SortBy(te.Index); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("entityset", es.ID).
		Str("target", target).
		Int("features", len(defs)).
		Int("rows", fm.Len()).
		Dur("duration", time.Since(start)).
		Msg("Feature matrix calculated")

	return fm, nil
}

// calculator memoizes computed columns and child groupings for one run.
type calculator struct {
	es     *entityset.EntitySet
	memo   map[string]*frame.Column
	groups map[entityset.Relationship][][]int
}

func (c *calculator) compute(f *Feature) (*frame.Column, error) {
	key := f.Entity + "\x00" + f.Name
	if col, ok := c.memo[key]; ok {
		return col, nil
	}

	var (
		col *frame.Column
		err error
	)
	switch f.Type {
	case TypeIdentity:
		col, err = c.identity(f)
	case TypeTransform:
		col, err = c.transform(f)
	case TypeAggregation:
		col, err = c.aggregate(f)
	case TypeDirect:
		col, err = c.direct(f)
	default:
		err = fmt.Errorf("%w: feature %q has unknown type %q", ErrIncompatibleSchema, f.Name, f.Type)
	}
	if err != nil {
		return nil, err
	}

	c.memo[key] = col
	return col, nil
}

func (c *calculator) entity(id string) (*entityset.Entity, error) {
	e, ok := c.es.Entity(id)
	if !ok {
		return nil, fmt.Errorf("%w: entity %s", ErrIncompatibleSchema, id)
	}
	return e, nil
}

func (c *calculator) identity(f *Feature) (*frame.Column, error) {
	e, err := c.entity(f.Entity)
	if err != nil {
		return nil, err
	}
	col, ok := e.Frame.Column(f.Variable)
	if !ok {
		return nil, fmt.Errorf("%w: variable %s.%s", ErrIncompatibleSchema, f.Entity, f.Variable)
	}
	if col.Kind != f.Kind {
		return nil, fmt.Errorf("%w: variable %s.%s is %s, expected %s", ErrIncompatibleSchema, f.Entity, f.Variable, col.Kind, f.Kind)
	}
	return col, nil
}

func (c *calculator) transform(f *Feature) (*frame.Column, error) {
	p, err := Lookup(f.Primitive)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompatibleSchema, err)
	}
	if f.Base == nil || f.Base.Entity != f.Entity {
		return nil, fmt.Errorf("%w: transform %q base must be on %s", ErrIncompatibleSchema, f.Name, f.Entity)
	}
	base, err := c.compute(f.Base)
	if err != nil {
		return nil, err
	}
	if p.trans == nil || !p.Accepts(base.Kind) {
		return nil, fmt.Errorf("%w: %s cannot transform %s", ErrIncompatibleSchema, p.Name, base.Kind)
	}

	out := frame.NewEmpty(f.Name, f.Kind, base.Len())
	for i := 0; i < base.Len(); i++ {
		setCell(out, i, p.trans(base, i, f.Params))
	}
	return out, nil
}

func (c *calculator) aggregate(f *Feature) (*frame.Column, error) {
	p, err := Lookup(f.Primitive)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompatibleSchema, err)
	}
	if p.agg == nil || f.Relationship == nil || f.Base == nil {
		return nil, fmt.Errorf("%w: malformed aggregation %q", ErrIncompatibleSchema, f.Name)
	}
	rel := *f.Relationship
	if rel.ParentEntity != f.Entity || f.Base.Entity != rel.ChildEntity {
		return nil, fmt.Errorf("%w: aggregation %q does not follow %s", ErrIncompatibleSchema, f.Name, rel)
	}

	parent, err := c.entity(rel.ParentEntity)
	if err != nil {
		return nil, err
	}
	child, err := c.entity(rel.ChildEntity)
	if err != nil {
		return nil, err
	}
	groups, err := c.grouping(rel, parent, child)
	if err != nil {
		return nil, err
	}

	base, err := c.compute(f.Base)
	if err != nil {
		return nil, err
	}
	if !p.CountsRows() && !p.Accepts(base.Kind) {
		return nil, fmt.Errorf("%w: %s cannot aggregate %s", ErrIncompatibleSchema, p.Name, base.Kind)
	}

	var whereCol *frame.Column
	if f.Where != nil {
		wc, ok := child.Frame.Column(f.Where.Variable)
		if !ok || wc.Kind != frame.KindCategorical {
			return nil, fmt.Errorf("%w: where variable %s.%s", ErrIncompatibleSchema, child.ID, f.Where.Variable)
		}
		whereCol = wc
	}

	out := frame.NewEmpty(f.Name, f.Kind, parent.Len())
	rows := make([]int, 0)
	for pr, related := range groups {
		if len(related) == 0 {
			out.SetState(pr, frame.Unknown)
			continue
		}
		rows = rows[:0]
		for _, i := range related {
			if whereCol != nil && (whereCol.State[i] != frame.Present || whereCol.Str[i] != f.Where.Value) {
				continue
			}
			rows = append(rows, i)
		}
		setCell(out, pr, p.agg(base, rows, f.Params))
	}
	return out, nil
}

func (c *calculator) direct(f *Feature) (*frame.Column, error) {
	if f.Relationship == nil || f.Base == nil {
		return nil, fmt.Errorf("%w: malformed direct feature %q", ErrIncompatibleSchema, f.Name)
	}
	rel := *f.Relationship
	if rel.ChildEntity != f.Entity || f.Base.Entity != rel.ParentEntity {
		return nil, fmt.Errorf("%w: direct feature %q does not follow %s", ErrIncompatibleSchema, f.Name, rel)
	}
	if !c.hasRelationship(rel) {
		return nil, fmt.Errorf("%w: relationship %s", ErrIncompatibleSchema, rel)
	}

	parent, err := c.entity(rel.ParentEntity)
	if err != nil {
		return nil, err
	}
	child, err := c.entity(rel.ChildEntity)
	if err != nil {
		return nil, err
	}
	fk, ok := child.Frame.Column(rel.ChildVariable)
	if !ok {
		return nil, fmt.Errorf("%w: variable %s.%s", ErrIncompatibleSchema, rel.ChildEntity, rel.ChildVariable)
	}

	base, err := c.compute(f.Base)
	if err != nil {
		return nil, err
	}

	out := frame.NewEmpty(f.Name, base.Kind, child.Len())
	for i := 0; i < child.Len(); i++ {
		k, ok := fk.Key(i)
		if !ok {
			continue
		}
		pr, ok := parent.RowByKey(k)
		if !ok {
			continue
		}
		copyCell(out, i, base, pr)
	}
	return out, nil
}

// grouping returns, for each parent row, the child rows referencing it.
func (c *calculator) grouping(rel entityset.Relationship, parent, child *entityset.Entity) ([][]int, error) {
	if g, ok := c.groups[rel]; ok {
		return g, nil
	}
	if !c.hasRelationship(rel) {
		return nil, fmt.Errorf("%w: relationship %s", ErrIncompatibleSchema, rel)
	}
	fk, ok := child.Frame.Column(rel.ChildVariable)
	if !ok {
		return nil, fmt.Errorf("%w: variable %s.%s", ErrIncompatibleSchema, rel.ChildEntity, rel.ChildVariable)
	}

	groups := make([][]int, parent.Len())
	for i := 0; i < child.Len(); i++ {
		k, ok := fk.Key(i)
		if !ok {
			continue
		}
		if pr, ok := parent.RowByKey(k); ok {
			groups[pr] = append(groups[pr], i)
		}
	}
	c.groups[rel] = groups
	return groups, nil
}

func (c *calculator) hasRelationship(rel entityset.Relationship) bool {
	for _, r := range c.es.Relationships() {
		if r == rel {
			return true
		}
	}
	return false
}

// setCell writes a computed cell into dst.
func setCell(dst *frame.Column, i int, v cell) {
	if v.state != frame.Present {
		dst.SetState(i, v.state)
		return
	}
	switch dst.Kind {
	case frame.KindCategorical, frame.KindText:
		dst.SetStr(i, v.str)
	default:
		dst.SetNum(i, v.num)
	}
}

// copyCell copies src row i into dst row j, preserving its state.
func copyCell(dst *frame.Column, j int, src *frame.Column, i int) {
	if src.State[i] != frame.Present {
		dst.SetState(j, src.State[i])
		return
	}
	switch src.Kind {
	case frame.KindDatetime:
		dst.SetTime(j, src.Time[i])
	case frame.KindCategorical, frame.KindText:
		dst.SetStr(j, src.Str[i])
	default:
		dst.SetNum(j, src.Num[i])
	}
}
