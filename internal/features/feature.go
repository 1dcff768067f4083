// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package features

import (
	"fmt"
	"strings"

	"github.com/tomtom215/featuresmith/internal/entityset"
	"github.com/tomtom215/featuresmith/internal/frame"
)

// FeatureType distinguishes how a feature is computed.
type FeatureType string

const (
	// TypeIdentity is a variable of the entity itself.
	TypeIdentity FeatureType = "identity"
	// TypeTransform applies a row-wise primitive to a feature of the same entity.
	TypeTransform FeatureType = "transform"
	// TypeAggregation collapses a child feature over each parent's child rows.
	TypeAggregation FeatureType = "aggregation"
	// TypeDirect copies a parent feature onto each child row.
	TypeDirect FeatureType = "direct"
)

// Where restricts an aggregation to child rows whose categorical variable
// equals Value.
type Where struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
}

// Feature is a symbolic, replayable definition of one column.
//
// Base points at the feature the primitive is applied to: a feature of the
// same entity for transforms, of the child entity for aggregations, and of
// the parent entity for direct features.
type Feature struct {
	Name         string                  `json:"name"`
	Type         FeatureType             `json:"type"`
	Entity       string                  `json:"entity"`
	Kind         frame.Kind              `json:"kind"`
	Depth        int                     `json:"depth"`
	Variable     string                  `json:"variable,omitempty"`
	Primitive    string                  `json:"primitive,omitempty"`
	Params       *Params                 `json:"params,omitempty"`
	Base         *Feature                `json:"base,omitempty"`
	Relationship *entityset.Relationship `json:"relationship,omitempty"`
	Where        *Where                  `json:"where,omitempty"`
}

// newIdentity defines a variable of an entity as a feature.
func newIdentity(entity, variable string, kind frame.Kind) *Feature {
	return &Feature{
		Name:     variable,
		Type:     TypeIdentity,
		Entity:   entity,
		Kind:     kind,
		Variable: variable,
	}
}

// newTransform applies a transform primitive to base.
func newTransform(p *Primitive, base *Feature, params *Params) *Feature {
	return &Feature{
		Name:      fmt.Sprintf("%s(%s)", strings.ToUpper(p.Name), base.Name),
		Type:      TypeTransform,
		Entity:    base.Entity,
		Kind:      p.returnKind(base.Kind),
		Depth:     base.Depth + 1,
		Primitive: p.Name,
		Params:    params,
		Base:      base,
	}
}

// newAggregation collapses base (a child feature) onto the parent. childRef
// is how the child is named inside the feature name.
func newAggregation(p *Primitive, base *Feature, rel entityset.Relationship, childRef string, where *Where, params *Params) *Feature {
	var inner string
	if p.CountsRows() {
		inner = childRef
	} else {
		inner = childRef + "." + base.Name
	}
	if where != nil {
		inner += fmt.Sprintf(" WHERE %s = %s", where.Variable, where.Value)
	}
	r := rel
	return &Feature{
		Name:         fmt.Sprintf("%s(%s)", strings.ToUpper(p.Name), inner),
		Type:         TypeAggregation,
		Entity:       rel.ParentEntity,
		Kind:         p.returnKind(base.Kind),
		Depth:        base.Depth + 1,
		Primitive:    p.Name,
		Params:       params,
		Base:         base,
		Relationship: &r,
		Where:        where,
	}
}

// newDirect copies base (a parent feature) onto the child.
func newDirect(base *Feature, rel entityset.Relationship, parentRef string) *Feature {
	r := rel
	return &Feature{
		Name:         parentRef + "." + base.Name,
		Type:         TypeDirect,
		Entity:       rel.ChildEntity,
		Kind:         base.Kind,
		Depth:        base.Depth + 1,
		Base:         base,
		Relationship: &r,
	}
}

// Names returns the names of features in order.
func Names(fs []*Feature) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// validate checks that a decoded feature is internally consistent.
func (f *Feature) validate() error {
	switch f.Type {
	case TypeIdentity:
		if f.Variable == "" {
			return fmt.Errorf("identity feature %q has no variable", f.Name)
		}
		return nil
	case TypeTransform, TypeAggregation:
		if _, err := Lookup(f.Primitive); err != nil {
			return fmt.Errorf("feature %q: %w", f.Name, err)
		}
	case TypeDirect:
	default:
		return fmt.Errorf("feature %q has unknown type %q", f.Name, f.Type)
	}
	if f.Base == nil {
		return fmt.Errorf("feature %q has no base", f.Name)
	}
	if (f.Type == TypeAggregation || f.Type == TypeDirect) && f.Relationship == nil {
		return fmt.Errorf("feature %q has no relationship", f.Name)
	}
	return f.Base.validate()
}
