// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

/*
Package entityset assembles flat frames into a relational container.

An EntitySet holds entities (one frame each, keyed by a unique index column)
and one-to-many relationships between them. Every relationship is validated
when it is declared, so an invalid schema is rejected before any feature
synthesis runs:

  - the parent variable must be unique in the parent and be its index
  - the child variable must not be the child's index (one-to-one)
  - both key columns must have compatible kinds

Entities lacking a natural key can have a surrogate index synthesized
(MakeIndex), appended as a monotonically increasing numeric column.

Child rows whose foreign key has no parent row are kept. They aggregate into
no parent, and lookups from them into the parent return no row.
*/
package entityset

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/frame"
)

var (
	ErrDuplicateEntity       = errors.New("entity already exists")
	ErrEntityNotFound        = errors.New("entity not found")
	ErrVariableNotFound      = errors.New("variable not found")
	ErrIndexExists           = errors.New("index column already exists")
	ErrIndexNotUnique        = errors.New("index is not unique")
	ErrParentNotUnique       = errors.New("parent variable is not unique")
	ErrParentNotIndex        = errors.New("parent variable is not the parent index")
	ErrOneToOne              = errors.New("child variable is the child index")
	ErrKeyKindMismatch       = errors.New("relationship key kinds are incompatible")
	ErrDuplicateRelationship = errors.New("relationship already declared")
	ErrSelfRelationship      = errors.New("relationship links an entity to itself")
	ErrUnsupportedOverride   = errors.New("unsupported variable type override")
)

// VariableType is the semantic role of a column within an entity.
type VariableType string

const (
	TypeIndex       VariableType = "index"
	TypeForeignKey  VariableType = "id"
	TypeTimeIndex   VariableType = "time_index"
	TypeNumeric     VariableType = "numeric"
	TypeBoolean     VariableType = "boolean"
	TypeCategorical VariableType = "categorical"
	TypeText        VariableType = "text"
	TypeDatetime    VariableType = "datetime"
)

// IsKey reports whether the type is an index or foreign key.
func (t VariableType) IsKey() bool {
	return t == TypeIndex || t == TypeForeignKey
}

func typeForKind(k frame.Kind) VariableType {
	switch k {
	case frame.KindBoolean:
		return TypeBoolean
	case frame.KindCategorical:
		return TypeCategorical
	case frame.KindText:
		return TypeText
	case frame.KindDatetime:
		return TypeDatetime
	default:
		return TypeNumeric
	}
}

// EntityOptions configures AddEntity.
type EntityOptions struct {
	// Index names the unique key column.
	Index string

	// MakeIndex synthesizes Index as 0..n-1 instead of reading it.
	MakeIndex bool

	// TimeIndex optionally names the row timestamp column.
	TimeIndex string

	// Kinds relabels string-backed columns between categorical and text.
	Kinds map[string]frame.Kind
}

// Entity is one table of the set.
type Entity struct {
	ID        string
	Frame     *frame.Frame
	Index     string
	TimeIndex string

	types  map[string]VariableType
	keyRow map[string]int
}

// Variables returns the entity's column names in frame order.
func (e *Entity) Variables() []string { return e.Frame.Names() }

// Type returns the semantic type of a variable.
func (e *Entity) Type(name string) VariableType { return e.types[name] }

// Len returns the number of rows.
func (e *Entity) Len() int { return e.Frame.Len() }

// RowByKey returns the row holding the given index key.
func (e *Entity) RowByKey(key string) (int, bool) {
	i, ok := e.keyRow[key]
	return i, ok
}

// Relationship links parent.ParentVariable (unique) to child.ChildVariable.
type Relationship struct {
	ParentEntity   string `json:"parent_entity"`
	ParentVariable string `json:"parent_variable"`
	ChildEntity    string `json:"child_entity"`
	ChildVariable  string `json:"child_variable"`
}

func (r Relationship) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", r.ParentEntity, r.ParentVariable, r.ChildEntity, r.ChildVariable)
}

// EntitySet is a relational container of entities and relationships.
type EntitySet struct {
	ID string

	entities      []*Entity
	byID          map[string]*Entity
	relationships []Relationship
	logger        zerolog.Logger
}

// New creates an empty entity set.
func New(id string, logger zerolog.Logger) *EntitySet {
	return &EntitySet{
		ID:     id,
		byID:   make(map[string]*Entity),
		logger: logger.With().Str("component", "entityset").Str("entityset", id).Logger(),
	}
}

// AddEntity adds a frame as an entity. The set takes ownership of the frame;
// with MakeIndex the surrogate key column is appended to it.
func (es *EntitySet) AddEntity(id string, f *frame.Frame, opts EntityOptions) (*Entity, error) {
	if _, dup := es.byID[id]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, id)
	}
	if opts.Index == "" {
		return nil, fmt.Errorf("entity %s: index name required", id)
	}

	if opts.MakeIndex {
		if f.Has(opts.Index) {
			return nil, fmt.Errorf("entity %s: %w: %s", id, ErrIndexExists, opts.Index)
		}
		surrogate := make([]float64, f.Len())
		for i := range surrogate {
			surrogate[i] = float64(i)
		}
		if err := f.AddColumn(frame.NewNumeric(opts.Index, surrogate)); err != nil {
			return nil, fmt.Errorf("entity %s: %w", id, err)
		}
	}

	unique, err := f.Unique(opts.Index)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w: %s", id, ErrVariableNotFound, opts.Index)
	}
	if !unique {
		return nil, fmt.Errorf("entity %s: %w: %s", id, ErrIndexNotUnique, opts.Index)
	}

	for name, kind := range opts.Kinds {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("entity %s: %w: %s", id, ErrVariableNotFound, name)
		}
		stringBacked := func(k frame.Kind) bool { return k == frame.KindCategorical || k == frame.KindText }
		if c.Kind != kind && (!stringBacked(c.Kind) || !stringBacked(kind)) {
			return nil, fmt.Errorf("entity %s: %w: %s %s -> %s", id, ErrUnsupportedOverride, name, c.Kind, kind)
		}
		c.Kind = kind
	}

	e := &Entity{
		ID:        id,
		Frame:     f,
		Index:     opts.Index,
		TimeIndex: opts.TimeIndex,
		types:     make(map[string]VariableType, f.Width()),
	}
	for _, c := range f.Columns() {
		e.types[c.Name] = typeForKind(c.Kind)
	}
	e.types[opts.Index] = TypeIndex

	if opts.TimeIndex != "" {
		c, ok := f.Column(opts.TimeIndex)
		if !ok {
			return nil, fmt.Errorf("entity %s: %w: time index %s", id, ErrVariableNotFound, opts.TimeIndex)
		}
		if c.Kind != frame.KindDatetime && c.Kind != frame.KindNumeric {
			return nil, fmt.Errorf("entity %s: time index %s must be datetime or numeric, got %s", id, opts.TimeIndex, c.Kind)
		}
		e.types[opts.TimeIndex] = TypeTimeIndex
	}

	e.keyRow, err = f.KeyIndex(opts.Index)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", id, err)
	}

	es.entities = append(es.entities, e)
	es.byID[id] = e

	es.logger.Debug().
		Str("entity", id).
		Int("rows", f.Len()).
		Int("variables", f.Width()).
		Bool("make_index", opts.MakeIndex).
		Msg("Entity added")

	return e, nil
}

// AddRelationship validates and declares a one-to-many relationship.
func (es *EntitySet) AddRelationship(r Relationship) error {
	parent, ok := es.byID[r.ParentEntity]
	if !ok {
		return fmt.Errorf("relationship %s: %w: %s", r, ErrEntityNotFound, r.ParentEntity)
	}
	child, ok := es.byID[r.ChildEntity]
	if !ok {
		return fmt.Errorf("relationship %s: %w: %s", r, ErrEntityNotFound, r.ChildEntity)
	}
	if r.ParentEntity == r.ChildEntity {
		return fmt.Errorf("relationship %s: %w", r, ErrSelfRelationship)
	}
	for _, existing := range es.relationships {
		if existing == r {
			return fmt.Errorf("relationship %s: %w", r, ErrDuplicateRelationship)
		}
	}

	parentCol, ok := parent.Frame.Column(r.ParentVariable)
	if !ok {
		return fmt.Errorf("relationship %s: %w: %s.%s", r, ErrVariableNotFound, r.ParentEntity, r.ParentVariable)
	}
	childCol, ok := child.Frame.Column(r.ChildVariable)
	if !ok {
		return fmt.Errorf("relationship %s: %w: %s.%s", r, ErrVariableNotFound, r.ChildEntity, r.ChildVariable)
	}

	unique, err := parent.Frame.Unique(r.ParentVariable)
	if err != nil {
		return fmt.Errorf("relationship %s: %w", r, err)
	}
	if !unique {
		return fmt.Errorf("relationship %s: %w", r, ErrParentNotUnique)
	}
	if r.ParentVariable != parent.Index {
		return fmt.Errorf("relationship %s: %w (index is %s)", r, ErrParentNotIndex, parent.Index)
	}
	if r.ChildVariable == child.Index {
		return fmt.Errorf("relationship %s: %w", r, ErrOneToOne)
	}
	if (parentCol.Kind == frame.KindDatetime) != (childCol.Kind == frame.KindDatetime) {
		return fmt.Errorf("relationship %s: %w: %s vs %s", r, ErrKeyKindMismatch, parentCol.Kind, childCol.Kind)
	}

	child.types[r.ChildVariable] = TypeForeignKey
	es.relationships = append(es.relationships, r)

	es.logger.Debug().Str("relationship", r.String()).Msg("Relationship added")
	return nil
}

// Entity returns the entity with the given id.
func (es *EntitySet) Entity(id string) (*Entity, bool) {
	e, ok := es.byID[id]
	return e, ok
}

// Entities returns entities in declaration order.
func (es *EntitySet) Entities() []*Entity { return es.entities }

// Relationships returns relationships in declaration order.
func (es *EntitySet) Relationships() []Relationship { return es.relationships }

// ChildRelationships returns relationships where id is the parent.
func (es *EntitySet) ChildRelationships(id string) []Relationship {
	var out []Relationship
	for _, r := range es.relationships {
		if r.ParentEntity == id {
			out = append(out, r)
		}
	}
	return out
}

// ParentRelationships returns relationships where id is the child.
func (es *EntitySet) ParentRelationships(id string) []Relationship {
	var out []Relationship
	for _, r := range es.relationships {
		if r.ChildEntity == id {
			out = append(out, r)
		}
	}
	return out
}
