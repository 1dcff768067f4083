// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package loader

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/config"
	"github.com/tomtom215/featuresmith/internal/entityset"
	"github.com/tomtom215/featuresmith/internal/frame"
)

// Partition selects which target partition an entity set is built from.
type Partition string

const (
	PartitionTrain Partition = "train"
	PartitionTest  Partition = "test"
)

// EntitySet assembles an independent entity set for one partition. Every
// frame is copied, so the train and test sets never share rows or the
// surrogate keys synthesized for them.
func (ds *Dataset) EntitySet(schema config.SchemaConfig, part Partition, logger zerolog.Logger) (*entityset.EntitySet, error) {
	es := entityset.New(string(part), logger)

	for _, t := range schema.Tables {
		var src *frame.Frame
		switch {
		case t.Name == schema.Target && part == PartitionTest:
			src = ds.TestTarget
		default:
			src = ds.Tables[t.Name]
		}
		if src == nil {
			return nil, fmt.Errorf("table %s was not loaded", t.Name)
		}

		kinds := make(map[string]frame.Kind, len(t.TextColumns))
		for _, name := range t.TextColumns {
			kinds[name] = frame.KindText
		}

		opts := entityset.EntityOptions{
			Index:     t.Index,
			MakeIndex: t.MakeIndex,
			TimeIndex: t.TimeIndex,
			Kinds:     kinds,
		}
		if _, err := es.AddEntity(t.Name, src.Clone(), opts); err != nil {
			return nil, fmt.Errorf("%s entity set: %w", part, err)
		}
	}

	for _, r := range schema.Relationships {
		rel := entityset.Relationship{
			ParentEntity:   r.ParentTable,
			ParentVariable: r.ParentColumn,
			ChildEntity:    r.ChildTable,
			ChildVariable:  r.ChildColumn,
		}
		if err := es.AddRelationship(rel); err != nil {
			return nil, fmt.Errorf("%s entity set: %w", part, err)
		}
	}

	return es, nil
}
