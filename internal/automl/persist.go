// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/featuresmith/internal/automl/storage"
)

// SaveModel writes m as the next version of name. rows is the training row
// count recorded in the metadata.
func SaveModel(ctx context.Context, store *storage.Store, name string, m *Model, sortMetric string, rows int) (storage.ModelMetadata, error) {
	state, err := m.State()
	if err != nil {
		return storage.ModelMetadata{}, err
	}
	score, _ := m.Metrics.Get(sortMetric)
	meta := storage.ModelMetadata{
		ModelID:            m.ID,
		Family:             m.Family,
		SortMetric:         sortMetric,
		Score:              score,
		RowCount:           rows,
		InputCount:         m.Preprocessor.Width(),
		ClassCount:         len(m.Classes),
		TrainedAt:          time.Now().UTC(),
		TrainingDurationMS: m.TrainingTime.Milliseconds(),
	}
	saved, err := store.Save(ctx, name, 0, state, meta)
	if err != nil {
		return storage.ModelMetadata{}, fmt.Errorf("save model %s: %w", m.ID, err)
	}
	return saved, nil
}

// LoadModel restores a model saved by SaveModel. A zero version loads the
// latest one.
func LoadModel(ctx context.Context, store *storage.Store, name string, version int) (*Model, *storage.ModelMetadata, error) {
	var state ModelState
	meta, err := store.Load(ctx, name, version, &state)
	if err != nil {
		return nil, nil, fmt.Errorf("load model %s: %w", name, err)
	}
	m, err := ModelFromState(state)
	if err != nil {
		return nil, nil, err
	}
	return m, meta, nil
}
