// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/featuresmith/internal/frame"
)

// ErrMissingKey is returned when a scoring row has no key.
var ErrMissingKey = errors.New("row has no key")

// Model is a trained learner together with the encoding and class labels
// needed to score raw feature frames.
type Model struct {
	ID           string
	Family       string
	Classes      []string
	Preprocessor *Preprocessor
	Learner      Learner
	Metrics      Metrics
	TrainingTime time.Duration
}

// Predictions are class probabilities for keyed rows, in input row order.
type Predictions struct {
	Keys    []string
	Classes []string
	Probs   *mat.Dense
}

// Len returns the number of scored rows.
func (p *Predictions) Len() int { return len(p.Keys) }

// Label returns the most probable class of row i. Ties go to the class
// that sorts first.
func (p *Predictions) Label(i int) string {
	return p.TopK(i, 1)[0]
}

// TopK returns up to k classes of row i, most probable first.
func (p *Predictions) TopK(i, k int) []string {
	row := p.Probs.RawRowView(i)
	order := make([]int, len(row))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return row[order[a]] > row[order[b]] })

	k = min(k, len(order))
	out := make([]string, k)
	for j := 0; j < k; j++ {
		out[j] = p.Classes[order[j]]
	}
	return out
}

// Predict scores every row of f. key names the column carrying row keys.
func (m *Model) Predict(f *frame.Frame, key string) (*Predictions, error) {
	keyCol, err := f.MustColumn(key)
	if err != nil {
		return nil, err
	}
	keys := make([]string, f.Len())
	for i := range keys {
		k, ok := keyCol.Key(i)
		if !ok {
			return nil, fmt.Errorf("%w: row %d", ErrMissingKey, i)
		}
		keys[i] = k
	}

	x, err := m.Preprocessor.Transform(f)
	if err != nil {
		return nil, err
	}
	probs, err := m.Learner.PredictProba(x)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", m.ID, err)
	}
	return &Predictions{Keys: keys, Classes: m.Classes, Probs: probs}, nil
}

// ModelState is the persisted form of a model.
type ModelState struct {
	ID           string
	Family       string
	Classes      []string
	Preprocessor Preprocessor
	Learner      []byte
	Metrics      Metrics
	TrainingTime time.Duration
}

// State captures m for persistence.
func (m *Model) State() (ModelState, error) {
	data, err := marshalLearner(m.Learner)
	if err != nil {
		return ModelState{}, err
	}
	return ModelState{
		ID:           m.ID,
		Family:       m.Family,
		Classes:      m.Classes,
		Preprocessor: *m.Preprocessor,
		Learner:      data,
		Metrics:      m.Metrics,
		TrainingTime: m.TrainingTime,
	}, nil
}

// ModelFromState restores a model captured by State.
func ModelFromState(s ModelState) (*Model, error) {
	l, err := unmarshalLearner(s.Learner)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", s.ID, err)
	}
	if len(s.Classes) < 2 {
		return nil, fmt.Errorf("model %s: %w", s.ID, ErrSingleClass)
	}
	p := s.Preprocessor
	return &Model{
		ID:           s.ID,
		Family:       s.Family,
		Classes:      s.Classes,
		Preprocessor: &p,
		Learner:      l,
		Metrics:      s.Metrics,
		TrainingTime: s.TrainingTime,
	}, nil
}
