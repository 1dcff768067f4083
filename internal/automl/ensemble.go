// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
)

// Stacked ensemble variants.
const (
	EnsembleAllModels    = "all_models"
	EnsembleBestOfFamily = "best_of_family"
)

// StackedEnsemble feeds the class probabilities of its base learners to a
// GLM metalearner.
type StackedEnsemble struct {
	Variant string    `json:"variant"`
	BaseIDs []string  `json:"base_ids"`
	Bases   []Learner `json:"-"`
	Meta    *GLM      `json:"meta"`
}

// Family implements Learner.
func (se *StackedEnsemble) Family() string { return FamilyStackedEnsemble }

// Fit trains the metalearner on level-one data: the cross-validated
// probabilities of every base learner, concatenated per row. The base
// learners must already be fitted on the full training matrix.
func (se *StackedEnsemble) Fit(ctx context.Context, levelOne *mat.Dense, y []int, nClasses int) error {
	if se.Meta == nil {
		se.Meta = NewGLM(DefaultGLMParams())
	}
	return se.Meta.Fit(ctx, levelOne, y, nClasses)
}

// PredictProba implements Learner.
func (se *StackedEnsemble) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	if se.Meta == nil || len(se.Bases) == 0 {
		return nil, fmt.Errorf("%s: %w", FamilyStackedEnsemble, ErrNotFitted)
	}
	probs := make([]*mat.Dense, len(se.Bases))
	for i, base := range se.Bases {
		p, err := base.PredictProba(x)
		if err != nil {
			return nil, fmt.Errorf("ensemble base %s: %w", se.BaseIDs[i], err)
		}
		probs[i] = p
	}
	return se.Meta.PredictProba(hstack(probs))
}

type ensembleJSON struct {
	Variant string            `json:"variant"`
	BaseIDs []string          `json:"base_ids"`
	Bases   []json.RawMessage `json:"bases"`
	Meta    *GLM              `json:"meta"`
}

// MarshalJSON encodes the base learners with their family tags.
func (se *StackedEnsemble) MarshalJSON() ([]byte, error) {
	out := ensembleJSON{Variant: se.Variant, BaseIDs: se.BaseIDs, Meta: se.Meta}
	for _, b := range se.Bases {
		data, err := marshalLearner(b)
		if err != nil {
			return nil, err
		}
		out.Bases = append(out.Bases, data)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an ensemble written by MarshalJSON.
func (se *StackedEnsemble) UnmarshalJSON(data []byte) error {
	var in ensembleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Bases) != len(in.BaseIDs) {
		return errors.New("ensemble base count does not match base ids")
	}
	se.Variant = in.Variant
	se.BaseIDs = in.BaseIDs
	se.Meta = in.Meta
	se.Bases = make([]Learner, len(in.Bases))
	for i, raw := range in.Bases {
		l, err := unmarshalLearner(raw)
		if err != nil {
			return fmt.Errorf("ensemble base %s: %w", in.BaseIDs[i], err)
		}
		se.Bases[i] = l
	}
	return nil
}

// hstack concatenates matrices with equal row counts side by side.
func hstack(ms []*mat.Dense) *mat.Dense {
	rows, _ := ms[0].Dims()
	width := 0
	for _, m := range ms {
		_, c := m.Dims()
		width += c
	}
	out := mat.NewDense(rows, width, nil)
	offset := 0
	for _, m := range ms {
		_, c := m.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(m)
		offset += c
	}
	return out
}
