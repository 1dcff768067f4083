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

// Model families.
const (
	FamilyGLM             = "glm"
	FamilyNaiveBayes      = "naive_bayes"
	FamilyDRF             = "drf"
	FamilyXRT             = "xrt"
	FamilyStackedEnsemble = "stacked_ensemble"
)

// BaseFamilies are searched in this order.
var BaseFamilies = []string{FamilyGLM, FamilyNaiveBayes, FamilyDRF, FamilyXRT}

// unsupportedFamilies are recognized names that this search cannot train.
var unsupportedFamilies = map[string]bool{
	"gbm":           true,
	"xgboost":       true,
	"deep_learning": true,
	"deeplearning":  true,
}

var (
	// ErrUnknownFamily is returned for a family name nobody recognizes.
	ErrUnknownFamily = errors.New("unknown model family")
	// ErrUnsupportedFamily is returned for gradient boosting and deep learning.
	ErrUnsupportedFamily = errors.New("model family not supported")
	// ErrNotFitted is returned when predicting with an untrained learner.
	ErrNotFitted = errors.New("learner not fitted")
)

// Learner is a multiclass classifier over an encoded matrix.
type Learner interface {
	// Family returns the model family name.
	Family() string

	// Fit trains on x with integer labels in [0, nClasses).
	Fit(ctx context.Context, x *mat.Dense, y []int, nClasses int) error

	// PredictProba returns one probability row per input row.
	PredictProba(x *mat.Dense) (*mat.Dense, error)
}

// CheckFamily reports whether name is a trainable family.
func CheckFamily(name string) error {
	switch name {
	case FamilyGLM, FamilyNaiveBayes, FamilyDRF, FamilyXRT, FamilyStackedEnsemble:
		return nil
	}
	if unsupportedFamilies[name] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFamily, name)
	}
	return fmt.Errorf("%w: %s", ErrUnknownFamily, name)
}

// learnerState is the serialized form of any learner.
type learnerState struct {
	Family string          `json:"family"`
	State  json.RawMessage `json:"state"`
}

// marshalLearner encodes a learner with its family tag.
func marshalLearner(l Learner) ([]byte, error) {
	state, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode %s learner: %w", l.Family(), err)
	}
	return json.Marshal(learnerState{Family: l.Family(), State: state})
}

// unmarshalLearner decodes a learner written by marshalLearner.
func unmarshalLearner(data []byte) (Learner, error) {
	var ls learnerState
	if err := json.Unmarshal(data, &ls); err != nil {
		return nil, fmt.Errorf("decode learner: %w", err)
	}

	var l Learner
	switch ls.Family {
	case FamilyGLM:
		l = &GLM{}
	case FamilyNaiveBayes:
		l = &NaiveBayes{}
	case FamilyDRF, FamilyXRT:
		l = &Forest{}
	case FamilyStackedEnsemble:
		l = &StackedEnsemble{}
	default:
		return nil, fmt.Errorf("decode learner: %w: %s", ErrUnknownFamily, ls.Family)
	}
	if err := json.Unmarshal(ls.State, l); err != nil {
		return nil, fmt.Errorf("decode %s learner: %w", ls.Family, err)
	}
	return l, nil
}

// denseState is a JSON-friendly matrix.
type denseState struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

func toState(m *mat.Dense) denseState {
	if m == nil {
		return denseState{}
	}
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return denseState{Rows: r, Cols: c, Data: data}
}

func (s denseState) dense() *mat.Dense {
	if s.Rows == 0 || s.Cols == 0 {
		return nil
	}
	return mat.NewDense(s.Rows, s.Cols, append([]float64(nil), s.Data...))
}

// selectRows copies the given rows of x into a new matrix.
func selectRows(x *mat.Dense, rows []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		out.SetRow(i, x.RawRowView(r))
	}
	return out
}

// selectLabels returns y at the given rows.
func selectLabels(y, rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = y[r]
	}
	return out
}

// checkDims validates that x has the width a learner was fitted on.
func checkDims(family string, x *mat.Dense, width int) error {
	if width == 0 {
		return fmt.Errorf("%s: %w", family, ErrNotFitted)
	}
	if _, c := x.Dims(); c != width {
		return fmt.Errorf("%s: %w: %d inputs, trained on %d", family, ErrSchemaMismatch, c, width)
	}
	return nil
}
