// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// GLMParams configures multinomial logistic regression.
type GLMParams struct {
	// Lambda is the L2 penalty on non-intercept weights.
	Lambda float64 `json:"lambda"`

	// Iterations is the number of full-batch gradient steps.
	Iterations int `json:"iterations"`
}

// DefaultGLMParams returns the parameters of the default GLM candidate.
func DefaultGLMParams() GLMParams {
	return GLMParams{Lambda: 1e-3, Iterations: 200}
}

// GLM is a multinomial logistic regression trained by batch gradient descent
// on standardized inputs. The last weight row is the intercept.
type GLM struct {
	Params  GLMParams  `json:"params"`
	Means   []float64  `json:"means"`
	Scales  []float64  `json:"scales"`
	Weights denseState `json:"weights"`

	w *mat.Dense
}

// NewGLM creates an untrained GLM.
func NewGLM(p GLMParams) *GLM {
	if p.Iterations <= 0 {
		p.Iterations = DefaultGLMParams().Iterations
	}
	if p.Lambda < 0 {
		p.Lambda = 0
	}
	return &GLM{Params: p}
}

// Family implements Learner.
func (g *GLM) Family() string { return FamilyGLM }

// Fit implements Learner.
func (g *GLM) Fit(ctx context.Context, x *mat.Dense, y []int, nClasses int) error {
	n, p := x.Dims()

	g.Means = make([]float64, p)
	g.Scales = make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		mean, variance := stat.PopMeanVariance(col, nil)
		g.Means[j] = mean
		g.Scales[j] = 1
		if sd := math.Sqrt(variance); sd > 1e-12 {
			g.Scales[j] = sd
		}
	}
	xa := g.augment(x)

	target := mat.NewDense(n, nClasses, nil)
	for i, label := range y {
		target.Set(i, label, 1)
	}

	// Step size from the Lipschitz bound of the softmax loss on
	// standardized inputs (unit variance per column plus the intercept).
	step := 1 / (0.5*float64(p+1) + g.Params.Lambda)

	w := mat.NewDense(p+1, nClasses, nil)
	var z, grad, penalty mat.Dense
	for it := 0; it < g.Params.Iterations; it++ {
		if it%10 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		z.Mul(xa, w)
		softmaxRows(&z)
		z.Sub(&z, target)
		grad.Mul(xa.T(), &z)
		grad.Scale(1/float64(n), &grad)

		if g.Params.Lambda > 0 {
			penalty.Scale(g.Params.Lambda, w)
			for k := 0; k < nClasses; k++ {
				penalty.Set(p, k, 0)
			}
			grad.Add(&grad, &penalty)
		}
		grad.Scale(step, &grad)
		w.Sub(w, &grad)
	}

	g.w = w
	g.Weights = toState(w)
	return nil
}

// PredictProba implements Learner.
func (g *GLM) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	if g.w == nil {
		g.w = g.Weights.dense()
	}
	if err := checkDims(FamilyGLM, x, len(g.Means)); err != nil {
		return nil, err
	}
	if g.w == nil {
		return nil, ErrNotFitted
	}
	var z mat.Dense
	z.Mul(g.augment(x), g.w)
	softmaxRows(&z)
	return &z, nil
}

// augment standardizes x and appends the intercept column.
func (g *GLM) augment(x *mat.Dense) *mat.Dense {
	n, p := x.Dims()
	xa := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		src := x.RawRowView(i)
		dst := xa.RawRowView(i)
		for j, v := range src {
			dst[j] = (v - g.Means[j]) / g.Scales[j]
		}
		dst[p] = 1
	}
	return xa
}
