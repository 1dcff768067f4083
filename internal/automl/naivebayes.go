// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// NaiveBayesParams configures Gaussian naive Bayes.
type NaiveBayesParams struct {
	// VarSmoothing is added to every variance, scaled by the largest
	// input variance.
	VarSmoothing float64 `json:"var_smoothing"`

	// Laplace smooths class priors.
	Laplace float64 `json:"laplace"`
}

// DefaultNaiveBayesParams returns the parameters of the default candidate.
func DefaultNaiveBayesParams() NaiveBayesParams {
	return NaiveBayesParams{VarSmoothing: 1e-9, Laplace: 0}
}

// NaiveBayes is a Gaussian naive Bayes classifier.
type NaiveBayes struct {
	Params    NaiveBayesParams `json:"params"`
	LogPriors []float64        `json:"log_priors"`
	Means     [][]float64      `json:"means"`
	Variances [][]float64      `json:"variances"`
}

// NewNaiveBayes creates an untrained naive Bayes learner.
func NewNaiveBayes(p NaiveBayesParams) *NaiveBayes {
	if p.VarSmoothing <= 0 {
		p.VarSmoothing = DefaultNaiveBayesParams().VarSmoothing
	}
	return &NaiveBayes{Params: p}
}

// Family implements Learner.
func (nb *NaiveBayes) Family() string { return FamilyNaiveBayes }

// Fit implements Learner.
func (nb *NaiveBayes) Fit(ctx context.Context, x *mat.Dense, y []int, nClasses int) error {
	n, p := x.Dims()

	byClass := make([][]int, nClasses)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	col := make([]float64, n)
	var maxVar float64
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		if v := stat.PopVariance(col, nil); v > maxVar {
			maxVar = v
		}
	}
	eps := nb.Params.VarSmoothing * math.Max(maxVar, 1)

	nb.LogPriors = make([]float64, nClasses)
	nb.Means = make([][]float64, nClasses)
	nb.Variances = make([][]float64, nClasses)
	for k := 0; k < nClasses; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows := byClass[k]
		nb.LogPriors[k] = math.Log((float64(len(rows)) + nb.Params.Laplace + minProb) /
			(float64(n) + nb.Params.Laplace*float64(nClasses)))
		nb.Means[k] = make([]float64, p)
		nb.Variances[k] = make([]float64, p)

		vals := make([]float64, len(rows))
		for j := 0; j < p; j++ {
			for i, r := range rows {
				vals[i] = x.At(r, j)
			}
			if len(rows) > 0 {
				nb.Means[k][j], nb.Variances[k][j] = stat.PopMeanVariance(vals, nil)
			}
			nb.Variances[k][j] += eps
		}
	}
	return nil
}

// PredictProba implements Learner.
func (nb *NaiveBayes) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	width := 0
	if len(nb.Means) > 0 {
		width = len(nb.Means[0])
	}
	if err := checkDims(FamilyNaiveBayes, x, width); err != nil {
		return nil, err
	}

	n, _ := x.Dims()
	k := len(nb.LogPriors)
	out := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		scores := out.RawRowView(i)
		for c := 0; c < k; c++ {
			s := nb.LogPriors[c]
			for j, v := range row {
				d := v - nb.Means[c][j]
				s -= 0.5 * (math.Log(2*math.Pi*nb.Variances[c][j]) + d*d/nb.Variances[c][j])
			}
			scores[c] = s
		}
		// log-sum-exp normalization
		lse := floats.LogSumExp(scores)
		for c := range scores {
			scores[c] = math.Exp(scores[c] - lse)
		}
	}
	return out, nil
}
