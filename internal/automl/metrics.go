// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Supported sort metrics. All are lower-is-better.
const (
	MetricMeanPerClassError = "mean_per_class_error"
	MetricLogLoss           = "logloss"
	MetricMisclassification = "misclassification"
)

// probability floor applied before taking logarithms
const minProb = 1e-15

// Metrics are the cross-validated scores of one model.
type Metrics struct {
	MeanPerClassError float64 `json:"mean_per_class_error"`
	LogLoss           float64 `json:"logloss"`
	Misclassification float64 `json:"misclassification"`
}

// Get returns the named metric.
func (m Metrics) Get(name string) (float64, error) {
	switch name {
	case MetricMeanPerClassError:
		return m.MeanPerClassError, nil
	case MetricLogLoss:
		return m.LogLoss, nil
	case MetricMisclassification:
		return m.Misclassification, nil
	default:
		return 0, fmt.Errorf("unknown sort metric %q", name)
	}
}

// evaluate scores class probabilities against integer labels.
func evaluate(probs *mat.Dense, y []int, nClasses int) Metrics {
	n := len(y)
	if n == 0 {
		return Metrics{}
	}

	perClass := make([]int, nClasses)
	perClassErr := make([]int, nClasses)
	var logloss float64
	var wrong int

	for i, label := range y {
		row := probs.RawRowView(i)
		p := row[label]
		if p < minProb {
			p = minProb
		}
		logloss -= math.Log(p)

		perClass[label]++
		if floats.MaxIdx(row) != label {
			wrong++
			perClassErr[label]++
		}
	}

	var mpce float64
	var present int
	for k := range perClass {
		if perClass[k] == 0 {
			continue
		}
		mpce += float64(perClassErr[k]) / float64(perClass[k])
		present++
	}
	if present > 0 {
		mpce /= float64(present)
	}

	return Metrics{
		MeanPerClassError: mpce,
		LogLoss:           logloss / float64(n),
		Misclassification: float64(wrong) / float64(n),
	}
}

// softmaxRows normalizes each row of z in place into probabilities.
func softmaxRows(z *mat.Dense) {
	r, _ := z.Dims()
	for i := 0; i < r; i++ {
		row := z.RawRowView(i)
		m := floats.Max(row)
		var sum float64
		for j, v := range row {
			row[j] = math.Exp(v - m)
			sum += row[j]
		}
		floats.Scale(1/sum, row)
	}
}
