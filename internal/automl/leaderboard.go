// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"sort"
	"time"

	"github.com/tomtom215/featuresmith/internal/frame"
)

// LeaderboardRow summarizes one candidate.
type LeaderboardRow struct {
	ModelID      string        `json:"model_id"`
	Family       string        `json:"family"`
	Metrics      Metrics       `json:"metrics"`
	TrainingTime time.Duration `json:"training_time"`
}

// Leaderboard ranks candidates by a sort metric, lowest first.
type Leaderboard struct {
	SortMetric string           `json:"sort_metric"`
	Rows       []LeaderboardRow `json:"rows"`
}

// NewLeaderboard creates an empty leaderboard.
func NewLeaderboard(sortMetric string) *Leaderboard {
	return &Leaderboard{SortMetric: sortMetric}
}

// Add inserts a row and keeps the board sorted. Equal scores rank by model id.
func (lb *Leaderboard) Add(row LeaderboardRow) {
	lb.Rows = append(lb.Rows, row)
	sort.SliceStable(lb.Rows, func(i, j int) bool {
		a, _ := lb.Rows[i].Metrics.Get(lb.SortMetric)
		b, _ := lb.Rows[j].Metrics.Get(lb.SortMetric)
		if a != b {
			return a < b
		}
		return lb.Rows[i].ModelID < lb.Rows[j].ModelID
	})
}

// Len returns the number of ranked models.
func (lb *Leaderboard) Len() int { return len(lb.Rows) }

// Leader returns the best row.
func (lb *Leaderboard) Leader() (LeaderboardRow, bool) {
	if len(lb.Rows) == 0 {
		return LeaderboardRow{}, false
	}
	return lb.Rows[0], true
}

// Frame renders the leaderboard as a table for CSV export.
func (lb *Leaderboard) Frame() *frame.Frame {
	n := len(lb.Rows)
	ids := make([]string, n)
	families := make([]string, n)
	mpce := make([]float64, n)
	logloss := make([]float64, n)
	miscl := make([]float64, n)
	secs := make([]float64, n)
	for i, r := range lb.Rows {
		ids[i] = r.ModelID
		families[i] = r.Family
		mpce[i] = r.Metrics.MeanPerClassError
		logloss[i] = r.Metrics.LogLoss
		miscl[i] = r.Metrics.Misclassification
		secs[i] = r.TrainingTime.Seconds()
	}
	// Columns are distinct and equally long.
	f, _ := frame.New(
		frame.NewString("model_id", frame.KindCategorical, ids),
		frame.NewString("family", frame.KindCategorical, families),
		frame.NewNumeric(MetricMeanPerClassError, mpce),
		frame.NewNumeric(MetricLogLoss, logloss),
		frame.NewNumeric(MetricMisclassification, miscl),
		frame.NewNumeric("training_time_seconds", secs),
	)
	return f
}
