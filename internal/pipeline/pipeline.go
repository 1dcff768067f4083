// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/featuresmith/internal/config"
	"github.com/tomtom215/featuresmith/internal/loader"
	"github.com/tomtom215/featuresmith/internal/logging"
	"github.com/tomtom215/featuresmith/internal/metrics"
	"github.com/tomtom215/featuresmith/internal/registry"
	"github.com/tomtom215/featuresmith/internal/submission"
)

// Stage names used in run records, logs and metrics.
const (
	StageFeaturize = "featurize"
	StageTrain     = "train"
	StageRun       = "run"
)

// leaderModelName is the storage name of the persisted leader.
const leaderModelName = "leader"

// ErrLabelMismatch is returned when a training matrix row has no label.
var ErrLabelMismatch = errors.New("feature row has no label")

// Source reads the raw and intermediate CSV files and writes the artifacts.
type Source interface {
	loader.CSVReader
	submission.Files
}

// Pipeline runs the featurize and train stages.
type Pipeline struct {
	cfg  *config.Config
	src  Source
	runs registry.Store

	// logger is the root logger. Each stage stores it in its context, and
	// every component logger is derived from there so its lines carry the
	// run id and stage.
	logger zerolog.Logger
}

// New creates a pipeline. runs receives one record per invocation.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg *config.Config, src Source, runs registry.Store, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		src:    src,
		runs:   runs,
		logger: logger,
	}
}

// stageLoggers returns the logger handed to components for the stage in ctx
// and the pipeline's own logger.
func stageLoggers(ctx context.Context) (components, own zerolog.Logger) {
	components = logging.CtxWith(ctx).Logger()
	own = components.With().Str("component", "pipeline").Logger()
	return components, own
}

// Featurize synthesizes the train and test feature matrices and writes them
// together with the feature definitions.
func (p *Pipeline) Featurize(ctx context.Context) (*FeaturizeResult, error) {
	var res *FeaturizeResult
	err := p.track(ctx, StageFeaturize, func(ctx context.Context, rec *registry.RunRecord) error {
		var err error
		res, err = p.featurize(ctx, rec)
		return err
	})
	return res, err
}

// Train searches models over the written feature matrices, persists the
// leader and writes the submission.
func (p *Pipeline) Train(ctx context.Context) (*TrainResult, error) {
	var res *TrainResult
	err := p.track(ctx, StageTrain, func(ctx context.Context, rec *registry.RunRecord) error {
		var err error
		res, err = p.train(ctx, rec)
		return err
	})
	return res, err
}

// Run executes Featurize then Train as one recorded run.
func (p *Pipeline) Run(ctx context.Context) (*FeaturizeResult, *TrainResult, error) {
	var (
		fres *FeaturizeResult
		tres *TrainResult
	)
	err := p.track(ctx, StageRun, func(ctx context.Context, rec *registry.RunRecord) error {
		var err error
		if fres, err = p.featurize(logging.ContextWithStage(ctx, StageFeaturize), rec); err != nil {
			return err
		}
		tres, err = p.train(logging.ContextWithStage(ctx, StageTrain), rec)
		return err
	})
	return fres, tres, err
}

// Runs lists recorded runs, newest first.
func (p *Pipeline) Runs(ctx context.Context, limit int) ([]registry.RunRecord, error) {
	return p.runs.List(ctx, limit)
}

// track records one stage invocation in the registry and in metrics.
func (p *Pipeline) track(ctx context.Context, stage string, fn func(context.Context, *registry.RunRecord) error) error {
	id := logging.RunIDFromContext(ctx)
	if id == "" {
		id = logging.GenerateRunID()
		ctx = logging.ContextWithRunID(ctx, id)
	}
	ctx = logging.ContextWithStage(logging.ContextWithLogger(ctx, p.logger), stage)
	_, logger := stageLoggers(ctx)

	rec := &registry.RunRecord{
		ID:        id,
		Stage:     stage,
		Status:    registry.StatusRunning,
		StartedAt: time.Now().UTC(),
		Artifacts: make(map[string]string),
	}
	if err := p.runs.Save(ctx, rec); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}

	logger.Info().Msg("Stage started")

	start := time.Now()
	err := fn(ctx, rec)
	elapsed := time.Since(start)
	metrics.RecordStage(stage, elapsed, err)

	rec.FinishedAt = time.Now().UTC()
	if err != nil {
		rec.Status = registry.StatusFailed
		rec.Error = err.Error()
		logger.Error().Err(err).Dur("duration", elapsed).Msg("Stage failed")
	} else {
		rec.Status = registry.StatusSucceeded
		logger.Info().Dur("duration", elapsed).Msg("Stage completed")
	}

	// The final record is written even when ctx was cancelled.
	if saveErr := p.runs.Save(context.WithoutCancel(ctx), rec); saveErr != nil {
		logger.Warn().Err(saveErr).Msg("Failed to record run result")
	}

	if path := p.cfg.Metrics.Textfile; path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			logger.Warn().Err(werr).Str("path", path).Msg("Failed to write metrics textfile")
		}
	}

	return err
}
