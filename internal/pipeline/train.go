// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/featuresmith/internal/automl"
	"github.com/tomtom215/featuresmith/internal/automl/storage"
	"github.com/tomtom215/featuresmith/internal/config"
	"github.com/tomtom215/featuresmith/internal/database"
	"github.com/tomtom215/featuresmith/internal/features"
	"github.com/tomtom215/featuresmith/internal/frame"
	"github.com/tomtom215/featuresmith/internal/metrics"
	"github.com/tomtom215/featuresmith/internal/registry"
	"github.com/tomtom215/featuresmith/internal/submission"
)

// TrainResult describes the artifacts of the train stage.
type TrainResult struct {
	Leaderboard     *automl.Leaderboard
	Leader          string
	LeaderScore     float64
	BudgetExhausted bool

	ModelVersion int
	ModelPath    string

	LeaderboardPath string
	Submission      submission.Summary
}

func (p *Pipeline) train(ctx context.Context, rec *registry.RunRecord) (*TrainResult, error) {
	start := time.Now()
	logger, own := stageLoggers(ctx)
	schema := p.cfg.Schema
	out := p.cfg.Output
	target, ok := schema.Table(schema.Target)
	if !ok {
		return nil, fmt.Errorf("target table %s is not declared", schema.Target)
	}

	defsPath := out.Path(out.FeatureDefs)
	defsTarget, defs, err := features.LoadFeatures(defsPath)
	if err != nil {
		return nil, err
	}
	if defsTarget != schema.Target {
		return nil, fmt.Errorf("feature definitions in %s target %s, configured target is %s",
			defsPath, defsTarget, schema.Target)
	}

	// Matrices are read back with the kinds their definitions declare, so
	// the CSV round trip cannot reinterpret a categorical code as a number.
	kinds := matrixKinds(defs, target.Index, schema.Label)
	trainFM, err := p.src.ReadCSV(ctx, database.TableSource{
		Path:    out.Path(out.TrainMatrix),
		Kinds:   kinds,
		OrderBy: target.Index,
	})
	if err != nil {
		return nil, fmt.Errorf("read training matrix: %w", err)
	}
	testFM, err := p.src.ReadCSV(ctx, database.TableSource{
		Path:    out.Path(out.TestMatrix),
		Kinds:   kinds,
		OrderBy: target.Index,
	})
	if err != nil {
		return nil, fmt.Errorf("read test matrix: %w", err)
	}

	search, err := automl.New(automlConfig(p.cfg.AutoML), logger)
	if err != nil {
		return nil, err
	}
	result, err := search.Train(ctx, trainFM, target.Index, schema.Label)
	if err != nil {
		return nil, fmt.Errorf("model search: %w", err)
	}

	lb := result.Leaderboard
	for _, row := range lb.Rows {
		metrics.RecordModel(row.Family)
	}
	leaderScore, err := result.Leader.Metrics.Get(lb.SortMetric)
	if err != nil {
		return nil, err
	}
	metrics.SetLeaderMetric(lb.SortMetric, leaderScore)
	if result.BudgetExhausted {
		metrics.RecordBudgetExhausted()
	}

	res := &TrainResult{
		Leaderboard:     lb,
		Leader:          result.Leader.ID,
		LeaderScore:     leaderScore,
		BudgetExhausted: result.BudgetExhausted,
		LeaderboardPath: out.Path(out.Leaderboard),
	}
	if err := p.src.WriteCSV(ctx, res.LeaderboardPath, lb.Frame()); err != nil {
		return nil, fmt.Errorf("write leaderboard: %w", err)
	}

	store, err := storage.NewStore(out.Path(out.ModelDir))
	if err != nil {
		return nil, err
	}
	meta, err := automl.SaveModel(ctx, store, leaderModelName, result.Leader, lb.SortMetric, trainFM.Len())
	if err != nil {
		return nil, err
	}
	res.ModelVersion = meta.Version
	res.ModelPath = out.Path(out.ModelDir)
	if out.KeepModels > 0 {
		if err := store.Prune(ctx, leaderModelName, out.KeepModels); err != nil {
			return nil, fmt.Errorf("prune model versions: %w", err)
		}
	}

	// Scoring goes through the persisted model so that the submission
	// reflects exactly what was saved.
	leader, _, err := automl.LoadModel(ctx, store, leaderModelName, meta.Version)
	if err != nil {
		return nil, err
	}
	preds, err := leader.Predict(testFM, target.Index)
	if err != nil {
		return nil, fmt.Errorf("score test matrix: %w", err)
	}

	summary, err := submission.NewWriter(p.src, logger).Write(ctx, preds, submission.Options{
		TestFile:    p.cfg.Data.Resolve(target.TestFile),
		KeyColumn:   target.Index,
		Path:        out.Path(out.Submission),
		KeyHeader:   out.SubmissionKey,
		LabelHeader: out.SubmissionLabel,
		TopK:        out.SubmissionTopK,
	})
	if err != nil {
		return nil, err
	}
	res.Submission = summary

	rec.Models = lb.Len()
	rec.Leader = res.Leader
	rec.SortMetric = lb.SortMetric
	rec.LeaderScore = leaderScore
	rec.BudgetExhausted = res.BudgetExhausted
	rec.ModelVersion = res.ModelVersion
	rec.Artifacts["leaderboard"] = res.LeaderboardPath
	rec.Artifacts["model_dir"] = res.ModelPath
	rec.Artifacts["submission"] = summary.Path

	own.Info().
		Int("models", lb.Len()).
		Str("leader", res.Leader).
		Str("sort_metric", lb.SortMetric).
		Float64("leader_score", leaderScore).
		Bool("budget_exhausted", res.BudgetExhausted).
		Int("model_version", res.ModelVersion).
		Int("submission_rows", summary.Rows).
		Dur("duration", time.Since(start)).
		Msg("Model trained and submission written")

	return res, nil
}

// matrixKinds maps every feature matrix column to its kind. The key is read
// as a category whatever its raw type.
func matrixKinds(defs []*features.Feature, key, label string) map[string]frame.Kind {
	kinds := make(map[string]frame.Kind, len(defs)+2)
	for _, d := range defs {
		kinds[d.Name] = d.Kind
	}
	kinds[key] = frame.KindCategorical
	kinds[label] = frame.KindCategorical
	return kinds
}

// automlConfig maps the automl configuration onto search options.
func automlConfig(cfg config.AutoMLConfig) automl.Config {
	return automl.Config{
		MaxRuntime:        cfg.MaxRuntime,
		MaxModels:         cfg.MaxModels,
		NFolds:            cfg.NFolds,
		Seed:              cfg.Seed,
		IncludeFamilies:   cfg.IncludeFamilies,
		ExcludeFamilies:   cfg.ExcludeFamilies,
		SortMetric:        cfg.SortMetric,
		MaxCategoryLevels: cfg.MaxCategoryLevels,
	}
}
