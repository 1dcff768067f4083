// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/featuresmith/internal/config"
	"github.com/tomtom215/featuresmith/internal/features"
	"github.com/tomtom215/featuresmith/internal/frame"
	"github.com/tomtom215/featuresmith/internal/loader"
	"github.com/tomtom215/featuresmith/internal/metrics"
	"github.com/tomtom215/featuresmith/internal/postprocess"
	"github.com/tomtom215/featuresmith/internal/registry"
)

// FeaturizeResult describes the artifacts of the featurize stage.
type FeaturizeResult struct {
	TrainRows int
	TestRows  int
	Features  int

	TrainMatrix string
	TestMatrix  string
	FeatureDefs string

	TrainSentinels postprocess.Report
	TestSentinels  postprocess.Report
}

func (p *Pipeline) featurize(ctx context.Context, rec *registry.RunRecord) (*FeaturizeResult, error) {
	start := time.Now()
	logger, own := stageLoggers(ctx)
	schema := p.cfg.Schema
	target, ok := schema.Table(schema.Target)
	if !ok {
		return nil, fmt.Errorf("target table %s is not declared", schema.Target)
	}

	ds, err := loader.New(p.src, p.cfg.Data, schema, logger).Load(ctx)
	if err != nil {
		return nil, err
	}
	for name, f := range ds.Tables {
		metrics.RecordRowsLoaded(name, f.Len())
	}
	metrics.RecordRowsLoaded(target.Name+"_test", ds.TestTarget.Len())

	trainES, err := ds.EntitySet(schema, loader.PartitionTrain, logger)
	if err != nil {
		return nil, err
	}
	testES, err := ds.EntitySet(schema, loader.PartitionTest, logger)
	if err != nil {
		return nil, err
	}

	synth := features.NewSynthesizer(logger)
	trainFM, defs, err := synth.DFS(ctx, trainES, featureOptions(schema.Target, p.cfg.Features))
	if err != nil {
		return nil, fmt.Errorf("synthesize training features: %w", err)
	}
	testFM, err := synth.CalculateFeatureMatrix(ctx, testES, schema.Target, defs)
	if err != nil {
		return nil, fmt.Errorf("calculate test features: %w", err)
	}

	ppOpts := postprocess.Options{
		UnknownTokens: p.cfg.Features.UnknownTokens,
		Exclude:       []string{target.Index, schema.Label},
	}
	trainReport := postprocess.ReplaceSentinels(trainFM, ppOpts)
	testReport := postprocess.ReplaceSentinels(testFM, ppOpts)
	metrics.RecordSentinels(string(loader.PartitionTrain), trainReport.TotalSentinel, trainReport.TotalTokens)
	metrics.RecordSentinels(string(loader.PartitionTest), testReport.TotalSentinel, testReport.TotalTokens)

	if err := attachLabels(trainFM, target.Index, ds.Labels); err != nil {
		return nil, err
	}

	res := &FeaturizeResult{
		TrainRows:      trainFM.Len(),
		TestRows:       testFM.Len(),
		Features:       len(defs),
		TrainMatrix:    p.cfg.Output.Path(p.cfg.Output.TrainMatrix),
		TestMatrix:     p.cfg.Output.Path(p.cfg.Output.TestMatrix),
		FeatureDefs:    p.cfg.Output.Path(p.cfg.Output.FeatureDefs),
		TrainSentinels: trainReport,
		TestSentinels:  testReport,
	}

	if err := p.src.WriteCSV(ctx, res.TrainMatrix, trainFM); err != nil {
		return nil, fmt.Errorf("write training matrix: %w", err)
	}
	if err := p.src.WriteCSV(ctx, res.TestMatrix, testFM); err != nil {
		return nil, fmt.Errorf("write test matrix: %w", err)
	}
	if err := features.SaveFeatures(res.FeatureDefs, schema.Target, defs); err != nil {
		return nil, fmt.Errorf("write feature definitions: %w", err)
	}
	metrics.SetFeatures(len(defs))

	rec.TrainRows = res.TrainRows
	rec.TestRows = res.TestRows
	rec.Features = res.Features
	rec.Artifacts["train_matrix"] = res.TrainMatrix
	rec.Artifacts["test_matrix"] = res.TestMatrix
	rec.Artifacts["feature_defs"] = res.FeatureDefs

	own.Info().
		Int("train_rows", res.TrainRows).
		Int("test_rows", res.TestRows).
		Int("features", res.Features).
		Int("train_sentinels", trainReport.TotalSentinel).
		Int("test_sentinels", testReport.TotalSentinel).
		Dur("duration", time.Since(start)).
		Msg("Feature matrices written")

	return res, nil
}

// featureOptions maps the features configuration onto synthesis options.
func featureOptions(target string, cfg config.FeaturesConfig) features.Options {
	opts := features.Options{
		TargetEntity:         target,
		AggPrimitives:        cfg.AggPrimitives,
		TransPrimitives:      cfg.TransPrimitives,
		WherePrimitives:      cfg.WherePrimitives,
		MaxDepth:             cfg.MaxDepth,
		Keywords:             cfg.Keywords,
		LongSessionThreshold: cfg.LongSessionThreshold,
		LongSessionInclusive: cfg.LongSessionInclusive,
	}
	for _, iv := range cfg.InterestingValues {
		opts.InterestingValues = append(opts.InterestingValues, features.InterestingValues{
			Entity:   iv.Table,
			Variable: iv.Column,
			Values:   iv.Values,
		})
	}
	return opts
}

// attachLabels appends the label column to fm, joined on the key column.
func attachLabels(fm *frame.Frame, key string, labels loader.Labels) error {
	keys, err := fm.MustColumn(key)
	if err != nil {
		return err
	}
	values := make([]string, fm.Len())
	for i := range values {
		k, ok := keys.Key(i)
		if !ok {
			return fmt.Errorf("%w: row %d has no key", ErrLabelMismatch, i)
		}
		label, ok := labels.ByKey[k]
		if !ok {
			return fmt.Errorf("%w: %s", ErrLabelMismatch, k)
		}
		values[i] = label
	}
	return fm.AddColumn(frame.NewString(labels.Column, frame.KindCategorical, values))
}
