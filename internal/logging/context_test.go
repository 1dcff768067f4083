// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRunIDContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if id := RunIDFromContext(ctx); id != "" {
		t.Errorf("expected empty run ID, got %s", id)
	}

	ctx = ContextWithRunID(ctx, "run-123")
	if id := RunIDFromContext(ctx); id != "run-123" {
		t.Errorf("expected 'run-123', got '%s'", id)
	}
}

func TestContextWithNewRunID(t *testing.T) {
	t.Parallel()

	ctx := ContextWithNewRunID(context.Background())

	id := RunIDFromContext(ctx)
	if len(id) != 36 {
		t.Errorf("expected 36-character run ID, got %q", id)
	}
}

func TestStageContext(t *testing.T) {
	t.Parallel()

	ctx := ContextWithStage(context.Background(), "featurize")
	if got := StageFromContext(ctx); got != "featurize" {
		t.Errorf("StageFromContext() = %q, want featurize", got)
	}
}

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	customLogger := zerolog.New(&buf).With().Str("custom", "field").Logger()

	ctx := ContextWithLogger(context.Background(), customLogger)
	logger := LoggerFromContext(ctx)
	logger.Info().Msg("test")

	if !strings.Contains(buf.String(), "custom") {
		t.Errorf("expected custom field in output: %s", buf.String())
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := ContextWithRunID(context.Background(), "run-456")
	ctx = ContextWithStage(ctx, "train")

	Ctx(ctx).Info().Msg("context test")

	output := buf.String()
	if !strings.Contains(output, `"run_id":"run-456"`) {
		t.Errorf("expected run_id in output: %s", output)
	}
	if !strings.Contains(output, `"stage":"train"`) {
		t.Errorf("expected stage in output: %s", output)
	}
}

func TestCtx_ContextLoggerWinsOverGlobal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), zerolog.New(&buf))
	ctx = ContextWithRunID(ctx, "run-789")
	ctx = ContextWithStage(ctx, "featurize")

	logger := CtxWith(ctx).Str("component", "loader").Logger()
	logger.Info().Msg("table loaded")

	for _, want := range []string{`"run_id":"run-789"`, `"stage":"featurize"`, `"component":"loader"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %s: %s", want, buf.String())
		}
	}
}
