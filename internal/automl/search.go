// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/featuresmith/internal/frame"
)

var (
	// ErrNoModels is returned when the budget ends before any model finished.
	ErrNoModels = errors.New("no models trained")
	// ErrSingleClass is returned when the label has fewer than two classes.
	ErrSingleClass = errors.New("label needs at least two classes")
	// ErrTooFewRows is returned when there are fewer rows than folds.
	ErrTooFewRows = errors.New("fewer training rows than folds")
	// ErrMissingLabel is returned when a training row has no label.
	ErrMissingLabel = errors.New("training row has no label")
)

// Config controls the model search.
type Config struct {
	// MaxRuntime bounds the base model search. Zero means no limit.
	MaxRuntime time.Duration

	// MaxModels caps the number of base models; 0 is unlimited.
	MaxModels int

	NFolds int
	Seed   int64

	// IncludeFamilies restricts the search when non-empty.
	IncludeFamilies []string
	ExcludeFamilies []string

	SortMetric string

	// MaxCategoryLevels caps one-hot width per categorical column.
	MaxCategoryLevels int
}

// DefaultConfig returns the search defaults.
func DefaultConfig() Config {
	return Config{
		MaxRuntime:        10 * time.Minute,
		NFolds:            5,
		Seed:              1,
		SortMetric:        MetricMeanPerClassError,
		MaxCategoryLevels: 32,
	}
}

// Result is the outcome of a search.
type Result struct {
	Leaderboard *Leaderboard
	Models      map[string]*Model
	Leader      *Model

	// BudgetExhausted reports that the search stopped on its time budget.
	BudgetExhausted bool
}

// AutoML runs a seeded, cross-validated random grid search.
type AutoML struct {
	cfg       Config
	families  []string
	ensembles bool
	logger    zerolog.Logger
}

// New validates cfg and creates a search.
func New(cfg Config, logger zerolog.Logger) (*AutoML, error) {
	def := DefaultConfig()
	if cfg.NFolds == 0 {
		cfg.NFolds = def.NFolds
	}
	if cfg.NFolds < 2 {
		return nil, fmt.Errorf("nfolds must be at least 2, got %d", cfg.NFolds)
	}
	if cfg.SortMetric == "" {
		cfg.SortMetric = def.SortMetric
	}
	if _, err := (Metrics{}).Get(cfg.SortMetric); err != nil {
		return nil, err
	}
	if cfg.MaxCategoryLevels <= 0 {
		cfg.MaxCategoryLevels = def.MaxCategoryLevels
	}

	excluded := make(map[string]bool, len(cfg.ExcludeFamilies))
	for _, fam := range cfg.ExcludeFamilies {
		if err := CheckFamily(fam); err != nil && !errors.Is(err, ErrUnsupportedFamily) {
			return nil, err
		}
		excluded[fam] = true
	}

	candidates := append(append([]string(nil), BaseFamilies...), FamilyStackedEnsemble)
	if len(cfg.IncludeFamilies) > 0 {
		candidates = nil
		for _, fam := range cfg.IncludeFamilies {
			if err := CheckFamily(fam); err != nil {
				return nil, err
			}
			candidates = append(candidates, fam)
		}
	}

	a := &AutoML{cfg: cfg, logger: logger.With().Str("component", "automl").Logger()}
	for _, fam := range candidates {
		switch {
		case excluded[fam]:
		case fam == FamilyStackedEnsemble:
			a.ensembles = true
		default:
			a.families = append(a.families, fam)
		}
	}
	if len(a.families) == 0 {
		return nil, fmt.Errorf("%w: every base family is excluded", ErrNoModels)
	}
	return a, nil
}

// trained is a fitted base model with its cross-validated predictions.
type trained struct {
	model *Model
	oof   *mat.Dense
}

// Train searches models that predict label from the other columns of f.
// key is excluded from the inputs. When the time budget runs out the
// models finished so far are returned.
func (a *AutoML) Train(ctx context.Context, f *frame.Frame, key, label string) (*Result, error) {
	start := time.Now()

	classes, y, err := encodeLabels(f, label)
	if err != nil {
		return nil, err
	}
	n := len(y)
	if n < a.cfg.NFolds {
		return nil, fmt.Errorf("%w: %d rows, %d folds", ErrTooFewRows, n, a.cfg.NFolds)
	}

	pre := FitPreprocessor(f, a.cfg.MaxCategoryLevels, key, label)
	x, err := pre.Transform(f)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(a.cfg.Seed)) //nolint:gosec // math/rand is fine for fold assignment
	folds := assignFolds(n, a.cfg.NFolds, rng)
	plan := schedule(a.families, rng, a.cfg.Seed)

	a.logger.Info().
		Int("rows", n).
		Int("inputs", pre.Width()).
		Int("classes", len(classes)).
		Strs("families", a.families).
		Int("candidates", len(plan)).
		Dur("max_runtime", a.cfg.MaxRuntime).
		Msg("Model search started")

	searchCtx := ctx
	if a.cfg.MaxRuntime > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, a.cfg.MaxRuntime)
		defer cancel()
	}

	res := &Result{
		Leaderboard: NewLeaderboard(a.cfg.SortMetric),
		Models:      make(map[string]*Model),
	}
	var bases []trained
	counters := make(map[string]int)

	for _, cand := range plan {
		if a.cfg.MaxModels > 0 && len(bases) >= a.cfg.MaxModels {
			break
		}
		if searchCtx.Err() != nil {
			break
		}

		counters[cand.family]++
		id := fmt.Sprintf("%s_%d", familyPrefix[cand.family], counters[cand.family])

		t, err := a.crossValidate(searchCtx, id, cand, x, y, len(classes), folds)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if searchCtx.Err() != nil {
				break
			}
			a.logger.Warn().Err(err).Str("model_id", id).Msg("Candidate failed, skipping")
			continue
		}
		t.model.Classes = classes
		t.model.Preprocessor = pre
		bases = append(bases, t)
		a.add(res, t.model)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if searchCtx.Err() != nil {
		res.BudgetExhausted = true
		a.logger.Warn().Int("models", len(bases)).Msg("Time budget exhausted, returning partial leaderboard")
	}
	if len(bases) == 0 {
		return nil, ErrNoModels
	}

	if a.ensembles && len(bases) >= 2 {
		for _, variant := range []string{EnsembleAllModels, EnsembleBestOfFamily} {
			members := a.ensembleMembers(variant, bases, res.Leaderboard)
			if len(members) < 2 {
				continue
			}
			m, err := a.stack(ctx, variant, members, y, len(classes), folds)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				a.logger.Warn().Err(err).Str("variant", variant).Msg("Stacked ensemble failed, skipping")
				continue
			}
			m.Classes = classes
			m.Preprocessor = pre
			a.add(res, m)
		}
	}

	leader, _ := res.Leaderboard.Leader()
	res.Leader = res.Models[leader.ModelID]

	a.logger.Info().
		Int("models", res.Leaderboard.Len()).
		Str("leader", leader.ModelID).
		Str("sort_metric", a.cfg.SortMetric).
		Dur("duration", time.Since(start)).
		Msg("Model search finished")

	return res, nil
}

func (a *AutoML) add(res *Result, m *Model) {
	res.Models[m.ID] = m
	res.Leaderboard.Add(LeaderboardRow{
		ModelID:      m.ID,
		Family:       m.Family,
		Metrics:      m.Metrics,
		TrainingTime: m.TrainingTime,
	})
	score, _ := m.Metrics.Get(a.cfg.SortMetric)
	a.logger.Info().
		Str("model_id", m.ID).
		Str("family", m.Family).
		Float64(a.cfg.SortMetric, score).
		Dur("duration", m.TrainingTime).
		Msg("Model trained")
}

// crossValidate scores a candidate on out-of-fold predictions and refits
// it on every row.
func (a *AutoML) crossValidate(ctx context.Context, id string, cand candidate, x *mat.Dense, y []int, nClasses int, folds []int) (trained, error) {
	start := time.Now()
	n := len(y)
	oof := mat.NewDense(n, nClasses, nil)

	for k := 0; k < a.cfg.NFolds; k++ {
		fit, hold := splitFold(folds, k)
		l := cand.build()
		if err := l.Fit(ctx, selectRows(x, fit), selectLabels(y, fit), nClasses); err != nil {
			return trained{}, fmt.Errorf("%s fold %d: %w", id, k, err)
		}
		p, err := l.PredictProba(selectRows(x, hold))
		if err != nil {
			return trained{}, fmt.Errorf("%s fold %d: %w", id, k, err)
		}
		for i, r := range hold {
			oof.SetRow(r, p.RawRowView(i))
		}
	}

	final := cand.build()
	if err := final.Fit(ctx, x, y, nClasses); err != nil {
		return trained{}, fmt.Errorf("%s refit: %w", id, err)
	}

	a.logger.Debug().Str("model_id", id).Str("params", cand.String()).Msg("Candidate evaluated")

	return trained{
		model: &Model{
			ID:           id,
			Family:       cand.family,
			Learner:      final,
			Metrics:      evaluate(oof, y, nClasses),
			TrainingTime: time.Since(start),
		},
		oof: oof,
	}, nil
}

// ensembleMembers selects the base models of an ensemble variant in
// leaderboard order.
func (a *AutoML) ensembleMembers(variant string, bases []trained, lb *Leaderboard) []trained {
	byID := make(map[string]trained, len(bases))
	for _, b := range bases {
		byID[b.model.ID] = b
	}
	seen := make(map[string]bool)
	var out []trained
	for _, row := range lb.Rows {
		b, ok := byID[row.ModelID]
		if !ok {
			continue
		}
		if variant == EnsembleBestOfFamily {
			if seen[b.model.Family] {
				continue
			}
			seen[b.model.Family] = true
		}
		out = append(out, b)
	}
	return out
}

// stack builds a stacked ensemble. Its metalearner is cross-validated on
// the same folds over the level-one data, then refit on all of it.
func (a *AutoML) stack(ctx context.Context, variant string, members []trained, y []int, nClasses int, folds []int) (*Model, error) {
	start := time.Now()

	oofs := make([]*mat.Dense, len(members))
	ids := make([]string, len(members))
	learners := make([]Learner, len(members))
	for i, m := range members {
		oofs[i] = m.oof
		ids[i] = m.model.ID
		learners[i] = m.model.Learner
	}
	levelOne := hstack(oofs)

	oof := mat.NewDense(len(y), nClasses, nil)
	for k := 0; k < a.cfg.NFolds; k++ {
		fit, hold := splitFold(folds, k)
		meta := NewGLM(DefaultGLMParams())
		if err := meta.Fit(ctx, selectRows(levelOne, fit), selectLabels(y, fit), nClasses); err != nil {
			return nil, err
		}
		p, err := meta.PredictProba(selectRows(levelOne, hold))
		if err != nil {
			return nil, err
		}
		for i, r := range hold {
			oof.SetRow(r, p.RawRowView(i))
		}
	}

	se := &StackedEnsemble{Variant: variant, BaseIDs: ids, Bases: learners}
	if err := se.Fit(ctx, levelOne, y, nClasses); err != nil {
		return nil, err
	}

	id := "StackedEnsemble_AllModels"
	if variant == EnsembleBestOfFamily {
		id = "StackedEnsemble_BestOfFamily"
	}
	return &Model{
		ID:           id,
		Family:       FamilyStackedEnsemble,
		Learner:      se,
		Metrics:      evaluate(oof, y, nClasses),
		TrainingTime: time.Since(start),
	}, nil
}

// encodeLabels maps the label column to class indices over sorted classes.
func encodeLabels(f *frame.Frame, label string) ([]string, []int, error) {
	col, err := f.MustColumn(label)
	if err != nil {
		return nil, nil, err
	}

	set := make(map[string]struct{})
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Key(i)
		if !ok {
			return nil, nil, fmt.Errorf("%w: row %d", ErrMissingLabel, i)
		}
		set[v] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for v := range set {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	if len(classes) < 2 {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingleClass, classes)
	}

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := make([]int, col.Len())
	for i := range y {
		v, _ := col.Key(i)
		y[i] = index[v]
	}
	return classes, y, nil
}

// assignFolds shuffles rows into k folds of near-equal size.
func assignFolds(n, k int, rng *rand.Rand) []int {
	folds := make([]int, n)
	for i, r := range rng.Perm(n) {
		folds[r] = i % k
	}
	return folds
}

// splitFold returns the fitting and holdout rows of fold k.
func splitFold(folds []int, k int) (fit, hold []int) {
	for r, f := range folds {
		if f == k {
			hold = append(hold, r)
		} else {
			fit = append(fit, r)
		}
	}
	return fit, hold
}
