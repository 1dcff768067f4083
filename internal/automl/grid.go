// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"fmt"
	"math/rand"
)

// candidate is one point of a family's hyperparameter grid.
type candidate struct {
	family string
	params any
	build  func() Learner
}

func (c candidate) String() string {
	return fmt.Sprintf("%s%+v", c.family, c.params)
}

var familyPrefix = map[string]string{
	FamilyGLM:        "GLM",
	FamilyNaiveBayes: "NaiveBayes",
	FamilyDRF:        "DRF",
	FamilyXRT:        "XRT",
}

// familyGrid lists a family's candidates: the default first, then the rest
// of the grid in seeded random order.
func familyGrid(family string, rng *rand.Rand, seed int64) []candidate {
	var grid []candidate
	switch family {
	case FamilyGLM:
		def := DefaultGLMParams()
		grid = append(grid, glmCandidate(def))
		for _, lambda := range []float64{0, 1e-4, 1e-2, 1e-1, 1} {
			for _, iters := range []int{100, 200, 400} {
				grid = append(grid, glmCandidate(GLMParams{Lambda: lambda, Iterations: iters}))
			}
		}
	case FamilyNaiveBayes:
		grid = append(grid, nbCandidate(DefaultNaiveBayesParams()))
		for _, vs := range []float64{1e-6, 1e-3, 1e-1} {
			for _, laplace := range []float64{0, 1} {
				grid = append(grid, nbCandidate(NaiveBayesParams{VarSmoothing: vs, Laplace: laplace}))
			}
		}
	case FamilyDRF, FamilyXRT:
		def := DefaultForestParams()
		def.Seed = seed
		grid = append(grid, forestCandidate(family, def))
		n := 1
		for _, ntrees := range []int{25, 100} {
			for _, depth := range []int{6, 20} {
				for _, minRows := range []int{1, 5} {
					for _, mtries := range []float64{0, 0.5} {
						p := ForestParams{
							NTrees:     ntrees,
							MaxDepth:   depth,
							MinRows:    minRows,
							MTries:     mtries,
							SampleRate: def.SampleRate,
							Seed:       seed + int64(n),
						}
						grid = append(grid, forestCandidate(family, p))
						n++
					}
				}
			}
		}
	}

	rest := grid[1:]
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	return grid
}

func glmCandidate(p GLMParams) candidate {
	return candidate{family: FamilyGLM, params: p, build: func() Learner { return NewGLM(p) }}
}

func nbCandidate(p NaiveBayesParams) candidate {
	return candidate{family: FamilyNaiveBayes, params: p, build: func() Learner { return NewNaiveBayes(p) }}
}

func forestCandidate(family string, p ForestParams) candidate {
	return candidate{family: family, params: p, build: func() Learner { return NewForest(family, p) }}
}

// schedule interleaves the family grids round-robin so that every family
// gets a model before any family gets a second one.
func schedule(families []string, rng *rand.Rand, seed int64) []candidate {
	grids := make([][]candidate, len(families))
	longest := 0
	for i, fam := range families {
		grids[i] = familyGrid(fam, rng, seed)
		longest = max(longest, len(grids[i]))
	}

	var out []candidate
	for round := 0; round < longest; round++ {
		for _, g := range grids {
			if round < len(g) {
				out = append(out, g[round])
			}
		}
	}
	return out
}
