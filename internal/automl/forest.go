// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package automl

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ForestParams configures a random forest (drf) or extremely randomized
// trees (xrt).
type ForestParams struct {
	NTrees   int `json:"ntrees"`
	MaxDepth int `json:"max_depth"`
	MinRows  int `json:"min_rows"`

	// MTries is the fraction of inputs considered per split; 0 uses sqrt(p).
	MTries float64 `json:"mtries"`

	// SampleRate is the bootstrap fraction per tree (drf only).
	SampleRate float64 `json:"sample_rate"`

	Seed int64 `json:"seed"`
}

// DefaultForestParams returns the parameters of the default candidate.
func DefaultForestParams() ForestParams {
	return ForestParams{NTrees: 50, MaxDepth: 12, MinRows: 2, SampleRate: 0.632}
}

// treeNode is a split or, when Feature is -1, a leaf.
type treeNode struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Dist      []float64 `json:"d,omitempty"`
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *tree) predict(row []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Dist
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is an ensemble of CART classification trees. Extremely randomized
// trees draw one random threshold per candidate input and skip the bootstrap.
type Forest struct {
	Kind    string       `json:"kind"`
	Params  ForestParams `json:"params"`
	Width   int          `json:"width"`
	Classes int          `json:"classes"`
	Trees   []tree       `json:"trees"`
}

// NewForest creates an untrained forest of the given family (drf or xrt).
func NewForest(family string, p ForestParams) *Forest {
	def := DefaultForestParams()
	if p.NTrees <= 0 {
		p.NTrees = def.NTrees
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = def.MaxDepth
	}
	if p.MinRows <= 0 {
		p.MinRows = def.MinRows
	}
	if p.SampleRate <= 0 || p.SampleRate > 1 {
		p.SampleRate = def.SampleRate
	}
	return &Forest{Kind: family, Params: p}
}

// Family implements Learner.
func (f *Forest) Family() string { return f.Kind }

// Fit implements Learner.
func (f *Forest) Fit(ctx context.Context, x *mat.Dense, y []int, nClasses int) error {
	n, p := x.Dims()
	f.Width = p
	f.Classes = nClasses
	f.Trees = make([]tree, 0, f.Params.NTrees)

	mtries := int(math.Round(f.Params.MTries * float64(p)))
	if f.Params.MTries <= 0 {
		mtries = int(math.Sqrt(float64(p)))
	}
	mtries = max(1, min(mtries, p))

	rng := rand.New(rand.NewSource(f.Params.Seed)) //nolint:gosec // math/rand is fine for tree randomization

	for t := 0; t < f.Params.NTrees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var rows []int
		if f.Kind == FamilyXRT {
			rows = make([]int, n)
			for i := range rows {
				rows[i] = i
			}
		} else {
			size := max(1, int(f.Params.SampleRate*float64(n)))
			rows = make([]int, size)
			for i := range rows {
				rows[i] = rng.Intn(n)
			}
		}

		b := &treeBuilder{
			x:        x,
			y:        y,
			classes:  nClasses,
			mtries:   mtries,
			params:   f.Params,
			random:   f.Kind == FamilyXRT,
			rng:      rng,
			features: make([]int, p),
		}
		for j := range b.features {
			b.features[j] = j
		}
		b.grow(rows, 0)
		f.Trees = append(f.Trees, tree{Nodes: b.nodes})
	}
	return nil
}

// PredictProba implements Learner.
func (f *Forest) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	if err := checkDims(f.Kind, x, f.Width); err != nil {
		return nil, err
	}
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}

	n, _ := x.Dims()
	out := mat.NewDense(n, f.Classes, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		acc := out.RawRowView(i)
		for t := range f.Trees {
			floats.Add(acc, f.Trees[t].predict(row))
		}
		floats.Scale(1/float64(len(f.Trees)), acc)
	}
	return out, nil
}

// treeBuilder grows one tree depth-first.
type treeBuilder struct {
	x        *mat.Dense
	y        []int
	classes  int
	mtries   int
	params   ForestParams
	random   bool
	rng      *rand.Rand
	features []int
	nodes    []treeNode
}

// split is a candidate partition of a node.
type split struct {
	feature   int
	threshold float64
	score     float64
}

// grow appends the subtree over rows and returns its node index.
func (b *treeBuilder) grow(rows []int, depth int) int {
	dist := b.distribution(rows)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Feature: -1, Dist: dist})

	if depth >= b.params.MaxDepth || len(rows) < 2*b.params.MinRows || isPure(dist) {
		return idx
	}

	best, ok := b.bestSplit(rows)
	if !ok {
		return idx
	}

	var left, right []int
	for _, r := range rows {
		if b.x.At(r, best.feature) <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) < b.params.MinRows || len(right) < b.params.MinRows {
		return idx
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = treeNode{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return idx
}

// bestSplit evaluates mtries random inputs and returns the lowest weighted
// Gini impurity split.
func (b *treeBuilder) bestSplit(rows []int) (split, bool) {
	b.rng.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})

	best := split{score: math.Inf(1)}
	found := false
	for _, feat := range b.features[:b.mtries] {
		var s split
		var ok bool
		if b.random {
			s, ok = b.randomSplit(rows, feat)
		} else {
			s, ok = b.exactSplit(rows, feat)
		}
		if ok && s.score < best.score {
			best = s
			found = true
		}
	}
	return best, found
}

// exactSplit scans every midpoint between distinct sorted values.
func (b *treeBuilder) exactSplit(rows []int, feat int) (split, bool) {
	order := append([]int(nil), rows...)
	sort.Slice(order, func(i, j int) bool {
		return b.x.At(order[i], feat) < b.x.At(order[j], feat)
	})

	total := make([]float64, b.classes)
	for _, r := range order {
		total[b.y[r]]++
	}
	left := make([]float64, b.classes)
	right := append([]float64(nil), total...)

	n := float64(len(order))
	best := split{feature: feat, score: math.Inf(1)}
	found := false
	for i := 0; i < len(order)-1; i++ {
		c := b.y[order[i]]
		left[c]++
		right[c]--

		v, next := b.x.At(order[i], feat), b.x.At(order[i+1], feat)
		if v == next {
			continue
		}
		nl := float64(i + 1)
		score := nl/n*gini(left, nl) + (n-nl)/n*gini(right, n-nl)
		if score < best.score {
			best.threshold = (v + next) / 2
			best.score = score
			found = true
		}
	}
	return best, found
}

// randomSplit draws one threshold uniformly between the node's min and max.
func (b *treeBuilder) randomSplit(rows []int, feat int) (split, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		v := b.x.At(r, feat)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return split{}, false
	}
	threshold := lo + b.rng.Float64()*(hi-lo)

	left := make([]float64, b.classes)
	right := make([]float64, b.classes)
	var nl float64
	for _, r := range rows {
		if b.x.At(r, feat) <= threshold {
			left[b.y[r]]++
			nl++
		} else {
			right[b.y[r]]++
		}
	}
	n := float64(len(rows))
	if nl == 0 || nl == n {
		return split{}, false
	}
	score := nl/n*gini(left, nl) + (n-nl)/n*gini(right, n-nl)
	return split{feature: feat, threshold: threshold, score: score}, true
}

// distribution returns class frequencies over rows.
func (b *treeBuilder) distribution(rows []int) []float64 {
	dist := make([]float64, b.classes)
	for _, r := range rows {
		dist[b.y[r]]++
	}
	if len(rows) > 0 {
		floats.Scale(1/float64(len(rows)), dist)
	}
	return dist
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func isPure(dist []float64) bool {
	for _, p := range dist {
		if p == 1 {
			return true
		}
	}
	return false
}
