// Package gbm implements a gradient-boosted regression tree ensemble with
// squared-error loss.
package gbm

import (
	"errors"
	"fmt"
	"sort"
)

// Regressor is a stage-wise additive ensemble of shallow regression trees.
// The zero value is not usable; construct with New.
type Regressor struct {
	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	MinSamplesLeaf  int
	MinSamplesSplit int

	init     float64
	trees    []*regressionTree
	features int
}

// New returns a regressor with 100 stages, learning rate 0.1 and depth 3
func New() *Regressor {
	return &Regressor{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesLeaf:  1,
		MinSamplesSplit: 2,
	}
}

// Fit trains the ensemble on rows x and targets y. Training is
// deterministic: identical inputs produce identical models.
func (r *Regressor) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return errors.New("gbm: no training rows")
	}
	if len(x) != len(y) {
		return fmt.Errorf("gbm: %d rows but %d targets", len(x), len(y))
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("gbm: row %d has %d features, want %d", i, len(row), width)
		}
	}

	r.features = width
	r.trees = r.trees[:0]

	var sum float64
	for _, v := range y {
		sum += v
	}
	r.init = sum / float64(len(y))

	sorted := make([][]int, width)
	for f := 0; f < width; f++ {
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]][f] < x[idx[b]][f] })
		sorted[f] = idx
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = r.init
	}
	residual := make([]float64, len(y))
	samples := make([]int, len(y))
	for i := range samples {
		samples[i] = i
	}

	builder := &treeBuilder{
		x:              x,
		target:         residual,
		sorted:         sorted,
		maxDepth:       r.MaxDepth,
		minSamplesLeaf: max(r.MinSamplesLeaf, 1),
		minSplit:       max(r.MinSamplesSplit, 2),
	}

	for stage := 0; stage < r.NEstimators; stage++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		tree := builder.build(samples)
		r.trees = append(r.trees, tree)
		for i := range pred {
			pred[i] += r.LearningRate * tree.predict(x[i])
		}
	}
	return nil
}

// Predict returns the ensemble estimate for one feature row
func (r *Regressor) Predict(x []float64) float64 {
	out := r.init
	for _, t := range r.trees {
		out += r.LearningRate * t.predict(x)
	}
	return out
}
