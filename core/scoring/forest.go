package scoring

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ForestParams configures FitForest.
type ForestParams struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"seed"`
}

// DefaultForestParams returns 100 trees of depth at most 10 seeded with 42.
func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, MaxDepth: 10, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 42}
}

// Validate checks the parameters.
func (p ForestParams) Validate() error {
	switch {
	case p.Trees < 1:
		return fmt.Errorf("trees must be >= 1, got %d", p.Trees)
	case p.MaxDepth < 1:
		return fmt.Errorf("max_depth must be >= 1, got %d", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("min_samples_split must be >= 2, got %d", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("min_samples_leaf must be >= 1, got %d", p.MinSamplesLeaf)
	}
	return nil
}

// Forest is a bagged ensemble of regression trees. The prediction is the
// mean of the tree predictions.
type Forest struct {
	Features int
	Params   ForestParams
	Trees    []RegressionTree
}

// FitForest trains a forest on X (one row per sample) and targets y.
// The same inputs and seed always produce the same forest.
func FitForest(X mat.Matrix, y []float64, p ForestParams) (*Forest, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.New("fit forest: empty training set")
	}
	if len(y) != rows {
		return nil, fmt.Errorf("fit forest: %d rows but %d targets", rows, len(y))
	}
	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, X)
	}
	rng := rand.New(rand.NewSource(p.Seed))
	tp := treeParams{maxDepth: p.MaxDepth, minSamplesSplit: p.MinSamplesSplit, minSamplesLeaf: p.MinSamplesLeaf}
	f := &Forest{Features: cols, Params: p, Trees: make([]RegressionTree, p.Trees)}
	for t := range f.Trees {
		f.Trees[t] = fitTree(data, y, bootstrap(rows, rng), tp)
	}
	return f, nil
}

// Fitted reports whether the forest holds trees.
func (f *Forest) Fitted() bool { return f != nil && len(f.Trees) > 0 && f.Features > 0 }

// Predict scores one (already scaled) feature row.
func (f *Forest) Predict(x []float64) (float64, error) {
	if !f.Fitted() {
		return 0, ErrNotFitted
	}
	if len(x) != f.Features {
		return 0, fmt.Errorf("predict: got %d features, model has %d", len(x), f.Features)
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictBatch scores every row of X.
func (f *Forest) PredictBatch(X mat.Matrix) ([]float64, error) {
	rows, _ := X.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		v, err := f.Predict(mat.Row(nil, i, X))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
