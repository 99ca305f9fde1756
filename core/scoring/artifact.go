package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Artifact pairs a fitted forest with the scaler it was trained behind.
// It is never mutated after NewArtifact returns.
type Artifact struct {
	Model         *Forest
	Scaler        *StandardScaler
	LayoutVersion int
	TrainedAt     time.Time
	Samples       int
}

// Train fits a scaler on X, then a forest on the scaled rows.
func Train(X *mat.Dense, y []float64, p ForestParams, layout int, now time.Time) (*Artifact, error) {
	scaler, err := FitScaler(X)
	if err != nil {
		return nil, err
	}
	scaled, err := scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	forest, err := FitForest(scaled, y, p)
	if err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	return NewArtifact(forest, scaler, layout, now, rows)
}

// NewArtifact checks that model and scaler agree on the feature count.
func NewArtifact(m *Forest, s *StandardScaler, layout int, trainedAt time.Time, samples int) (*Artifact, error) {
	if !m.Fitted() || !s.Fitted() {
		return nil, ErrNotFitted
	}
	if m.Features != len(s.Mean) {
		return nil, fmt.Errorf("artifact: model expects %d features, scaler %d", m.Features, len(s.Mean))
	}
	return &Artifact{Model: m, Scaler: s, LayoutVersion: layout, TrainedAt: trainedAt.UTC(), Samples: samples}, nil
}

// Score scales x and predicts it. Non-finite predictions are errors.
func (a *Artifact) Score(x []float64) (float64, error) {
	if a == nil {
		return 0, errors.New("score: nil artifact")
	}
	scaled, err := a.Scaler.TransformRow(x)
	if err != nil {
		return 0, err
	}
	v, err := a.Model.Predict(scaled)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("score: non-finite prediction %v", v)
	}
	return v, nil
}
