package scoring

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrNotFitted is returned when a scaler or model is used before fitting.
var ErrNotFitted = errors.New("not fitted")

// StandardScaler centres each column on its mean and divides it by the
// population standard deviation. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes the column statistics of X.
func FitScaler(X mat.Matrix) (*StandardScaler, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.New("fit scaler: empty matrix")
	}
	s := &StandardScaler{Mean: make([]float64, cols), Scale: make([]float64, cols)}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
	return s, nil
}

// Fitted reports whether the scaler holds statistics.
func (s *StandardScaler) Fitted() bool {
	return s != nil && len(s.Mean) > 0 && len(s.Mean) == len(s.Scale)
}

// Transform returns a scaled copy of X.
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	rows, cols := X.Dims()
	if cols != len(s.Mean) {
		return nil, fmt.Errorf("transform: got %d columns, scaler has %d", cols, len(s.Mean))
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return out, nil
}

// TransformRow scales a single feature row.
func (s *StandardScaler) TransformRow(x []float64) ([]float64, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("transform: got %d features, scaler has %d", len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}
