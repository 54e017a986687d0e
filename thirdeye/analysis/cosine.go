// Package analysis reduces the three final positions of a dialogue to
// pairwise cosine similarities and classifies their geometry.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrDimensionMismatch is returned when vectors of different sizes are compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrDegenerateVector is returned for all-zero or non-finite vectors, which have no direction.
	ErrDegenerateVector = errors.New("degenerate embedding vector")
)

// Cosine returns a·b / (|a||b|), clamped to [-1, 1]. Only all-zero or
// non-finite vectors are degenerate; any other magnitude is accepted.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDegenerateVector)
	}

	// Scaling by the largest component keeps the squared norms in [1, n],
	// so they neither overflow nor underflow.
	sa, err := scaled(a)
	if err != nil {
		return 0, err
	}
	sb, err := scaled(b)
	if err != nil {
		return 0, err
	}

	na := floats.Dot(sa, sa)
	nb := floats.Dot(sb, sb)
	// sqrt(na*nb) rather than sqrt(na)*sqrt(nb) keeps self-similarity at exactly 1.
	sim := floats.Dot(sa, sb) / math.Sqrt(na*nb)
	return math.Max(-1, math.Min(1, sim)), nil
}

// scaled returns v divided by its largest absolute component.
func scaled(v []float64) ([]float64, error) {
	if floats.HasNaN(v) {
		return nil, fmt.Errorf("%w: NaN component", ErrDegenerateVector)
	}
	m := floats.Norm(v, math.Inf(1))
	if m == 0 {
		return nil, fmt.Errorf("%w: zero vector", ErrDegenerateVector)
	}
	if math.IsInf(m, 0) {
		return nil, fmt.Errorf("%w: infinite component", ErrDegenerateVector)
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / m
	}
	return out, nil
}
