package analysis

import (
	"context"
	"fmt"
)

// Embedder is the slice of the backend client the comparator needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Positions are the final texts of the three personas.
type Positions struct {
	Interpreter string
	Skeptic     string
	Observer    string
}

// Report is the immutable outcome of one comparison.
type Report struct {
	Pairs                Pairs          `json:"pairs"`
	Classification       Classification `json:"classification"`
	ObserverLeans        string         `json:"observer_leans"`
	ObserverEquidistance float64        `json:"observer_equidistance"`
	EquidistanceVerdict  Verdict        `json:"equidistance_verdict"`
	Dimensions           int            `json:"dimensions"`
	Thresholds           Thresholds     `json:"thresholds"`
}

// ComparisonFailure records why a seed has no report. The transcript of the
// seed is kept regardless.
type ComparisonFailure struct {
	SeedID string
	Err    error
}

func (e *ComparisonFailure) Error() string {
	return fmt.Sprintf("comparison failed for seed %q: %v", e.SeedID, e.Err)
}

func (e *ComparisonFailure) Unwrap() error { return e.Err }

// Comparator embeds final positions and measures them.
type Comparator struct {
	embedders  func() Embedder
	thresholds Thresholds
}

// NewComparator creates a comparator using the given policy.
func NewComparator(embedder Embedder, thresholds Thresholds) *Comparator {
	return &Comparator{embedders: func() Embedder { return embedder }, thresholds: thresholds}
}

// NewScopedComparator calls scope once per comparison and embeds that
// comparison's texts with the embedder it returns.
func NewScopedComparator(scope func() Embedder, thresholds Thresholds) *Comparator {
	return &Comparator{embedders: scope, thresholds: thresholds}
}

// Thresholds returns the policy the comparator classifies with.
func (c *Comparator) Thresholds() Thresholds { return c.thresholds }

// Compare makes three embedding calls, in interpreter, skeptic, observer
// order, and builds the report.
func (c *Comparator) Compare(ctx context.Context, pos Positions) (*Report, error) {
	texts := [3]struct {
		label string
		text  string
	}{
		{"interpreter", pos.Interpreter},
		{"skeptic", pos.Skeptic},
		{"observer", pos.Observer},
	}

	embedder := c.embedders()
	var vecs [3][]float64
	for i, t := range texts {
		v, err := embedder.Embed(ctx, t.text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed %s position: %w", t.label, err)
		}
		vecs[i] = v
	}

	if len(vecs[0]) != len(vecs[1]) || len(vecs[0]) != len(vecs[2]) {
		return nil, fmt.Errorf("%w: interpreter %d, skeptic %d, observer %d",
			ErrDimensionMismatch, len(vecs[0]), len(vecs[1]), len(vecs[2]))
	}

	var pairs Pairs
	var err error
	if pairs.InterpreterSkeptic, err = Cosine(vecs[0], vecs[1]); err != nil {
		return nil, err
	}
	if pairs.InterpreterObserver, err = Cosine(vecs[0], vecs[2]); err != nil {
		return nil, err
	}
	if pairs.SkepticObserver, err = Cosine(vecs[1], vecs[2]); err != nil {
		return nil, err
	}

	return &Report{
		Pairs:                pairs,
		Classification:       c.thresholds.Classify(pairs),
		ObserverLeans:        pairs.ObserverLeans(),
		ObserverEquidistance: pairs.Equidistance(),
		EquidistanceVerdict:  c.thresholds.Verdict(pairs),
		Dimensions:           len(vecs[0]),
		Thresholds:           c.thresholds,
	}, nil
}
