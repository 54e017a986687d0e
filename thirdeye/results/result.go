// Package results assembles per-seed dialogue outcomes into the experiment
// artifact, validates it against its JSON schema and writes it to disk.
package results

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/analysis"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/dialogue"
)

// ErrDuplicateSeed is returned when two outcomes carry the same seed id.
var ErrDuplicateSeed = errors.New("duplicate seed id")

// SeedResult is the artifact entry of one seed.
type SeedResult struct {
	Seed            string            `json:"seed"`
	Status          dialogue.Status   `json:"status"`
	Reason          string            `json:"reason,omitempty"`
	RoundsCompleted int               `json:"rounds_completed"`
	Transcript      []dialogue.Turn   `json:"transcript"`
	Closing         *dialogue.Closing `json:"closing,omitempty"`
	Similarity      *analysis.Report  `json:"similarity"`
	ComparisonError string            `json:"comparison_error,omitempty"`
}

// ExperimentResult maps seed id to its result.
type ExperimentResult map[string]SeedResult

// IDs returns the seed ids in sorted order.
func (r ExperimentResult) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FromOutcome converts a dialogue outcome into its artifact entry.
func FromOutcome(o dialogue.SeedOutcome) SeedResult {
	transcript := o.Turns
	if transcript == nil {
		transcript = []dialogue.Turn{}
	}
	return SeedResult{
		Seed:            o.Seed.Content,
		Status:          o.Status,
		Reason:          o.Reason,
		RoundsCompleted: o.RoundsCompleted,
		Transcript:      transcript,
		Closing:         o.Closing,
		Similarity:      o.Report,
		ComparisonError: o.ComparisonError,
	}
}

// Aggregate assembles outcomes into one result. It fails on a repeated seed id.
func Aggregate(outcomes []dialogue.SeedOutcome) (ExperimentResult, error) {
	agg := NewAggregator()
	for _, o := range outcomes {
		if err := agg.Add(o); err != nil {
			return nil, err
		}
	}
	return agg.Result(), nil
}

// Aggregator collects outcomes as seeds finish. Safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	results ExperimentResult
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{results: make(ExperimentResult)}
}

// Add records one outcome.
func (a *Aggregator) Add(o dialogue.SeedOutcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.results[o.Seed.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateSeed, o.Seed.ID)
	}
	a.results[o.Seed.ID] = FromOutcome(o)
	return nil
}

// Len returns the number of recorded seeds.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// Result returns a snapshot of everything recorded so far.
func (a *Aggregator) Result() ExperimentResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(ExperimentResult, len(a.results))
	for id, r := range a.results {
		out[id] = r
	}
	return out
}
