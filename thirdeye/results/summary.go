package results

import (
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/analysis"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/dialogue"
)

// SummaryRow is one line of the cross-seed summary.
type SummaryRow struct {
	SeedID          string
	Status          dialogue.Status
	RoundsCompleted int
	Pairs           analysis.Pairs
	Classification  analysis.Classification
	ObserverLeans   string
	Equidistance    float64
	Verdict         analysis.Verdict
	HasReport       bool
}

// Summary is the cross-seed comparison, ordered by seed id.
type Summary []SummaryRow

// Summarize builds the cross-seed summary of result.
func Summarize(result ExperimentResult) Summary {
	rows := make(Summary, 0, len(result))
	for _, id := range result.IDs() {
		r := result[id]
		row := SummaryRow{
			SeedID:          id,
			Status:          r.Status,
			RoundsCompleted: r.RoundsCompleted,
		}
		if rep := r.Similarity; rep != nil {
			row.HasReport = true
			row.Pairs = rep.Pairs
			row.Classification = rep.Classification
			row.ObserverLeans = rep.ObserverLeans
			row.Equidistance = rep.ObserverEquidistance
			row.Verdict = rep.EquidistanceVerdict
		}
		rows = append(rows, row)
	}
	return rows
}

// Counts tallies seeds per classification. Seeds without a report are
// counted under the empty classification.
func (s Summary) Counts() map[analysis.Classification]int {
	counts := make(map[analysis.Classification]int)
	for _, row := range s {
		counts[row.Classification]++
	}
	return counts
}

// Log writes one line per seed and a closing tally.
func (s Summary) Log(logger zerolog.Logger) {
	abandoned := 0
	for _, row := range s {
		if row.Status == dialogue.StatusAbandoned {
			abandoned++
		}
		if !row.HasReport {
			logger.Info().
				Str("seed", row.SeedID).
				Str("status", string(row.Status)).
				Int("rounds", row.RoundsCompleted).
				Msg("No similarity report")
			continue
		}
		logger.Info().
			Str("seed", row.SeedID).
			Float64("sim_interpreter_skeptic", row.Pairs.InterpreterSkeptic).
			Float64("sim_interpreter_observer", row.Pairs.InterpreterObserver).
			Float64("sim_skeptic_observer", row.Pairs.SkepticObserver).
			Str("classification", string(row.Classification)).
			Str("observer_leans", row.ObserverLeans).
			Float64("equidistance", row.Equidistance).
			Str("verdict", string(row.Verdict)).
			Msg("Seed summary")
	}

	counts := s.Counts()
	tally := zerolog.Dict()
	for _, c := range []analysis.Classification{
		analysis.Convergent,
		analysis.Divergent,
		analysis.ObserverEquidistant,
		analysis.ObserverLeansInterpreter,
		analysis.ObserverLeansSkeptic,
	} {
		tally.Int(string(c), counts[c])
	}
	logger.Info().
		Int("seeds", len(s)).
		Int("complete", len(s)-abandoned).
		Int("abandoned", abandoned).
		Int("unreported", counts[""]).
		Dict("classifications", tally).
		Msg("Experiment summary")
}
