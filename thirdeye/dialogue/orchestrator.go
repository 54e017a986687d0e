package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/analysis"
	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Status is the terminal state of a seed dialogue.
type Status string

const (
	StatusComplete  Status = "complete"
	StatusAbandoned Status = "abandoned"
)

// Closing holds the closing statements, when requested.
type Closing struct {
	Interpreter string `json:"interpreter"`
	Skeptic     string `json:"skeptic"`
	Observer    string `json:"observer"`
}

// SeedOutcome is everything one seed dialogue produced.
type SeedOutcome struct {
	Seed            SeedText
	Status          Status
	Reason          string // why the dialogue was abandoned
	RoundsCompleted int
	Turns           []Turn
	Closing         *Closing
	Report          *analysis.Report // nil when comparison was skipped or failed
	ComparisonError string
}

// RunResult is returned once every seed has reached a terminal state.
type RunResult struct {
	RunID     string
	StartedAt time.Time
	Rounds    int
	Outcomes  []SeedOutcome // in the order the seeds were given
}

// Comparer measures final positions.
type Comparer interface {
	Compare(ctx context.Context, pos analysis.Positions) (*analysis.Report, error)
}

// Options shapes an experiment run.
type Options struct {
	Rounds            int
	Concurrency       int
	RoundAttempts     int
	ClosingStatements bool
}

// Orchestrator drives every seed dialogue to a terminal state and compares
// the final positions of the completed ones.
type Orchestrator struct {
	executor   *RoundExecutor
	comparator Comparer
	store      ports.TranscriptStore
	opts       Options
	logger     zerolog.Logger

	// OnOutcome, when set, is called after each seed reaches a terminal
	// state. Calls are serialized.
	OnOutcome func(SeedOutcome)

	newRunID func() string
	now      func() time.Time
}

// NewOrchestrator wires an orchestrator. store may be nil.
func NewOrchestrator(executor *RoundExecutor, comparator Comparer, store ports.TranscriptStore, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.RoundAttempts <= 0 {
		opts.RoundAttempts = 1
	}
	return &Orchestrator{
		executor:   executor,
		comparator: comparator,
		store:      store,
		opts:       opts,
		logger:     logger,
		newRunID:   uuid.NewString,
		now:        time.Now,
	}
}

// Run executes the experiment over seeds. Seed dialogues run in parallel up
// to the concurrency bound; rounds within a seed are strictly sequential.
// Cancelling ctx stops every dialogue at its next round boundary, and any
// round in flight is dropped whole.
func (o *Orchestrator) Run(ctx context.Context, seeds []SeedText) (*RunResult, error) {
	if o.opts.Rounds <= 0 {
		return nil, fmt.Errorf("rounds must be positive, got %d", o.opts.Rounds)
	}
	if len(seeds) == 0 {
		return nil, errors.New("no seed texts to run")
	}
	seen := make(map[string]struct{}, len(seeds))
	ids := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("seed %q given twice", s.ID)
		}
		seen[s.ID] = struct{}{}
		ids = append(ids, s.ID)
	}

	run := &RunResult{
		RunID:     o.newRunID(),
		StartedAt: o.now().UTC(),
		Rounds:    o.opts.Rounds,
		Outcomes:  make([]SeedOutcome, len(seeds)),
	}
	logger := o.logger.With().Str("run_id", run.RunID).Logger()

	store := o.store
	if store != nil {
		if err := store.BeginRun(ctx, ports.RunRecord{ID: run.RunID, StartedAt: run.StartedAt, Rounds: run.Rounds, Seeds: ids}); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run, continuing without transcript store")
			store = nil
		}
	}

	logger.Info().
		Int("seeds", len(seeds)).
		Int("rounds", o.opts.Rounds).
		Int("concurrency", o.opts.Concurrency).
		Msg("Starting experiment")

	type indexed struct {
		idx     int
		outcome SeedOutcome
	}

	outcomes := make(chan SeedOutcome)
	notified := make(chan struct{})
	go func() {
		defer close(notified)
		for outcome := range outcomes {
			if o.OnOutcome != nil {
				o.OnOutcome(outcome)
			}
		}
	}()

	p := pool.NewWithResults[indexed]().WithMaxGoroutines(o.opts.Concurrency)
	for i, seed := range seeds {
		p.Go(func() indexed {
			outcome := o.runSeed(ctx, store, run.RunID, seed, logger)
			outcomes <- outcome
			return indexed{idx: i, outcome: outcome}
		})
	}
	for _, r := range p.Wait() {
		run.Outcomes[r.idx] = r.outcome
	}
	close(outcomes)
	<-notified

	logger.Info().Msg("Experiment finished")
	return run, nil
}

func (o *Orchestrator) runSeed(ctx context.Context, store ports.TranscriptStore, runID string, seed SeedText, logger zerolog.Logger) SeedOutcome {
	logger = logger.With().Str("seed", seed.ID).Logger()
	logger.Info().Msg("Starting dialogue")

	tr := NewTranscript(seed)
	outcome := SeedOutcome{Seed: seed, Status: StatusComplete}

	for round := 1; round <= o.opts.Rounds; round++ {
		// Cancellation is honored at round boundaries.
		if err := ctx.Err(); err != nil {
			outcome.Status = StatusAbandoned
			outcome.Reason = fmt.Sprintf("cancelled before round %d: %v", round, err)
			break
		}

		next, err := o.runRoundWithAttempts(ctx, tr, logger)
		if err != nil {
			outcome.Status = StatusAbandoned
			outcome.Reason = err.Error()
			logger.Warn().Err(err).Int("round", round).Msg("Dialogue abandoned")
			break
		}
		tr = next
		persistRound(ctx, store, runID, seed.ID, tr.View().Round(round), logger)
		logger.Debug().Int("round", round).Msg("Round complete")
	}

	outcome.Turns = tr.Turns()
	outcome.RoundsCompleted = tr.RoundsCompleted()

	if outcome.Status == StatusComplete {
		o.compare(ctx, tr, &outcome, logger)
	}

	persistOutcome(ctx, store, runID, outcome, logger)

	ev := logger.Info().Str("status", string(outcome.Status)).Int("rounds", outcome.RoundsCompleted)
	if outcome.Report != nil {
		ev = ev.Str("classification", string(outcome.Report.Classification))
	}
	ev.Msg("Dialogue finished")
	return outcome
}

func (o *Orchestrator) runRoundWithAttempts(ctx context.Context, tr *Transcript, logger zerolog.Logger) (*Transcript, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.RoundAttempts; attempt++ {
		next, err := o.executor.RunRound(ctx, tr)
		if err == nil {
			return next, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < o.opts.RoundAttempts {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Round failed, retrying")
		}
	}
	return tr, lastErr
}

// compare extracts final positions and fills the report. Any failure is
// recorded as a ComparisonFailure; the transcript is kept either way.
func (o *Orchestrator) compare(ctx context.Context, tr *Transcript, outcome *SeedOutcome, logger zerolog.Logger) {
	fail := func(err error) {
		cf := &analysis.ComparisonFailure{SeedID: tr.Seed().ID, Err: err}
		outcome.ComparisonError = cf.Error()
		logger.Warn().Err(cf).Msg("Comparison failed")
	}

	positions, err := tr.FinalPositions()
	if err != nil {
		fail(err)
		return
	}

	if o.opts.ClosingStatements {
		closing, err := o.executor.Closing(ctx, tr)
		if err != nil {
			fail(err)
			return
		}
		outcome.Closing = &Closing{
			Interpreter: closing[Interpreter],
			Skeptic:     closing[Skeptic],
			Observer:    closing[Observer],
		}
		positions = analysis.Positions{
			Interpreter: closing[Interpreter],
			Skeptic:     closing[Skeptic],
			Observer:    closing[Observer],
		}
	}

	report, err := o.comparator.Compare(ctx, positions)
	if err != nil {
		fail(err)
		return
	}
	outcome.Report = report
}

func persistRound(ctx context.Context, store ports.TranscriptStore, runID, seedID string, turns []Turn, logger zerolog.Logger) {
	if store == nil {
		return
	}
	records := make([]ports.TurnRecord, 0, len(turns))
	for _, t := range turns {
		records = append(records, ports.TurnRecord{Round: t.Round, Persona: t.Persona.String(), Text: t.Text, CreatedAt: t.Timestamp})
	}
	if err := store.SaveRound(ctx, runID, seedID, records); err != nil {
		// Log but don't fail
		logger.Warn().Err(err).Msg("Failed to persist round")
	}
}

func persistOutcome(ctx context.Context, store ports.TranscriptStore, runID string, outcome SeedOutcome, logger zerolog.Logger) {
	if store == nil {
		return
	}
	record := ports.OutcomeRecord{
		Status: string(outcome.Status),
		Reason: outcome.Reason,
		Rounds: outcome.RoundsCompleted,
	}
	if outcome.Report != nil {
		if b, err := json.Marshal(outcome.Report); err == nil {
			record.ReportJSON = b
		}
	}
	// The outcome is recorded even when ctx was cancelled mid-run.
	if err := store.SaveOutcome(context.WithoutCancel(ctx), runID, outcome.Seed.ID, record); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist outcome")
	}
}
