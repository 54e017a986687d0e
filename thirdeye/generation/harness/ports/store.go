package harnessports

import (
	"context"
	"time"
)

// TurnRecord is one persisted utterance.
type TurnRecord struct {
	Round     int
	Persona   string
	Text      string
	CreatedAt time.Time
}

// OutcomeRecord is the terminal state of one seed dialogue.
type OutcomeRecord struct {
	Status     string // "complete" | "abandoned"
	Reason     string
	Rounds     int
	ReportJSON []byte // nil when no similarity report was produced
}

// RunRecord identifies one experiment invocation.
type RunRecord struct {
	ID        string
	StartedAt time.Time
	Rounds    int
	Seeds     []string
}

// TranscriptStore persists dialogue progress. SaveRound receives the turns of
// exactly one completed round and must write them atomically.
type TranscriptStore interface {
	BeginRun(ctx context.Context, run RunRecord) error
	SaveRound(ctx context.Context, runID, seedID string, turns []TurnRecord) error
	SaveOutcome(ctx context.Context, runID, seedID string, outcome OutcomeRecord) error
	LoadTurns(ctx context.Context, runID, seedID string) ([]TurnRecord, error)
}
