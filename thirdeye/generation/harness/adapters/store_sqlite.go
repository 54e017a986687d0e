package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
)

// SQLiteTranscriptStore implements TranscriptStore on the schema created by
// the store package migrations.
type SQLiteTranscriptStore struct {
	db *sql.DB
}

// NewSQLiteTranscriptStore creates a new sqlite transcript store.
func NewSQLiteTranscriptStore(db *sql.DB) *SQLiteTranscriptStore {
	return &SQLiteTranscriptStore{db: db}
}

// BeginRun records a new experiment invocation.
func (s *SQLiteTranscriptStore) BeginRun(ctx context.Context, run ports.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, rounds, seeds) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.Rounds, strings.Join(run.Seeds, ","),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveRound writes the turns of one round in a single transaction.
func (s *SQLiteTranscriptStore) SaveRound(ctx context.Context, runID, seedID string, turns []ports.TurnRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO turns (run_id, seed_id, round, position, persona, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for i, turn := range turns {
		if _, err := stmt.ExecContext(ctx, runID, seedID, turn.Round, i, turn.Persona, turn.Text, turn.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to save turn %d of round %d: %w", i, turn.Round, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit round: %w", err)
	}
	return nil
}

// SaveOutcome records the terminal state of a seed dialogue.
func (s *SQLiteTranscriptStore) SaveOutcome(ctx context.Context, runID, seedID string, outcome ports.OutcomeRecord) error {
	var report any
	if outcome.ReportJSON != nil {
		report = string(outcome.ReportJSON)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (run_id, seed_id, status, reason, rounds, report)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, seedID, outcome.Status, outcome.Reason, outcome.Rounds, report)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}
	return nil
}

// LoadTurns returns the persisted turns of one seed in dialogue order.
func (s *SQLiteTranscriptStore) LoadTurns(ctx context.Context, runID, seedID string) ([]ports.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round, persona, text, created_at FROM turns
		WHERE run_id = ? AND seed_id = ?
		ORDER BY round, position
	`, runID, seedID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []ports.TurnRecord
	for rows.Next() {
		var (
			turn      ports.TurnRecord
			createdAt time.Time
		)
		if err := rows.Scan(&turn.Round, &turn.Persona, &turn.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.CreatedAt = createdAt
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}
	return turns, nil
}

// Ensure SQLiteTranscriptStore implements the TranscriptStore interface.
var _ ports.TranscriptStore = (*SQLiteTranscriptStore)(nil)
