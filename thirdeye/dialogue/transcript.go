package dialogue

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/analysis"
)

// ErrInvalidTranscriptState is returned when turns are out of round/persona
// order or a prompt is requested for a persona that is not next.
var ErrInvalidTranscriptState = errors.New("invalid transcript state")

// SeedText is the material a dialogue debates.
type SeedText struct {
	ID      string
	Content string
}

// Turn is one persona utterance.
type Turn struct {
	Round     int       `json:"round"`
	Persona   Persona   `json:"persona"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// expectedAt returns the round and persona the turn at index i must have.
func expectedAt(i int) (int, Persona) {
	return i/PersonasPerRound + 1, Persona(i % PersonasPerRound)
}

// ValidateTurns checks strict round-then-persona ordering.
func ValidateTurns(turns []Turn) error {
	for i, t := range turns {
		round, persona := expectedAt(i)
		if t.Round != round || t.Persona != persona {
			return fmt.Errorf("%w: turn %d is round %d %s, expected round %d %s",
				ErrInvalidTranscriptState, i, t.Round, t.Persona, round, persona)
		}
	}
	return nil
}

// Transcript is the append-only turn log of one seed dialogue. It is owned
// by a single goroutine; readers get a View.
type Transcript struct {
	seed  SeedText
	turns []Turn
}

// NewTranscript creates an empty transcript for seed.
func NewTranscript(seed SeedText) *Transcript {
	return &Transcript{seed: seed}
}

// Seed returns the seed text the transcript belongs to.
func (t *Transcript) Seed() SeedText { return t.seed }

// Len is the number of turns.
func (t *Transcript) Len() int { return len(t.turns) }

// RoundsCompleted is the number of fully appended rounds.
func (t *Transcript) RoundsCompleted() int { return len(t.turns) / PersonasPerRound }

// Append adds turn if it is the next expected one.
func (t *Transcript) Append(turn Turn) error {
	round, persona := expectedAt(len(t.turns))
	if turn.Round != round || turn.Persona != persona {
		return fmt.Errorf("%w: cannot append round %d %s, expected round %d %s",
			ErrInvalidTranscriptState, turn.Round, turn.Persona, round, persona)
	}
	t.turns = append(t.turns, turn)
	return nil
}

// Clone returns an independent copy.
func (t *Transcript) Clone() *Transcript {
	turns := make([]Turn, len(t.turns))
	copy(turns, t.turns)
	return &Transcript{seed: t.seed, turns: turns}
}

// Turns returns a copy of the turn log.
func (t *Transcript) Turns() []Turn {
	return t.View().Turns()
}

// View returns an immutable snapshot of the transcript.
func (t *Transcript) View() View {
	turns := make([]Turn, len(t.turns))
	copy(turns, t.turns)
	return View{turns: turns}
}

// FinalPositions returns the last turn of each persona. The transcript must
// hold at least one complete round and no partial round.
func (t *Transcript) FinalPositions() (analysis.Positions, error) {
	n := len(t.turns)
	if n == 0 || n%PersonasPerRound != 0 {
		return analysis.Positions{}, fmt.Errorf("%w: final positions need complete rounds, have %d turns",
			ErrInvalidTranscriptState, n)
	}
	last := t.turns[n-PersonasPerRound:]
	return analysis.Positions{
		Interpreter: last[Interpreter].Text,
		Skeptic:     last[Skeptic].Text,
		Observer:    last[Observer].Text,
	}, nil
}

// View is a read-only snapshot of a transcript.
type View struct {
	turns []Turn
}

// NewView builds a snapshot from turns. The slice is copied.
func NewView(turns []Turn) View {
	cp := make([]Turn, len(turns))
	copy(cp, turns)
	return View{turns: cp}
}

// Len is the number of turns in the snapshot.
func (v View) Len() int { return len(v.turns) }

// Turns returns a copy of the turns.
func (v View) Turns() []Turn {
	cp := make([]Turn, len(v.turns))
	copy(cp, v.turns)
	return cp
}

// Round returns the turns of round r (1-based); fewer than three when r is
// the partial current round.
func (v View) Round(r int) []Turn {
	start := (r - 1) * PersonasPerRound
	if r < 1 || start >= len(v.turns) {
		return nil
	}
	end := min(start+PersonasPerRound, len(v.turns))
	cp := make([]Turn, end-start)
	copy(cp, v.turns[start:end])
	return cp
}

// Next returns the round and persona expected to speak next.
func (v View) Next() (int, Persona) {
	return expectedAt(len(v.turns))
}
