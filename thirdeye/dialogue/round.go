package dialogue

import (
	"context"
	"fmt"
	"time"

	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
)

// Generator is the slice of the backend client the dialogue needs.
type Generator interface {
	Generate(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error)
}

// RoundFailure means a round could not be completed. No turn of the failed
// round is ever appended.
type RoundFailure struct {
	SeedID  string
	Round   int
	Persona Persona
	Err     error
}

func (e *RoundFailure) Error() string {
	return fmt.Sprintf("seed %q round %d failed at %s: %v", e.SeedID, e.Round, e.Persona, e.Err)
}

func (e *RoundFailure) Unwrap() error { return e.Err }

// RoundExecutor runs one interpreter, skeptic, observer round.
type RoundExecutor struct {
	generator Generator
	builder   *PromptBuilder
	opts      ports.Options
	now       func() time.Time
}

// NewRoundExecutor creates an executor. opts carries the sampling settings
// applied to every turn; now stamps turns and defaults to time.Now.
func NewRoundExecutor(generator Generator, builder *PromptBuilder, opts ports.Options, now func() time.Time) *RoundExecutor {
	if now == nil {
		now = time.Now
	}
	return &RoundExecutor{
		generator: generator,
		builder:   builder,
		opts:      opts,
		now:       now,
	}
}

// RunRound returns a new transcript holding tr plus exactly one more round.
// On failure tr is returned unchanged together with a *RoundFailure.
func (e *RoundExecutor) RunRound(ctx context.Context, tr *Transcript) (*Transcript, error) {
	seed := tr.Seed()
	round := tr.RoundsCompleted() + 1
	if tr.Len()%PersonasPerRound != 0 {
		return tr, &RoundFailure{SeedID: seed.ID, Round: round, Persona: Interpreter,
			Err: fmt.Errorf("%w: transcript holds a partial round", ErrInvalidTranscriptState)}
	}

	// Work on a copy so a failure part way through leaves tr untouched.
	next := tr.Clone()
	for _, persona := range Personas() {
		text, err := e.turn(ctx, persona, seed, next.View())
		if err != nil {
			return tr, &RoundFailure{SeedID: seed.ID, Round: round, Persona: persona, Err: err}
		}
		if err := next.Append(Turn{Round: round, Persona: persona, Text: text, Timestamp: e.now().UTC()}); err != nil {
			return tr, &RoundFailure{SeedID: seed.ID, Round: round, Persona: persona, Err: err}
		}
	}
	return next, nil
}

// Closing asks each persona for its closing statement over the complete
// transcript. Nothing is appended to the transcript.
func (e *RoundExecutor) Closing(ctx context.Context, tr *Transcript) (map[Persona]string, error) {
	out := make(map[Persona]string, PersonasPerRound)
	view := tr.View()
	for _, persona := range Personas() {
		in, err := e.builder.BuildClosing(persona, tr.Seed(), view)
		if err != nil {
			return nil, err
		}
		text, err := e.generate(ctx, persona, in)
		if err != nil {
			return nil, fmt.Errorf("closing statement of %s: %w", persona, err)
		}
		out[persona] = text
	}
	return out, nil
}

func (e *RoundExecutor) turn(ctx context.Context, persona Persona, seed SeedText, view View) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	in, err := e.builder.Build(persona, seed, view)
	if err != nil {
		return "", err
	}
	return e.generate(ctx, persona, in)
}

func (e *RoundExecutor) generate(ctx context.Context, persona Persona, in ports.PromptInput) (string, error) {
	opts := e.opts
	opts.Role = persona.String()
	completion, err := e.generator.Generate(ctx, in, opts)
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}
