package dialogue

import (
	"fmt"
	"strconv"
	"strings"

	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
)

// Prompt metadata keys carried in PromptInput.Meta.
const (
	MetaSeed    = "seed"
	MetaPersona = "persona"
	MetaRound   = "round"
	MetaPhase   = "phase"
)

// Phases of a prompt.
const (
	PhaseRound   = "round"
	PhaseClosing = "closing"
)

// PromptBuilder turns a persona, a seed and a transcript snapshot into the
// exact payload sent to the generation backend. It has no side effects.
type PromptBuilder struct {
	policy ContextPolicy
}

// NewPromptBuilder creates a builder with the given context policy.
func NewPromptBuilder(policy ContextPolicy) *PromptBuilder {
	return &PromptBuilder{policy: policy}
}

// Build returns the prompt for persona's turn in the current round. The view
// must hold complete rounds plus exactly the turns that precede persona in
// the current round.
func (b *PromptBuilder) Build(persona Persona, seed SeedText, view View) (ports.PromptInput, error) {
	if !persona.Valid() {
		return ports.PromptInput{}, fmt.Errorf("%w: unknown persona %d", ErrInvalidTranscriptState, int(persona))
	}
	if err := ValidateTurns(view.turns); err != nil {
		return ports.PromptInput{}, err
	}
	round, next := view.Next()
	if next != persona {
		return ports.PromptInput{}, fmt.Errorf("%w: %s cannot speak after %d turns, %s is next",
			ErrInvalidTranscriptState, persona, view.Len(), next)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "The text under discussion:\n%q\n", seed.Content)

	summary, verbatim := b.policy.window(view, round)
	if len(summary) > 0 {
		sb.WriteString("\nSummary of earlier rounds:\n")
		for _, line := range summary {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	if len(verbatim) > 0 {
		sb.WriteString("\nPrevious rounds:\n")
		for _, turns := range verbatim {
			writeRound(&sb, turns[0].Round, turns)
		}
	}

	if current := view.Round(round); len(current) > 0 {
		sb.WriteString("\nThis round so far:\n")
		writeRound(&sb, round, current)
	}

	sb.WriteString("\n")
	sb.WriteString(instruction(persona, round))

	return ports.PromptInput{
		System:   persona.Directive(),
		Messages: []ports.PromptMessage{{Role: "user", Content: sb.String()}},
		Meta:     meta(seed, persona, round, PhaseRound),
	}, nil
}

// BuildClosing returns the prompt asking persona for a closing statement
// once every round is complete.
func (b *PromptBuilder) BuildClosing(persona Persona, seed SeedText, view View) (ports.PromptInput, error) {
	if !persona.Valid() {
		return ports.PromptInput{}, fmt.Errorf("%w: unknown persona %d", ErrInvalidTranscriptState, int(persona))
	}
	if err := ValidateTurns(view.turns); err != nil {
		return ports.PromptInput{}, err
	}
	if view.Len() == 0 || view.Len()%PersonasPerRound != 0 {
		return ports.PromptInput{}, fmt.Errorf("%w: closing statements need complete rounds, have %d turns",
			ErrInvalidTranscriptState, view.Len())
	}
	rounds := view.Len() / PersonasPerRound

	var sb strings.Builder
	fmt.Fprintf(&sb, "The text under discussion:\n%q\n", seed.Content)

	summary, verbatim := b.policy.window(view, rounds+1)
	if len(summary) > 0 {
		sb.WriteString("\nSummary of earlier rounds:\n")
		for _, line := range summary {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nThe debate:\n")
	for _, turns := range verbatim {
		writeRound(&sb, turns[0].Round, turns)
	}

	sb.WriteString("\n")
	if persona == Observer {
		last := view.Round(rounds)
		fmt.Fprintf(&sb, "You've watched %d rounds of debate. The interpreter's final position: %q\n"+
			"The skeptic's final position: %q\n\n"+
			"Give your final synthesis. Not a compromise: what is the ACTUAL truth about this text that "+
			"the debate revealed? What did the tension between these two perspectives produce that neither "+
			"could have reached alone? If the answer is 'nothing new', say that honestly.",
			rounds, last[Interpreter].Text, last[Skeptic].Text)
	} else {
		sb.WriteString("After this entire debate, what is your final position? One sentence.")
	}

	return ports.PromptInput{
		System:   persona.Directive(),
		Messages: []ports.PromptMessage{{Role: "user", Content: sb.String()}},
		Meta:     meta(seed, persona, rounds, PhaseClosing),
	}, nil
}

func writeRound(sb *strings.Builder, round int, turns []Turn) {
	fmt.Fprintf(sb, "[Round %d]\n", round)
	for _, t := range turns {
		fmt.Fprintf(sb, "%s: %s\n", t.Persona.Label(), t.Text)
	}
}

func instruction(persona Persona, round int) string {
	first := round == 1
	switch persona {
	case Interpreter:
		if first {
			return "Interpret this text. What does it really mean?"
		}
		return "The skeptic has challenged your interpretation. Defend or deepen your reading. What are they missing?"
	case Skeptic:
		if first {
			return "A depth-interpreter has offered the reading above. Challenge this interpretation on literal-reading grounds. Argue for the simpler reading."
		}
		return "The interpreter has pressed their reading further. Keep challenging it on literal-reading grounds and call out any claim that escalated beyond the text."
	default:
		if first {
			return "Report the tension between the two readings without taking sides. What is the real disagreement? Is something emerging that neither side is seeing?"
		}
		return "Track how the tension has evolved across the rounds without taking sides. What is the real disagreement now? Is something emerging that neither side is seeing?"
	}
}

func meta(seed SeedText, persona Persona, round int, phase string) map[string]string {
	return map[string]string{
		MetaSeed:    seed.ID,
		MetaPersona: persona.String(),
		MetaRound:   strconv.Itoa(round),
		MetaPhase:   phase,
	}
}
