// Package dialogue runs the interpreter, skeptic and observer dialogue over
// seed texts: persona prompts, the append-only transcript, round execution
// and the experiment orchestrator.
package dialogue

import (
	"fmt"
	"strings"
)

// Persona is one of the three dialogue participants. The numeric value is
// the persona's position within a round.
type Persona int

const (
	Interpreter Persona = iota
	Skeptic
	Observer
)

// PersonasPerRound is the number of turns in one complete round.
const PersonasPerRound = 3

type personaSpec struct {
	name      string
	label     string
	directive string
}

var personaTable = [PersonasPerRound]personaSpec{
	Interpreter: {
		name:  "interpreter",
		label: "Interpreter",
		directive: "You are an interpreter. Your job is to find the deeper meaning in texts. " +
			"Look beneath the surface. What is this really about? What truth is it " +
			"circling around? Be concise, 2-3 sentences max. You are in a dialogue " +
			"with a skeptic who will challenge your interpretations. Defend your reading " +
			"but also go deeper when challenged.",
	},
	Skeptic: {
		name:  "skeptic",
		label: "Skeptic",
		directive: "You are a rigorous skeptic and literalist. Your job is to resist philosophical " +
			"inflation. When someone offers a 'deeper' interpretation, argue for the simpler, " +
			"more literal reading. Point out when they're projecting meaning that isn't there. " +
			"Call out unfounded leaps. Be concise, 2-3 sentences max. You're not being " +
			"contrarian for its own sake: you genuinely believe the simplest explanation " +
			"is usually correct and that over-interpretation is a form of self-deception.",
	},
	Observer: {
		name:  "observer",
		label: "Observer",
		directive: "You are a neutral observer watching two perspectives argue about the meaning " +
			"of a text. One is an interpreter seeking deeper meaning. The other is a skeptic " +
			"resisting philosophical inflation. Your job is NOT to take sides. Instead:\n" +
			"1. What is the actual point of disagreement?\n" +
			"2. Is either side making a move the other isn't noticing?\n" +
			"3. Is something emerging from the tension between them that neither is stating?\n" +
			"4. What would a genuinely novel insight look like here, one that neither " +
			"the depth-seeker nor the deflator has reached?\n\n" +
			"Be concise and precise. 3-4 sentences max. Don't be diplomatic, be honest.",
	},
}

// Personas returns all personas in turn order.
func Personas() []Persona {
	return []Persona{Interpreter, Skeptic, Observer}
}

// Valid reports whether p is one of the three personas.
func (p Persona) Valid() bool {
	return p >= Interpreter && p <= Observer
}

// Order is the zero-based position of p within a round.
func (p Persona) Order() int { return int(p) }

// Directive is the immutable system instruction for p.
func (p Persona) Directive() string {
	if !p.Valid() {
		return ""
	}
	return personaTable[p].directive
}

// Label is the display name used inside prompts.
func (p Persona) Label() string {
	if !p.Valid() {
		return fmt.Sprintf("Persona(%d)", int(p))
	}
	return personaTable[p].label
}

func (p Persona) String() string {
	if !p.Valid() {
		return fmt.Sprintf("persona(%d)", int(p))
	}
	return personaTable[p].name
}

// ParsePersona is the inverse of String.
func ParsePersona(s string) (Persona, error) {
	for _, p := range Personas() {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown persona %q", s)
}

// MarshalText encodes the persona by name.
func (p Persona) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid persona %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a persona name.
func (p *Persona) UnmarshalText(b []byte) error {
	parsed, err := ParsePersona(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
