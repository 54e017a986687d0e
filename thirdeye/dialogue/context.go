package dialogue

import (
	"fmt"
	"strings"
)

// ContextPolicy decides how much prior history each prompt carries.
type ContextPolicy struct {
	// Rounds is the number of most recent completed rounds shown verbatim.
	// Zero shows the full history.
	Rounds int
	// SummaryChars bounds each turn's excerpt in the running summary of
	// rounds that fall outside the window.
	SummaryChars int
}

// FullHistory shows every prior round verbatim.
func FullHistory() ContextPolicy { return ContextPolicy{} }

// window splits the completed rounds before current into a summary of the
// elided ones and the rounds shown verbatim.
func (p ContextPolicy) window(v View, current int) (summary []string, verbatim [][]Turn) {
	completed := current - 1
	first := 1
	if p.Rounds > 0 && completed > p.Rounds {
		first = completed - p.Rounds + 1
		for r := 1; r < first; r++ {
			summary = append(summary, p.summarize(r, v.Round(r)))
		}
	}
	for r := first; r <= completed; r++ {
		verbatim = append(verbatim, v.Round(r))
	}
	return summary, verbatim
}

// summarize condenses one round to a single line. The output depends only on
// the turns, so prompts stay reproducible.
func (p ContextPolicy) summarize(round int, turns []Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, fmt.Sprintf("%s: %s", t.Persona.Label(), excerpt(t.Text, p.SummaryChars)))
	}
	return fmt.Sprintf("Round %d. %s", round, strings.Join(parts, " | "))
}

// excerpt normalizes whitespace and cuts s to at most n runes.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
