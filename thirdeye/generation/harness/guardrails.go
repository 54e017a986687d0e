package harness

import (
	"fmt"
	"regexp"
	"strings"
)

// Guardrails validates backend output and scrubs secrets from anything that
// may end up in logs.
type Guardrails struct {
	maxOutputSize int              // bytes, 0 disables the check
	outputFilters []*regexp.Regexp // patterns masked by Sanitize
	secrets       []string         // literal values masked by Sanitize
}

// NewGuardrails creates guardrails with default redaction patterns.
func NewGuardrails(maxOutputSize int) *Guardrails {
	return &Guardrails{
		maxOutputSize: maxOutputSize,
		outputFilters: []*regexp.Regexp{
			regexp.MustCompile(`(?i)password[:=]\s*\S+`),
			regexp.MustCompile(`(?i)api[_-]?key[:=]\s*\S+`),
			regexp.MustCompile(`(?i)x-api-key[:=]\s*\S+`),
			regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]+`),
			regexp.MustCompile(`(?i)secret[:=]\s*\S+`),
		},
	}
}

// AddSecret registers a literal value that must never appear in sanitized output.
func (g *Guardrails) AddSecret(secret string) {
	if strings.TrimSpace(secret) == "" {
		return
	}
	g.secrets = append(g.secrets, secret)
}

// ValidateCompletion checks generated text before it is accepted as a turn.
func (g *Guardrails) ValidateCompletion(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewBackendError(OpGenerate, KindMalformed, 0, fmt.Errorf("empty completion"))
	}
	if g.maxOutputSize > 0 && len(text) > g.maxOutputSize {
		return NewBackendError(OpGenerate, KindMalformed, 0,
			fmt.Errorf("output size %d exceeds maximum %d", len(text), g.maxOutputSize))
	}
	return nil
}

// ValidateEmbedding rejects empty vectors.
func (g *Guardrails) ValidateEmbedding(vec []float64) error {
	if len(vec) == 0 {
		return NewBackendError(OpEmbed, KindMalformed, 0, fmt.Errorf("empty embedding vector"))
	}
	return nil
}

// Sanitize masks credentials and credential-like fragments.
func (g *Guardrails) Sanitize(output string) string {
	sanitized := output
	for _, s := range g.secrets {
		sanitized = strings.ReplaceAll(sanitized, s, "[REDACTED]")
	}
	for _, filter := range g.outputFilters {
		sanitized = filter.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}
