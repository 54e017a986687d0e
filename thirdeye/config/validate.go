package config

import (
	"errors"
	"fmt"
	"strings"

	internal "github.com/ZanzyTHEbar/third-eye/thirdeye"
)

// ErrConfiguration is matched by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a startup problem. It is always fatal and is
// raised before any backend call is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Validate checks the loaded configuration. All problems are joined into one error.
func (c *Config) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if c.Experiment.Rounds <= 0 {
		fail("experiment.rounds", "must be a positive integer, got %d", c.Experiment.Rounds)
	}
	if c.Experiment.Concurrency <= 0 {
		fail("experiment.concurrency", "must be a positive integer, got %d", c.Experiment.Concurrency)
	}
	if c.Experiment.RoundAttempts <= 0 {
		fail("experiment.round_attempts", "must be a positive integer, got %d", c.Experiment.RoundAttempts)
	}
	if c.Experiment.ContextRounds < 0 {
		fail("experiment.context_rounds", "must not be negative, got %d", c.Experiment.ContextRounds)
	}

	if len(c.SeedTexts) == 0 {
		fail("seed_texts", "at least one seed text is required")
	}
	for id, content := range c.SeedTexts {
		if strings.TrimSpace(id) == "" {
			fail("seed_texts", "seed id must not be empty")
		}
		if strings.TrimSpace(content) == "" {
			fail("seed_texts."+id, "content must not be empty")
		}
	}

	t := c.Thresholds
	if t.Convergence < -1 || t.Convergence > 1 {
		fail("thresholds.convergence", "must lie in [-1, 1], got %g", t.Convergence)
	}
	if t.Divergence < -1 || t.Divergence > 1 {
		fail("thresholds.divergence", "must lie in [-1, 1], got %g", t.Divergence)
	}
	if t.Convergence <= t.Divergence {
		fail("thresholds", "convergence (%g) must exceed divergence (%g)", t.Convergence, t.Divergence)
	}
	if t.EquidistanceEpsilon < 0 {
		fail("thresholds.equidistance_epsilon", "must not be negative, got %g", t.EquidistanceEpsilon)
	}
	if t.EquidistanceLean < t.EquidistanceEpsilon {
		fail("thresholds.equidistance_lean", "must be at least equidistance_epsilon (%g), got %g", t.EquidistanceEpsilon, t.EquidistanceLean)
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.APIKey == "" {
			fail("llm.api_key", "%s is not set", internal.GenerationAPIKeyEnv)
		}
	default:
		fail("llm.provider", "unsupported provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		fail("llm.max_tokens", "must be a positive integer, got %d", c.LLM.MaxTokens)
	}
	if c.Embedding.Provider != "openai" {
		fail("embedding.provider", "unsupported provider %q", c.Embedding.Provider)
	}

	if c.Harness.MaxRetries < 0 {
		fail("harness.max_retries", "must not be negative, got %d", c.Harness.MaxRetries)
	}
	if c.Harness.RateLimitEnabled && (c.Harness.RateLimitCapacity <= 0 || c.Harness.RateLimitRefillRate <= 0) {
		fail("harness.rate_limit", "capacity and refill rate must be positive when rate limiting is enabled")
	}
	if c.Output.Path == "" {
		fail("output.path", "must not be empty")
	}

	return errors.Join(errs...)
}
