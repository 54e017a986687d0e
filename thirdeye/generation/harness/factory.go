package harness

import (
	"context"
	"database/sql"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/config"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/adapters"
	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
	"github.com/rs/zerolog"
)

// Factory creates and wires harness components from configuration.
type Factory struct {
	cfg    *config.Config
	db     *sql.DB // Optional, for the transcript store
	logger zerolog.Logger
}

// NewFactory creates a new harness factory.
func NewFactory(cfg *config.Config, db *sql.DB, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}
}

// CreateClient creates a fully wired Client around the given backends.
// Clients derived from it with Scoped draw their caches from the same
// configuration, so memoization can be limited to a single comparison.
func (f *Factory) CreateClient(provider ports.Provider, embedder ports.Embedder) *Client {
	client := NewClient(
		provider,
		embedder,
		f.createCache(),
		f.createRateLimiter(),
		f.createTracer(),
		f.CreateGuardrails(),
		f.CreatePolicy(),
		f.logger,
	)
	client.newCache = f.createCache
	return client
}

func (f *Factory) createCache() ports.Cache {
	if !f.cfg.Harness.CacheEnabled {
		return &noOpCache{}
	}
	return adapters.NewLRUCache(f.cfg.Harness.CacheCapacity)
}

func (f *Factory) createRateLimiter() ports.RateLimiter {
	if !f.cfg.Harness.RateLimitEnabled {
		return &noOpRateLimiter{}
	}
	return adapters.NewTokenBucket(f.cfg.Harness.RateLimitCapacity, f.cfg.Harness.RateLimitRefillRate)
}

func (f *Factory) createTracer() ports.Tracer {
	if !f.cfg.Harness.EnableTracing {
		return &noOpTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

// CreateStore creates a transcript store adapter. Without a database the
// store silently discards everything.
func (f *Factory) CreateStore() ports.TranscriptStore {
	if f.db == nil {
		return &noOpStore{}
	}
	return adapters.NewSQLiteTranscriptStore(f.db)
}

// CreateGuardrails creates guardrails that also mask the configured credentials.
func (f *Factory) CreateGuardrails() *Guardrails {
	g := NewGuardrails(f.cfg.Harness.MaxOutputSize)
	g.AddSecret(f.cfg.LLM.APIKey)
	g.AddSecret(f.cfg.Embedding.APIKey)
	return g
}

// CreatePolicy creates a retry policy from config with validation.
func (f *Factory) CreatePolicy() *Policy {
	h := f.cfg.Harness
	policy := &Policy{
		MaxRetries:      h.MaxRetries,
		BaseBackoff:     h.RetryBaseBackoff,
		MaxBackoff:      h.RetryMaxBackoff,
		JitterPercent:   10,
		GenerateTimeout: f.cfg.LLM.Timeout,
		EmbedTimeout:    f.cfg.Embedding.Timeout,
		CacheTTLSeconds: h.CacheTTLSeconds,
		EmbeddingModel:  f.cfg.Embedding.Model,
	}

	if policy.MaxRetries > 10 {
		policy.MaxRetries = 10
		f.logger.Warn().Int("max_retries", h.MaxRetries).Msg("MaxRetries clamped to maximum of 10")
	}
	if policy.MaxBackoff > 0 && policy.BaseBackoff > policy.MaxBackoff {
		policy.BaseBackoff = policy.MaxBackoff
		f.logger.Warn().Dur("retry_base_backoff", h.RetryBaseBackoff).Msg("RetryBaseBackoff clamped to RetryMaxBackoff")
	}

	return policy
}

// noOpCache implements Cache interface with no-op behavior for testing/disabled cache.
type noOpCache struct{}

func (c *noOpCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (c *noOpCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return nil
}
func (c *noOpCache) Delete(ctx context.Context, key string) error { return nil }

// noOpRateLimiter implements RateLimiter interface with no-op behavior.
type noOpRateLimiter struct{}

func (r *noOpRateLimiter) Acquire(ctx context.Context, key string) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return func() {}, nil
}

// noOpTracer implements Tracer interface with no-op behavior.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

// noOpStore implements TranscriptStore interface with no-op behavior.
type noOpStore struct{}

func (s *noOpStore) BeginRun(ctx context.Context, run ports.RunRecord) error { return nil }

func (s *noOpStore) SaveRound(ctx context.Context, runID, seedID string, turns []ports.TurnRecord) error {
	return nil
}

func (s *noOpStore) SaveOutcome(ctx context.Context, runID, seedID string, outcome ports.OutcomeRecord) error {
	return nil
}

func (s *noOpStore) LoadTurns(ctx context.Context, runID, seedID string) ([]ports.TurnRecord, error) {
	return nil, nil
}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Cache           = (*noOpCache)(nil)
	_ ports.RateLimiter     = (*noOpRateLimiter)(nil)
	_ ports.Tracer          = (*noOpTracer)(nil)
	_ ports.TranscriptStore = (*noOpStore)(nil)
)
