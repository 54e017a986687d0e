// Package harness wraps generation and embedding backends with the call
// policy every backend request goes through: rate limiting, per-call
// timeouts, output guardrails, bounded retry with backoff, tracing, and
// embedding memoization.
package harness

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/adapters"
	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const (
	OpGenerate = "generate"
	OpEmbed    = "embed"
)

// A comparison embeds three texts.
const scopedCacheCapacity = 3

// Policy controls how backend calls are retried and bounded.
type Policy struct {
	MaxRetries      int           // retries after the first attempt
	BaseBackoff     time.Duration // first backoff interval, doubled per retry
	MaxBackoff      time.Duration // cap on a single backoff interval
	JitterPercent   uint64        // +/- jitter applied to each interval
	GenerateTimeout time.Duration // per-attempt generation timeout, 0 for none
	EmbedTimeout    time.Duration // per-attempt embedding timeout, 0 for none
	CacheTTLSeconds int           // lifetime of memoized embeddings
	EmbeddingModel  string        // part of the embedding cache key
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:      5,
		BaseBackoff:     10 * time.Second,
		MaxBackoff:      120 * time.Second,
		JitterPercent:   10,
		GenerateTimeout: 120 * time.Second,
		EmbedTimeout:    30 * time.Second,
		CacheTTLSeconds: 3600,
	}
}

// Client is the single entry point to the generation and embedding backends.
// It is safe for concurrent use by multiple seed dialogues.
type Client struct {
	provider   ports.Provider
	embedder   ports.Embedder
	cache      ports.Cache
	newCache   func() ports.Cache
	limiter    ports.RateLimiter
	tracer     ports.Tracer
	guardrails *Guardrails
	policy     *Policy
	logger     zerolog.Logger
}

// NewClient creates a new client with dependencies.
func NewClient(
	provider ports.Provider,
	embedder ports.Embedder,
	cache ports.Cache,
	limiter ports.RateLimiter,
	tracer ports.Tracer,
	guardrails *Guardrails,
	policy *Policy,
	logger zerolog.Logger,
) *Client {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if guardrails == nil {
		guardrails = NewGuardrails(0)
	}
	if cache == nil {
		cache = &noOpCache{}
	}
	if limiter == nil {
		limiter = &noOpRateLimiter{}
	}
	if tracer == nil {
		tracer = &noOpTracer{}
	}
	return &Client{
		provider:   provider,
		embedder:   embedder,
		cache:      cache,
		newCache:   func() ports.Cache { return adapters.NewLRUCache(scopedCacheCapacity) },
		limiter:    limiter,
		tracer:     tracer,
		guardrails: guardrails,
		policy:     policy,
		logger:     logger,
	}
}

// Scoped returns a client that shares every backend, the rate limiter and
// the tracer with c, but memoizes embeddings in a cache of its own. Drop it
// once the comparison it serves is done.
func (c *Client) Scoped() *Client {
	scoped := *c
	scoped.cache = c.newCache()
	return &scoped
}

// Generate produces one completion. Retryable failures are retried under the
// policy; the returned error is always a *BackendError or a context error.
func (c *Client) Generate(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	if c.provider == nil {
		return ports.Completion{}, NewBackendError(OpGenerate, KindInvalidRequest, 0, errors.New("no generation provider configured"))
	}

	attrs := make(map[string]any, len(in.Meta)+1)
	for k, v := range in.Meta {
		attrs[k] = v
	}
	attrs["messages"] = len(in.Messages)

	ctx, finish := c.tracer.StartSpan(ctx, OpGenerate, attrs)

	var out ports.Completion
	err := c.withRetry(ctx, OpGenerate, func(ctx context.Context) error {
		release, err := c.limiter.Acquire(ctx, OpGenerate)
		if err != nil {
			return err
		}
		defer release()

		callCtx, cancel := withOptionalTimeout(ctx, c.callTimeout(opts))
		defer cancel()

		completion, err := c.provider.Complete(callCtx, in, opts)
		if err != nil {
			return c.normalize(ctx, OpGenerate, err)
		}
		if err := c.guardrails.ValidateCompletion(completion.Text); err != nil {
			return err
		}
		out = completion
		return nil
	})

	finish(err)
	if err != nil {
		return ports.Completion{}, err
	}
	return out, nil
}

// Embed returns the embedding of text, memoized for the lifetime of the cache.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.embedder == nil {
		return nil, NewBackendError(OpEmbed, KindInvalidInput, 0, errors.New("no embedding provider configured"))
	}

	ctx, finish := c.tracer.StartSpan(ctx, OpEmbed, map[string]any{"chars": len(text)})

	key := c.embedCacheKey(text)
	if cached, ok := c.cache.Get(ctx, key); ok {
		var vec []float64
		if err := json.Unmarshal(cached, &vec); err == nil {
			c.tracer.Event(ctx, "cache_hit", map[string]any{"key": key[:12]})
			finish(nil)
			return vec, nil
		}
		_ = c.cache.Delete(ctx, key)
	}

	var vec []float64
	err := c.withRetry(ctx, OpEmbed, func(ctx context.Context) error {
		release, err := c.limiter.Acquire(ctx, OpEmbed)
		if err != nil {
			return err
		}
		defer release()

		callCtx, cancel := withOptionalTimeout(ctx, c.policy.EmbedTimeout)
		defer cancel()

		v, err := c.embedder.Embed(callCtx, text)
		if err != nil {
			return c.normalize(ctx, OpEmbed, err)
		}
		if err := c.guardrails.ValidateEmbedding(v); err != nil {
			return err
		}
		vec = v
		return nil
	})

	finish(err)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(vec); err == nil {
		if err := c.cache.Set(ctx, key, encoded, c.policy.CacheTTLSeconds); err != nil {
			c.tracer.Event(ctx, "cache_error", map[string]any{"error": err.Error()})
		}
	}
	return vec, nil
}

// withRetry runs fn until it succeeds, fails with a non-retryable error, or
// the retry budget is spent.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		// The caller's context is done; nothing left to retry.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		kind := KindOf(err)
		c.tracer.Event(ctx, "attempt_failed", map[string]any{
			"op":      op,
			"attempt": attempt,
			"kind":    string(kind),
			"error":   c.guardrails.Sanitize(err.Error()),
		})
		if kind.Retryable() {
			return retry.RetryableError(err)
		}
		return err
	})

	if err != nil && attempt > 1 {
		c.logger.Warn().
			Str("op", op).
			Int("attempts", attempt).
			Str("error", c.guardrails.Sanitize(err.Error())).
			Msg("Backend call failed after retries")
	}
	return err
}

func (c *Client) backoff() retry.Backoff {
	base := c.policy.BaseBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if c.policy.JitterPercent > 0 {
		b = retry.WithJitterPercent(c.policy.JitterPercent, b)
	}
	if c.policy.MaxBackoff > 0 {
		b = retry.WithCappedDuration(c.policy.MaxBackoff, b)
	}
	retries := c.policy.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}

// normalize turns provider errors into BackendErrors. A per-attempt timeout
// that fires while the caller's context is still live counts as a timeout.
func (c *Client) normalize(parent context.Context, op string, err error) error {
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewBackendError(op, KindTimeout, 0, err)
	}
	return NewBackendError(op, KindUpstream, 0, err)
}

func (c *Client) callTimeout(opts ports.Options) time.Duration {
	if opts.TimeoutMs > 0 {
		return time.Duration(opts.TimeoutMs) * time.Millisecond
	}
	return c.policy.GenerateTimeout
}

func (c *Client) embedCacheKey(text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s", c.policy.EmbeddingModel, text)))
	return "embed:" + hex.EncodeToString(h[:])
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
