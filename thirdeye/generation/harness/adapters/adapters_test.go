package adapters

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/store"
)

func TestTokenBucket_BlocksUntilRefill(t *testing.T) {
	tb := NewTokenBucket(2, 20*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		release, err := tb.Acquire(ctx, "generate")
		require.NoError(t, err)
		release()
	}

	// The third permit needs one refill interval.
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestTokenBucket_KeysAreIndependent(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	ctx := context.Background()

	_, err := tb.Acquire(ctx, "generate")
	require.NoError(t, err)
	_, err = tb.Acquire(ctx, "embed")
	require.NoError(t, err)
}

func TestTokenBucket_HonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	_, err := tb.Acquire(context.Background(), "generate")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = tb.Acquire(ctx, "generate")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var rlErr *RateLimitError
	assert.True(t, errors.As(err, &rlErr))
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 60))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 60))

	// Touch a so b becomes the eviction candidate.
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, c.Set(ctx, "c", []byte("3"), 60))

	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
	v, ok := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_ExpiresEntries(t *testing.T) {
	c := NewLRUCache(4)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10))
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	now = now.Add(11 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUCache_ReturnsCopies(t *testing.T) {
	c := NewLRUCache(4)
	ctx := context.Background()
	value := []byte("abc")

	require.NoError(t, c.Set(ctx, "k", value, 60))
	value[0] = 'z'

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)
}

func TestLRUCache_Stats(t *testing.T) {
	c := NewLRUCache(1)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 5))
	c.Get(ctx, "a")
	c.Get(ctx, "missing")
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 5))
	now = now.Add(5 * time.Second)
	c.Get(ctx, "b")

	assert.Equal(t, CacheStats{Hits: 1, Misses: 2, Evictions: 1, Expirations: 1}, c.Stats())
}

func TestTokenBucket_EarnsPermitsBack(t *testing.T) {
	tb := NewTokenBucket(2, time.Second)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }

	assert.Zero(t, tb.reserve("generate"))
	assert.Zero(t, tb.reserve("generate"))
	assert.Equal(t, time.Second, tb.reserve("generate"))

	now = now.Add(1500 * time.Millisecond)
	assert.Zero(t, tb.reserve("generate"))
	assert.Equal(t, 500*time.Millisecond, tb.reserve("generate"))
}

func TestLRUCache_ConcurrentAccess(t *testing.T) {
	c := NewLRUCache(8)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%4))
			_ = c.Set(ctx, key, []byte{byte(i)}, 60)
			c.Get(ctx, key)
			if i%5 == 0 {
				_ = c.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 8)
}

func TestZerologTracer_LogsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewZerologTracer(zerolog.New(&buf).Level(zerolog.DebugLevel))

	ctx, finish := tracer.StartSpan(context.Background(), "generate", map[string]any{"persona": "skeptic"})
	tracer.Event(ctx, "attempt_failed", map[string]any{"attempt": 1})
	finish(errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"span":"generate"`)
	assert.Contains(t, out, `"persona":"skeptic"`)
	assert.Contains(t, out, `"event":"attempt_failed"`)
	assert.Contains(t, out, `"message":"span finished"`)
	assert.Contains(t, out, `"span_id":`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestSQLiteTranscriptStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.MemoryDSN, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteTranscriptStore(db)
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.BeginRun(ctx, ports.RunRecord{ID: "run-1", StartedAt: started, Rounds: 2, Seeds: []string{"math"}}))

	for round := 1; round <= 2; round++ {
		turns := []ports.TurnRecord{
			{Round: round, Persona: "interpreter", Text: "i", CreatedAt: started},
			{Round: round, Persona: "skeptic", Text: "s", CreatedAt: started},
			{Round: round, Persona: "observer", Text: "o", CreatedAt: started},
		}
		require.NoError(t, s.SaveRound(ctx, "run-1", "math", turns))
	}
	require.NoError(t, s.SaveOutcome(ctx, "run-1", "math", ports.OutcomeRecord{
		Status: "complete", Rounds: 2, ReportJSON: []byte(`{"classification":"convergent"}`),
	}))

	loaded, err := s.LoadTurns(ctx, "run-1", "math")
	require.NoError(t, err)
	require.Len(t, loaded, 6)
	assert.Equal(t, 1, loaded[0].Round)
	assert.Equal(t, "interpreter", loaded[0].Persona)
	assert.Equal(t, "observer", loaded[5].Persona)
	assert.Equal(t, 2, loaded[5].Round)
	assert.True(t, started.Equal(loaded[0].CreatedAt))

	var status, report string
	require.NoError(t, db.QueryRow(`SELECT status, report FROM reports WHERE run_id = ? AND seed_id = ?`, "run-1", "math").Scan(&status, &report))
	assert.Equal(t, "complete", status)
	assert.JSONEq(t, `{"classification":"convergent"}`, report)
}

func TestSQLiteTranscriptStore_SaveRoundIsAtomic(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.MemoryDSN, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteTranscriptStore(db)
	require.NoError(t, s.BeginRun(ctx, ports.RunRecord{ID: "run-1", StartedAt: time.Now(), Rounds: 1}))

	require.NoError(t, s.SaveRound(ctx, "run-1", "math", []ports.TurnRecord{
		{Round: 1, Persona: "interpreter", Text: "i", CreatedAt: time.Now()},
		{Round: 1, Persona: "skeptic", Text: "s", CreatedAt: time.Now()},
	}))

	// The second row collides with (round 1, position 1) after the first row was inserted.
	err = s.SaveRound(ctx, "run-1", "math", []ports.TurnRecord{
		{Round: 2, Persona: "interpreter", Text: "i2", CreatedAt: time.Now()},
		{Round: 1, Persona: "skeptic", Text: "dup", CreatedAt: time.Now()},
	})
	require.Error(t, err)

	loaded, err := s.LoadTurns(ctx, "run-1", "math")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestSQLiteTranscriptStore_RequiresRun(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.MemoryDSN, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteTranscriptStore(db)
	err = s.SaveOutcome(ctx, "missing", "math", ports.OutcomeRecord{Status: "abandoned"})
	assert.Error(t, err, "foreign key to runs must hold")
}
