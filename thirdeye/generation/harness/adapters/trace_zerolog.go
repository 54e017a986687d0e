package adapters

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
)

type spanLoggerKey struct{}

// ZerologTracer writes backend call spans to a zerolog logger. Spans are
// logged at debug level; a span that ends in an error is logged at warn.
type ZerologTracer struct {
	logger zerolog.Logger
}

func NewZerologTracer(logger zerolog.Logger) *ZerologTracer {
	return &ZerologTracer{logger: logger}
}

// StartSpan tags a child logger with the span name, a short span id and
// attrs, and stores it in the returned context for Event.
func (t *ZerologTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	fields := t.logger.With().
		Str("span", name).
		Str("span_id", uuid.NewString()[:8])
	for k, v := range attrs {
		fields = fields.Interface(k, v)
	}
	span := fields.Logger()
	ctx = context.WithValue(ctx, spanLoggerKey{}, span)

	started := time.Now()
	span.Debug().Msg("span started")

	return ctx, func(err error) {
		ev := span.Debug()
		if err != nil {
			ev = span.Warn().Err(err)
		}
		ev.Dur("elapsed", time.Since(started)).Msg("span finished")
	}
}

// Event logs name under the span carried by ctx, or the root logger when
// there is none.
func (t *ZerologTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	logger, ok := ctx.Value(spanLoggerKey{}).(zerolog.Logger)
	if !ok {
		logger = t.logger
	}
	ev := logger.Debug().Str("event", name)
	for k, v := range attrs {
		ev = ev.Interface(k, v)
	}
	ev.Msg("span event")
}

var _ ports.Tracer = (*ZerologTracer)(nil)
