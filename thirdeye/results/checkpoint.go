package results

import (
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/dialogue"
)

// Checkpointer records outcomes as seeds finish and rewrites the partial
// artifact after each one. A failed write is logged, never fatal.
type Checkpointer struct {
	agg    *Aggregator
	path   string
	logger zerolog.Logger
}

// NewCheckpointer writes partial artifacts to path. An empty path only
// aggregates.
func NewCheckpointer(agg *Aggregator, path string, logger zerolog.Logger) *Checkpointer {
	return &Checkpointer{agg: agg, path: path, logger: logger}
}

// Record adds the outcome and refreshes the checkpoint file.
func (c *Checkpointer) Record(o dialogue.SeedOutcome) {
	if err := c.agg.Add(o); err != nil {
		c.logger.Warn().Err(err).Str("seed", o.Seed.ID).Msg("Outcome not recorded")
		return
	}
	if c.path == "" {
		return
	}
	if err := WriteArtifact(c.path, c.agg.Result()); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("Failed to write checkpoint")
		return
	}
	c.logger.Debug().Str("path", c.path).Int("seeds", c.agg.Len()).Msg("Checkpoint written")
}
