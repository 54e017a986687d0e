package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/third-eye/thirdeye"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Experiment ExperimentConfig  `mapstructure:"experiment"`
	Thresholds ThresholdConfig   `mapstructure:"thresholds"`
	LLM        LLMConfig         `mapstructure:"llm"`
	Embedding  EmbeddingConfig   `mapstructure:"embedding"`
	Harness    HarnessConfig     `mapstructure:"harness"`
	Store      StoreConfig       `mapstructure:"store"`
	Output     OutputConfig      `mapstructure:"output"`
	Log        LogConfig         `mapstructure:"log"`
	SeedTexts  map[string]string `mapstructure:"seed_texts"`
}

// ExperimentConfig controls the shape of the dialogue.
type ExperimentConfig struct {
	Rounds            int  `mapstructure:"rounds"`             // Rounds per seed text
	Concurrency       int  `mapstructure:"concurrency"`        // Seed dialogues run in parallel
	RoundAttempts     int  `mapstructure:"round_attempts"`     // Attempts per round before abandoning a seed
	ContextRounds     int  `mapstructure:"context_rounds"`     // Prior rounds shown verbatim; 0 means full history
	SummaryChars      int  `mapstructure:"summary_chars"`      // Per-turn budget in the running summary of elided rounds
	ClosingStatements bool `mapstructure:"closing_statements"` // Ask each persona for a closing statement after the last round
}

// ThresholdConfig holds the classification policy for similarity reports.
type ThresholdConfig struct {
	Convergence         float64 `mapstructure:"convergence"`          // All pairs at or above => convergent
	Divergence          float64 `mapstructure:"divergence"`           // Interpreter/skeptic below => divergent
	EquidistanceEpsilon float64 `mapstructure:"equidistance_epsilon"` // |sim(I,O) - sim(S,O)| at or below => equidistant
	EquidistanceLean    float64 `mapstructure:"equidistance_lean"`    // Below => observer leans, otherwise sided
}

// LLMConfig stores generation backend configuration.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`    // "anthropic"
	Model       string        `mapstructure:"model"`       // Model identifier sent to the backend
	BaseURL     string        `mapstructure:"base_url"`    // API root
	APIVersion  string        `mapstructure:"api_version"` // anthropic-version header
	MaxTokens   int           `mapstructure:"max_tokens"`  // Max tokens to generate
	Temperature float64       `mapstructure:"temperature"` // Sampling temperature
	Timeout     time.Duration `mapstructure:"timeout"`     // Per-call timeout

	APIKey string `mapstructure:"-" json:"-"`
}

// EmbeddingConfig stores embedding backend configuration.
type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"` // "openai" (any OpenAI-compatible endpoint)
	Model    string        `mapstructure:"model"`    // Embedding model
	BaseURL  string        `mapstructure:"base_url"` // API root
	Dims     int           `mapstructure:"dims"`     // Expected dimensions, 0 to accept whatever the backend returns
	Timeout  time.Duration `mapstructure:"timeout"`  // Per-call timeout

	APIKey string `mapstructure:"-" json:"-"`
}

// HarnessConfig stores backend call policy.
type HarnessConfig struct {
	// Retry
	MaxRetries       int           `mapstructure:"max_retries"`        // Retries per backend call
	RetryBaseBackoff time.Duration `mapstructure:"retry_base_backoff"` // First backoff interval
	RetryMaxBackoff  time.Duration `mapstructure:"retry_max_backoff"`  // Cap on a single backoff interval

	// Rate limiting
	RateLimitEnabled    bool          `mapstructure:"rate_limit_enabled"`     // Enable rate limiting
	RateLimitCapacity   int           `mapstructure:"rate_limit_capacity"`    // Token bucket capacity
	RateLimitRefillRate time.Duration `mapstructure:"rate_limit_refill_rate"` // Time per refilled token

	// Embedding cache
	CacheEnabled    bool `mapstructure:"cache_enabled"`     // Memoize embeddings within a run
	CacheCapacity   int  `mapstructure:"cache_capacity"`    // LRU cache capacity
	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"` // Cache entry TTL

	// Safety and validation
	MaxOutputSize int `mapstructure:"max_output_size"` // Maximum completion size in bytes

	// Telemetry
	EnableTracing bool `mapstructure:"enable_tracing"` // Emit spans for backend calls
}

// StoreConfig stores the optional sqlite transcript store settings.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// OutputConfig controls where the artifact is written.
type OutputConfig struct {
	Path       string `mapstructure:"path"`
	Checkpoint bool   `mapstructure:"checkpoint"` // Write <path>.partial.json after every finished seed
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // "console" or "json"
}

// LoadConfig reads configuration from file or environment variables.
// Each call uses its own viper instance so concurrent loads never share state.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName(internal.DefaultConfigName)
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. experiment.rounds becomes THIRDEYE_EXPERIMENT_ROUNDS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if len(cfg.SeedTexts) == 0 {
		cfg.SeedTexts = internal.DefaultSeedTexts()
	}

	if err := loadCredentials(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Experiment defaults
	v.SetDefault("experiment.rounds", internal.DefaultRounds)
	v.SetDefault("experiment.concurrency", 2)
	v.SetDefault("experiment.round_attempts", 1)
	v.SetDefault("experiment.context_rounds", 0) // full history
	v.SetDefault("experiment.summary_chars", 160)
	v.SetDefault("experiment.closing_statements", false)

	// Classification policy
	v.SetDefault("thresholds.convergence", 0.9)
	v.SetDefault("thresholds.divergence", 0.3)
	v.SetDefault("thresholds.equidistance_epsilon", 0.1)
	v.SetDefault("thresholds.equidistance_lean", 0.2)

	// Generation backend
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-opus-4-20250514")
	v.SetDefault("llm.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.api_version", "2023-06-01")
	v.SetDefault("llm.max_tokens", 400)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", "120s")

	// Embedding backend
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "https://api.openai.com")
	v.SetDefault("embedding.dims", 0)
	v.SetDefault("embedding.timeout", "30s")

	// Harness defaults
	v.SetDefault("harness.max_retries", 5)
	v.SetDefault("harness.retry_base_backoff", "10s")
	v.SetDefault("harness.retry_max_backoff", "120s")
	v.SetDefault("harness.rate_limit_enabled", true)
	v.SetDefault("harness.rate_limit_capacity", 4)
	v.SetDefault("harness.rate_limit_refill_rate", "3s")
	v.SetDefault("harness.cache_enabled", true)
	v.SetDefault("harness.cache_capacity", 256)
	v.SetDefault("harness.cache_ttl_seconds", 3600)
	v.SetDefault("harness.max_output_size", 16000)
	v.SetDefault("harness.enable_tracing", true)

	// Persistence
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.dsn", internal.DefaultDatabaseDSN)
	v.SetDefault("output.path", internal.DefaultOutputPath)
	v.SetDefault("output.checkpoint", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// loadCredentials reads backend keys from the process environment, after an
// optional .env file. Keys are never part of the viper tree.
func loadCredentials(cfg *Config) error {
	if err := godotenv.Load(internal.DefaultDotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", internal.DefaultDotEnvPath, err)
	}
	cfg.LLM.APIKey = strings.TrimSpace(os.Getenv(internal.GenerationAPIKeyEnv))
	cfg.Embedding.APIKey = strings.TrimSpace(os.Getenv(internal.EmbeddingAPIKeyEnv))
	return nil
}

// SeedIDs returns the configured seed ids in a stable order.
func (c *Config) SeedIDs() []string {
	ids := make([]string, 0, len(c.SeedTexts))
	for id := range c.SeedTexts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CheckpointPath is where partial artifacts are written.
func (c *Config) CheckpointPath() string {
	ext := filepath.Ext(c.Output.Path)
	return strings.TrimSuffix(c.Output.Path, ext) + ".partial" + ext
}
