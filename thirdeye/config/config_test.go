package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	internal "github.com/ZanzyTHEbar/third-eye/thirdeye"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()

	// Run from an empty directory so no stray config.yaml or .env is picked up
	require.NoError(suite.T(), os.Chdir(suite.tempDir))

	suite.T().Setenv(internal.GenerationAPIKeyEnv, "")
	suite.T().Setenv(internal.EmbeddingAPIKeyEnv, "")
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), internal.DefaultRounds, cfg.Experiment.Rounds)
	assert.Equal(suite.T(), 0, cfg.Experiment.ContextRounds)
	assert.Equal(suite.T(), 0.9, cfg.Thresholds.Convergence)
	assert.Equal(suite.T(), 0.3, cfg.Thresholds.Divergence)
	assert.Equal(suite.T(), 0.1, cfg.Thresholds.EquidistanceEpsilon)
	assert.Equal(suite.T(), 400, cfg.LLM.MaxTokens)
	assert.Equal(suite.T(), 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(suite.T(), 3*time.Second, cfg.Harness.RateLimitRefillRate)
	assert.Equal(suite.T(), internal.DefaultOutputPath, cfg.Output.Path)
	assert.Equal(suite.T(), []string{"love_poem", "math", "noise", "recipe"}, cfg.SeedIDs())
	assert.Equal(suite.T(), "glorp fniggle vass eerst blee", cfg.SeedTexts["noise"])
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
experiment:
  rounds: 3
  concurrency: 4
  context_rounds: 2
thresholds:
  convergence: 0.95
  divergence: 0.2
llm:
  model: "test-model"
  timeout: "5s"
seed_texts:
  noise: "glorp fniggle vass eerst blee"
`

	configFile := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte(configContent), 0o644))

	cfg, err := LoadConfig(configFile)

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), 3, cfg.Experiment.Rounds)
	assert.Equal(suite.T(), 4, cfg.Experiment.Concurrency)
	assert.Equal(suite.T(), 2, cfg.Experiment.ContextRounds)
	assert.Equal(suite.T(), 0.95, cfg.Thresholds.Convergence)
	assert.Equal(suite.T(), 0.2, cfg.Thresholds.Divergence)
	assert.Equal(suite.T(), "test-model", cfg.LLM.Model)
	assert.Equal(suite.T(), 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(suite.T(), map[string]string{"noise": "glorp fniggle vass eerst blee"}, cfg.SeedTexts)
}

func (suite *ConfigTestSuite) TestLoadConfigEnvOverride() {
	suite.T().Setenv("THIRDEYE_EXPERIMENT_ROUNDS", "7")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 7, cfg.Experiment.Rounds)
}

func (suite *ConfigTestSuite) TestLoadConfigReadsCredentialFromEnv() {
	suite.T().Setenv(internal.GenerationAPIKeyEnv, "  sk-test  ")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "sk-test", cfg.LLM.APIKey)
}

func (suite *ConfigTestSuite) TestLoadConfigReadsDotEnv() {
	require.NoError(suite.T(), os.WriteFile(filepath.Join(suite.tempDir, ".env"), []byte("ANTHROPIC_API_KEY=sk-from-dotenv\n"), 0o600))
	// godotenv never overrides variables already present, so drop the empty one set in SetupTest.
	os.Unsetenv(internal.GenerationAPIKeyEnv)

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "sk-from-dotenv", cfg.LLM.APIKey)
	os.Unsetenv(internal.GenerationAPIKeyEnv)
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	malformedContent := `
experiment:
  rounds: 3
  invalid_yaml: [unclosed bracket
`

	configFile := filepath.Join(suite.tempDir, "malformed.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte(malformedContent), 0o644))

	cfg, err := LoadConfig(configFile)

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestCheckpointPath() {
	cfg := &Config{Output: OutputConfig{Path: filepath.Join("data", "results.json")}}
	assert.Equal(suite.T(), filepath.Join("data", "results.partial.json"), cfg.CheckpointPath())
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv(internal.GenerationAPIKeyEnv, "sk-test")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero-rounds", func(c *Config) { c.Experiment.Rounds = 0 }, "experiment.rounds"},
		{"negative-rounds", func(c *Config) { c.Experiment.Rounds = -2 }, "experiment.rounds"},
		{"empty-seeds", func(c *Config) { c.SeedTexts = map[string]string{} }, "seed_texts"},
		{"blank-seed", func(c *Config) { c.SeedTexts = map[string]string{"noise": "  "} }, "seed_texts.noise"},
		{"missing-credential", func(c *Config) { c.LLM.APIKey = "" }, "llm.api_key"},
		{"inverted-thresholds", func(c *Config) { c.Thresholds.Convergence = 0.2 }, "thresholds"},
		{"negative-epsilon", func(c *Config) { c.Thresholds.EquidistanceEpsilon = -0.1 }, "thresholds.equidistance_epsilon"},
		{"zero-concurrency", func(c *Config) { c.Experiment.Concurrency = 0 }, "experiment.concurrency"},
		{"unknown-provider", func(c *Config) { c.LLM.Provider = "mystery" }, "llm.provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.Contains(t, err.Error(), tt.wantErr)

			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

// BenchmarkLoadConfig benchmarks config loading performance
func BenchmarkLoadConfig(b *testing.B) {
	for b.Loop() {
		cfg, err := LoadConfig("")
		if err != nil {
			b.Fatal(err)
		}
		_ = cfg
	}
}
