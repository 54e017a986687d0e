// Package thirdeye holds application-wide names and default locations shared by
// the configuration layer and the command line.
package thirdeye

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppName    = "thirdeye"
	DefaultEnvPrefix  = "THIRDEYE"
	DefaultConfigName = "config"

	// Credential environment keys. Values are read once at startup and never persisted.
	GenerationAPIKeyEnv = "ANTHROPIC_API_KEY"
	EmbeddingAPIKeyEnv  = "OPENAI_API_KEY"

	DefaultRounds = 10
)

var (
	DefaultDataDir     = "data"
	DefaultOutputPath  = filepath.Join(DefaultDataDir, "third_eye_results.json")
	DefaultDatabaseDSN = filepath.Join(DefaultDataDir, "third_eye.db")
	DefaultConfigPath  = defaultConfigPath()
	DefaultDotEnvPath  = ".env"
)

// DefaultSeedTexts returns the material debated by default, keyed by seed id.
func DefaultSeedTexts() map[string]string {
	return map[string]string{
		"recipe":    "Combine two cups of flour with one teaspoon of salt. Cut in cold butter until the mixture resembles coarse crumbs.",
		"love_poem": "I carry your heart with me, I carry it in my heart. I am never without it, anywhere I go you go.",
		"math":      "There are more real numbers between 0 and 1 than there are integers in all of infinity.",
		"noise":     "glorp fniggle vass eerst blee",
	}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, DefaultAppName)
	}
	return filepath.Join(".config", DefaultAppName)
}
