// Package config loads Rekall's config.toml (spec.md §6) from a single
// path over built-in defaults; no project or user directories are
// searched. The teacher's viper-based loader is replaced here with
// BurntSushi/toml decoding into a typed struct, since spec.md §6 fixes
// TOML as the one config format.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SearchWeights are the fusion weights of spec.md §4.4 step 5.
type SearchWeights struct {
	FTS      float64 `toml:"fts"`
	Semantic float64 `toml:"semantic"`
	Keyword  float64 `toml:"keyword"`
}

// EmbeddingsConfig controls the embedding gateway (spec.md §4.3, §6).
type EmbeddingsConfig struct {
	Enabled bool `toml:"enabled"`
	Dim     int  `toml:"dim"`
	Model   string `toml:"model"`
}

// PromotionWeights are the scoring weights of spec.md §4.9.
type PromotionWeights struct {
	Citation float64 `toml:"citation"`
	Project  float64 `toml:"project"`
	Recency  float64 `toml:"recency"`
}

// PromotionConfig controls Scoring & Promotion (spec.md §4.9, §6).
type PromotionConfig struct {
	Weights    PromotionWeights `toml:"weights"`
	DecayDays  int              `toml:"decay_days"`
	Threshold  float64          `toml:"threshold"`
}

// EnrichmentConfig controls the Medallion enrichment job (spec.md §4.8, §6).
type EnrichmentConfig struct {
	BatchSize      int     `toml:"batch_size"`
	TimeoutSeconds float64 `toml:"timeout_seconds"`
	Concurrency    int     `toml:"concurrency"`
}

// ContextConfig bounds the context codec (spec.md §4.2, §6).
type ContextConfig struct {
	MaxSizeBytes int `toml:"max_size_bytes"`
}

// SearchConfig wraps the fusion weights table.
type SearchConfig struct {
	Weights SearchWeights `toml:"weights"`
}

// Config is the decoded shape of config.toml (spec.md §6's table).
type Config struct {
	Search     SearchConfig     `toml:"search"`
	Embeddings EmbeddingsConfig `toml:"embeddings"`
	Promotion  PromotionConfig  `toml:"promotion"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Context    ContextConfig    `toml:"context"`
}

// Default returns the configuration defaults table from spec.md §6,
// applied before any config.toml is decoded over it.
func Default() Config {
	return Config{
		Search: SearchConfig{
			Weights: SearchWeights{FTS: 0.5, Semantic: 0.3, Keyword: 0.2},
		},
		Embeddings: EmbeddingsConfig{
			Enabled: false,
			Dim:     384,
			Model:   "nomic-embed-text",
		},
		Promotion: PromotionConfig{
			Weights:   PromotionWeights{Citation: 1.0, Project: 2.0, Recency: 0.5},
			DecayDays: 30,
			Threshold: 5.0,
		},
		Enrichment: EnrichmentConfig{
			BatchSize:      50,
			TimeoutSeconds: 5.0,
			Concurrency:    8,
		},
		Context: ContextConfig{
			MaxSizeBytes: 65536,
		},
	}
}

// Load decodes config.toml at path over the defaults. A missing file is
// not an error: Default() is returned unmodified, matching the teacher's
// "no config.yaml found; use defaults" fallback.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.normalizeWeights()
	return cfg, nil
}

// normalizeWeights re-normalizes the fusion weights to sum to 1 if the
// configured values do not, per spec.md §6's "Weights must sum to a
// positive value; fusion re-normalizes if they do not sum to 1."
func (c *Config) normalizeWeights() {
	w := &c.Search.Weights
	sum := w.FTS + w.Semantic + w.Keyword
	if sum <= 0 {
		*w = Default().Search.Weights
		return
	}
	if sum != 1 {
		w.FTS /= sum
		w.Semantic /= sum
		w.Keyword /= sum
	}
}

// DefaultDataDir returns "rekall" under the OS user config directory
// (os.UserConfigDir, $XDG_CONFIG_HOME on Linux) as the home of
// rekall.db/config.toml/backups (spec.md §6's "On-disk layout").
func DefaultDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(base, "rekall"), nil
}
