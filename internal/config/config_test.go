package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Errorf("Load(missing) = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadDecodesAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[search.weights]
fts = 1
semantic = 1
keyword = 2

[embeddings]
enabled = true
dim = 768

[promotion]
threshold = 10.0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Embeddings.Enabled || cfg.Embeddings.Dim != 768 {
		t.Errorf("embeddings = %+v, want enabled dim 768", cfg.Embeddings)
	}
	if cfg.Promotion.Threshold != 10.0 {
		t.Errorf("promotion.threshold = %v, want 10.0", cfg.Promotion.Threshold)
	}
	// weights 1,1,2 sum to 4 -> normalized to 0.25/0.25/0.5
	if cfg.Search.Weights.FTS != 0.25 || cfg.Search.Weights.Keyword != 0.5 {
		t.Errorf("weights not normalized: %+v", cfg.Search.Weights)
	}
}

func TestNormalizeWeightsFallsBackOnNonPositiveSum(t *testing.T) {
	c := Config{Search: SearchConfig{Weights: SearchWeights{FTS: 0, Semantic: 0, Keyword: 0}}}
	c.normalizeWeights()
	if c.Search.Weights != Default().Search.Weights {
		t.Errorf("expected fallback to defaults, got %+v", c.Search.Weights)
	}
}
