// Package config loads the engine configuration from a YAML file with
// sensible defaults for every field.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Compaction CompactionConfig `yaml:"compaction"`
	Links      LinksConfig      `yaml:"links"`
	Classify   ClassifyConfig   `yaml:"classify"`
	Lens       LensConfig       `yaml:"lens"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type EmbedderConfig struct {
	// Kind selects the backend: "hash" (deterministic, offline) or "onnx".
	Kind       string `yaml:"kind"`
	Dimensions int    `yaml:"dimensions"`

	// ONNX backend settings, ignored for other kinds.
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path"`
}

type CompactionConfig struct {
	Threshold float64 `yaml:"threshold"`
}

type LinksConfig struct {
	MinCount int `yaml:"min_count"`
}

type ClassifyConfig struct {
	SampleSize int           `yaml:"sample_size"`
	SignalTTL  time.Duration `yaml:"signal_ttl"`
}

type LensConfig struct {
	BaseItems int `yaml:"base_items"`
	BaseChars int `yaml:"base_chars"`
}

type MetricsConfig struct {
	// ListenAddr serves /metrics when non-empty (long-running maintenance
	// mode only).
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "conductor.db"},
		Embedder: EmbedderConfig{Kind: "hash", Dimensions: 384},
		Compaction: CompactionConfig{
			Threshold: 0.85,
		},
		Links: LinksConfig{MinCount: 3},
		Classify: ClassifyConfig{
			SampleSize: 50,
			SignalTTL:  30 * time.Minute,
		},
		Lens: LensConfig{
			BaseItems: 10,
			BaseChars: 2000,
		},
	}
}

// Load reads a YAML file over the defaults. A missing path returns the
// defaults; a present but unreadable or invalid file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
