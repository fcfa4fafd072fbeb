package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hash", cfg.Embedder.Kind)
	assert.Equal(t, 384, cfg.Embedder.Dimensions)
	assert.Equal(t, 0.85, cfg.Compaction.Threshold)
	assert.Equal(t, 3, cfg.Links.MinCount)
	assert.Equal(t, 30*time.Minute, cfg.Classify.SignalTTL)
	assert.Equal(t, 10, cfg.Lens.BaseItems)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	body := []byte(`
database:
  path: /tmp/mem.db
embedder:
  kind: onnx
  dimensions: 384
  model_path: /models/minilm.onnx
compaction:
  threshold: 0.9
classify:
  sample_size: 25
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/mem.db", cfg.Database.Path)
	assert.Equal(t, "onnx", cfg.Embedder.Kind)
	assert.Equal(t, 0.9, cfg.Compaction.Threshold)
	assert.Equal(t, 25, cfg.Classify.SampleSize)
	// Untouched sections keep defaults.
	assert.Equal(t, 30*time.Minute, cfg.Classify.SignalTTL)
	assert.Equal(t, 3, cfg.Links.MinCount)
	assert.Equal(t, 2000, cfg.Lens.BaseChars)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
