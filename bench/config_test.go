package bench

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ThreadCount)
	assert.Equal(t, "plain", cfg.Variant)
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	yaml := []byte("thread_count: 16\nvariant: stump\nfanout: 4\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.ThreadCount)
	assert.Equal(t, "stump", cfg.Variant)
	// fields not present in the YAML keep their defaults
	assert.EqualValues(t, 100, cfg.DiffRange)
}

func TestValidateRejectsUnknownVariant(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variant = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroThreadCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 0
	assert.Error(t, cfg.Validate())
}

func TestEnvOverridesVariant(t *testing.T) {
	t.Setenv("SCOUNT_VARIANT", "funnel")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "funnel", cfg.Variant)
}
