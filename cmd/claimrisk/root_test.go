package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/claimrisk/internal/artifact"
	"github.com/gyeh/claimrisk/internal/config"
)

func resetConfig(t *testing.T) {
	t.Helper()
	saved, savedPath := cfg, configPath
	t.Cleanup(func() { cfg, configPath = saved, savedPath })
}

func TestConfigFileFlagsWin(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "claimrisk.yaml")
	yml := `model_name: from_file
model_dir: /srv/models
scoring:
  batch_size: 250
  run_timeout: 90s
training:
  seed: 7
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	require.NoError(t, rootCmd.ParseFlags([]string{"--config", path, "--model-name", "from_flag"}))
	require.NoError(t, loadConfigFile(rootCmd, nil))

	assert.Equal(t, "from_flag", cfg.ModelName)
	assert.Equal(t, "/srv/models", cfg.ModelDir)
	assert.Equal(t, 250, cfg.Scoring.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.Scoring.RunTimeout)
	assert.EqualValues(t, 7, cfg.Training.Seed)
}

func TestConfigFileInvalid(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("training:\n  test_fraction: 1.5\n"), 0o644))

	configPath = path
	assert.Error(t, loadConfigFile(rootCmd, nil))
}

func TestEngineOptions(t *testing.T) {
	resetConfig(t)
	cfg = config.Default()
	cfg.ModelName = "m1"
	cfg.Scoring.BetweennessCeiling = 100
	cfg.Scoring.Workers = 3
	cfg.Scoring.BatchSize = 17

	store := artifact.FileStore{Dir: t.TempDir()}
	opts := engineOptions(store)
	assert.Equal(t, "m1", opts.ModelName)
	assert.Equal(t, 100, opts.Graph.BetweennessCeiling)
	assert.Equal(t, 3, opts.Features.Workers)
	assert.Equal(t, 17, opts.BatchSize)
	assert.Equal(t, 10, opts.TopFeatures)
	assert.Equal(t, store, opts.Artifacts)
}

func TestArtifactStoreWithoutDatabase(t *testing.T) {
	resetConfig(t)
	cfg.ModelDir = "models-dir"
	assert.Equal(t, artifact.FileStore{Dir: "models-dir"}, artifactStore(nil))
}
