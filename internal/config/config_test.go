package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: rules.yaml\ndata: students.csv\nlog_level: debug\n"), 0o644))
	t.Setenv("REX_DATA", "override.csv")
	t.Setenv("REX_PRETTY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rules.yaml", cfg.Rules)
	assert.Equal(t, "override.csv", cfg.Data)
	assert.True(t, cfg.Pretty)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)
}

func TestLoadJSONAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rex.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema": "facts.json"}`), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "facts.json", cfg.Schema)
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = Config{LogLevel: "loud"}.Level()
	assert.Error(t, err)
}
