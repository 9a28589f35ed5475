package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.CurrentContext)
	assert.Empty(t, cfg.Contexts)
	assert.Equal(t, path, cfg.Path())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.AddContext("dev", &Context{Server: "http://localhost:8080"})
	cfg.AddContext("prod", &Context{Server: "https://lexd.example.com", InsecureSkipVerify: true})
	require.NoError(t, cfg.SetCurrentContext("prod"))
	require.NoError(t, cfg.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", loaded.CurrentContext)
	require.Len(t, loaded.Contexts, 2)

	current, err := loaded.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "prod", current.Name)
	assert.Equal(t, "https://lexd.example.com", current.Server)
	assert.True(t, current.InsecureSkipVerify)
}

func TestContexts(t *testing.T) {
	cfg := &Config{}

	_, err := cfg.GetCurrentContext()
	assert.Error(t, err)
	assert.Error(t, cfg.SetCurrentContext("missing"))

	cfg.AddContext("dev", &Context{Server: "http://localhost:8080"})
	require.NoError(t, cfg.SetCurrentContext("dev"))
	require.NoError(t, cfg.RemoveContext("dev"))
	assert.Empty(t, cfg.CurrentContext)
	assert.Error(t, cfg.RemoveContext("dev"))
}

func TestDefaultPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfig, "/tmp/lexctl.yaml")
	assert.Equal(t, "/tmp/lexctl.yaml", DefaultPath())
}
