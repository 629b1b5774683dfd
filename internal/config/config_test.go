package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, 0.3, cfg.Search.KeywordWeight)
	assert.Equal(t, 8791, cfg.Gateway.Port)
	assert.Equal(t, "@hourly", cfg.Maintenance.Schedule)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "empty store path", mutate: func(c *Config) { c.Store.Path = "" }, wantErr: true},
		{name: "empty provider", mutate: func(c *Config) { c.Embedding.Provider = "" }, wantErr: true},
		{name: "empty model", mutate: func(c *Config) { c.Embedding.Model = "" }, wantErr: true},
		{name: "zero dimension", mutate: func(c *Config) { c.Embedding.Dimension = 0 }, wantErr: true},
		{name: "negative weight", mutate: func(c *Config) { c.Search.VectorWeight = -1 }, wantErr: true},
		{name: "zero weight sum", mutate: func(c *Config) {
			c.Search.VectorWeight = 0
			c.Search.KeywordWeight = 0
		}, wantErr: true},
		{name: "keyword only", mutate: func(c *Config) {
			c.Search.VectorWeight = 0
			c.Search.KeywordWeight = 1
		}, wantErr: false},
		{name: "bad gateway port", mutate: func(c *Config) {
			c.Gateway.Enabled = true
			c.Gateway.Port = 70000
			c.Gateway.SharedSecret = "s"
		}, wantErr: true},
		{name: "gateway without secret", mutate: func(c *Config) {
			c.Gateway.Enabled = true
			c.Gateway.SharedSecret = ""
		}, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mnemo.json")

	cfg := DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "memories.db")
	cfg.Embedding.Model = "text-embedding-3-large"
	cfg.Embedding.Dimension = 3072
	require.NoError(t, cfg.Save(path))

	// Written with restrictive permissions: the file can hold secrets
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", loaded.Embedding.Model)
	assert.Equal(t, 3072, loaded.Embedding.Dimension)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	loaded, err := NewLoader(filepath.Join(t.TempDir(), "nope.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", loaded.Embedding.Provider)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-env-key")
	t.Setenv("MNEMO_GATEWAY_SECRET", "env-secret")

	loaded, err := NewLoader(filepath.Join(t.TempDir(), "nope.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test-env-key", loaded.Embedding.APIKey)
	assert.Equal(t, "env-secret", loaded.Gateway.SharedSecret)
}
