package memory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigGuard_ReopenSameIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	identity := EmbeddingIdentity{Provider: "openai", Model: "text-embedding-3-small", Dimension: 1536}

	store, err := Open(StoreConfig{Path: path, Identity: identity, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(StoreConfig{Path: path, Identity: identity, Logger: logger})
	require.NoError(t, err)
	assert.Equal(t, identity, store.Identity())
	store.Close()
}

func TestConfigGuard_ModelChangeRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	store, err := Open(StoreConfig{
		Path:     path,
		Identity: EmbeddingIdentity{Provider: "openai", Model: "text-embedding-3-small", Dimension: 1536},
		Logger:   logger,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(StoreConfig{
		Path:     path,
		Identity: EmbeddingIdentity{Provider: "openai", Model: "text-embedding-3-large", Dimension: 3072},
		Logger:   logger,
	})
	require.Error(t, err)

	var mismatch *ConfigMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "text-embedding-3-small", mismatch.Stored.Model)
	assert.Equal(t, "text-embedding-3-large", mismatch.Active.Model)
	assert.Contains(t, mismatch.Error(), "text-embedding-3-small")
	assert.Contains(t, mismatch.Error(), "text-embedding-3-large")
}

func TestConfigGuard_ProviderChangeRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	store, err := Open(StoreConfig{
		Path:     path,
		Identity: EmbeddingIdentity{Provider: "openai", Model: "text-embedding-3-small", Dimension: 1536},
		Logger:   logger,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(StoreConfig{
		Path:     path,
		Identity: EmbeddingIdentity{Provider: "mock", Model: "text-embedding-3-small", Dimension: 1536},
		Logger:   logger,
	})

	var mismatch *ConfigMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "openai", mismatch.Stored.Provider)
	assert.Equal(t, "mock", mismatch.Active.Provider)
}
