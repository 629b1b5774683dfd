package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingProvider for testing (generates deterministic embeddings)
type MockEmbeddingProvider struct {
	dimension int
	failAll   bool
	failText  string
}

func NewMockEmbeddingProvider(dimension int) *MockEmbeddingProvider {
	return &MockEmbeddingProvider{dimension: dimension}
}

func (p *MockEmbeddingProvider) Identity() EmbeddingIdentity {
	return EmbeddingIdentity{
		Provider:  "mock",
		Model:     "mock-embed",
		Dimension: p.dimension,
	}
}

func (p *MockEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if p.failAll || (p.failText != "" && text == p.failText) {
		return nil, assert.AnError
	}

	// Generate deterministic embedding based on text hash
	embedding := make([]float32, p.dimension)
	hash := 0
	for _, c := range text {
		hash = hash*31 + int(c)
	}

	for i := 0; i < p.dimension; i++ {
		embedding[i] = float32((hash+i)%100) / 100.0
	}

	return embedding, nil
}

func (p *MockEmbeddingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func TestMockEmbeddingProvider_Deterministic(t *testing.T) {
	p := NewMockEmbeddingProvider(64)

	a, err := p.GenerateEmbedding(context.Background(), "same text")
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestMockEmbeddingProvider_Batch(t *testing.T) {
	p := NewMockEmbeddingProvider(16)

	embeddings, err := p.GenerateEmbeddings(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.NotEqual(t, embeddings[0], embeddings[1])
}

func TestOpenAIProvider_Identity(t *testing.T) {
	p := NewOpenAIProvider("test-key", "text-embedding-3-small", 1536, 0)

	identity := p.Identity()
	assert.Equal(t, "openai", identity.Provider)
	assert.Equal(t, "text-embedding-3-small", identity.Model)
	assert.Equal(t, 1536, identity.Dimension)
}

func TestOpenAIProvider_EmptyBatch(t *testing.T) {
	p := NewOpenAIProvider("test-key", "text-embedding-3-small", 1536, 0)

	embeddings, err := p.GenerateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}
