package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/mnemo/internal/observability"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbeddingIdentity is the (provider, model, dimension) triple binding a
// store to one embedding space.
type EmbeddingIdentity struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// EmbeddingProvider generates vector embeddings from text. Implementations
// must fail loudly on backend unavailability, never return zero vectors.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Identity() EmbeddingIdentity
}

// OpenAIProvider implements EmbeddingProvider over the OpenAI embeddings API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
	timeout   time.Duration
}

// NewOpenAIProvider creates a new OpenAI embedding provider. The timeout
// bounds every API call; embedding is the only external-network operation
// in the system and must not hang callers indefinitely.
func NewOpenAIProvider(apiKey, model string, dimension int, timeout time.Duration) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		dimension: dimension,
		timeout:   timeout,
	}
}

// Identity returns the provider identity used by the config guard
func (p *OpenAIProvider) Identity() EmbeddingIdentity {
	return EmbeddingIdentity{
		Provider:  "openai",
		Model:     p.model,
		Dimension: p.dimension,
	}
}

// GenerateEmbedding embeds a single text
func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// GenerateEmbeddings embeds a batch of texts in one API call
func (p *OpenAIProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		observability.RecordEmbedding(time.Since(start))
	}()

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) != p.dimension {
			return nil, fmt.Errorf("openai returned embedding of dimension %d, expected %d", len(data.Embedding), p.dimension)
		}
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}

	return embeddings, nil
}
