package memory

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRetriever(t *testing.T) (*Retriever, *Service, *Store, func()) {
	t.Helper()

	store, cleanup := createTestStore(t)
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	provider := NewMockEmbeddingProvider(testDimension)

	retriever, err := NewRetriever(RetrieverConfig{
		Store:         store,
		Provider:      provider,
		VectorWeight:  0.7,
		KeywordWeight: 0.3,
		Logger:        logger,
	})
	require.NoError(t, err)

	service := NewService(store, provider, logger)

	return retriever, service, store, cleanup
}

func TestNewRetriever_InvalidConfig(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	provider := NewMockEmbeddingProvider(testDimension)

	tests := []struct {
		name string
		cfg  RetrieverConfig
	}{
		{name: "missing store", cfg: RetrieverConfig{Provider: provider, VectorWeight: 1}},
		{name: "missing provider", cfg: RetrieverConfig{Store: store, VectorWeight: 1}},
		{name: "negative weight", cfg: RetrieverConfig{Store: store, Provider: provider, VectorWeight: -1, KeywordWeight: 1}},
		{name: "zero weights", cfg: RetrieverConfig{Store: store, Provider: provider}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRetriever(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, r)
		})
	}
}

func TestSearch_FindsByKeyword(t *testing.T) {
	retriever, service, _, cleanup := createTestRetriever(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Add(ctx, AddParams{Content: "PostgreSQL connection pooling configuration"})
	require.NoError(t, err)
	_, err = service.Add(ctx, AddParams{Content: "Frontend uses React with hooks"})
	require.NoError(t, err)

	results, err := retriever.Search(ctx, "PostgreSQL pooling", SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Content, "PostgreSQL")
}

func TestSearch_EmptyStore(t *testing.T) {
	retriever, _, _, cleanup := createTestRetriever(t)
	defer cleanup()

	results, err := retriever.Search(context.Background(), "anything", SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_LimitRespected(t *testing.T) {
	retriever, service, _, cleanup := createTestRetriever(t)
	defer cleanup()

	ctx := context.Background()
	for _, content := range []string{
		"note about databases one",
		"note about databases two",
		"note about databases three",
		"note about databases four",
	} {
		_, err := service.Add(ctx, AddParams{Content: content})
		require.NoError(t, err)
	}

	results, err := retriever.Search(ctx, "databases note", SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestSearch_UsageIncrementEventually(t *testing.T) {
	retriever, service, store, cleanup := createTestRetriever(t)
	defer cleanup()

	ctx := context.Background()
	rec, err := service.Add(ctx, AddParams{Content: "usage bookkeeping target note"})
	require.NoError(t, err)

	results, err := retriever.Search(ctx, "usage bookkeeping", SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The usage write-back is fire-and-forget
	assert.Eventually(t, func() bool {
		got, err := store.FindByID(ctx, rec.ID)
		if err != nil {
			return false
		}
		return got.UsageCount == 1 && got.LastUsed > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSearch_BoostPromotesFrequentlyUsed(t *testing.T) {
	retriever, service, store, cleanup := createTestRetriever(t)
	defer cleanup()

	ctx := context.Background()
	// Identical content gives identical base scores, so only usage differs
	a, err := service.Add(ctx, AddParams{Content: "shared topic variant note"})
	require.NoError(t, err)
	b, err := service.Add(ctx, AddParams{Content: "shared topic variant note"})
	require.NoError(t, err)

	// Heavily used b should outrank a under boosting for a neutral query
	now := time.Now().UnixMilli()
	for i := 0; i < 10; i++ {
		require.NoError(t, store.BumpUsage(ctx, []string{b.ID}, now))
	}

	boosted, err := retriever.Search(ctx, "shared topic variant", SearchOptions{Limit: 2, BoostFrequent: true})
	require.NoError(t, err)
	require.Len(t, boosted, 2)

	var scoreA, scoreB float64
	for _, res := range boosted {
		switch res.ID {
		case a.ID:
			scoreA = res.Score
		case b.ID:
			scoreB = res.Score
		}
	}
	assert.Less(t, scoreB, scoreA, "heavily used memory should carry the lower (better) score")
}

func TestRelated_ExcludesSelf(t *testing.T) {
	retriever, service, _, cleanup := createTestRetriever(t)
	defer cleanup()

	ctx := context.Background()
	src, err := service.Add(ctx, AddParams{Content: "deployment checklist for staging"})
	require.NoError(t, err)
	_, err = service.Add(ctx, AddParams{Content: "deployment checklist for production"})
	require.NoError(t, err)

	results, err := retriever.Related(ctx, src.ID, SearchOptions{Limit: 5})
	require.NoError(t, err)
	for _, res := range results {
		assert.NotEqual(t, src.ID, res.ID)
	}
}

func TestRelated_NotFound(t *testing.T) {
	retriever, _, _, cleanup := createTestRetriever(t)
	defer cleanup()

	_, err := retriever.Related(context.Background(), "missing", SearchOptions{Limit: 5})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelated_BoostPromotesFrequentlyUsed(t *testing.T) {
	retriever, service, store, cleanup := createTestRetriever(t)
	defer cleanup()

	ctx := context.Background()
	src, err := service.Add(ctx, AddParams{Content: "shared topic variant note"})
	require.NoError(t, err)

	// Identical content gives identical base scores, so only usage differs
	a, err := service.Add(ctx, AddParams{Content: "shared topic variant note"})
	require.NoError(t, err)
	b, err := service.Add(ctx, AddParams{Content: "shared topic variant note"})
	require.NoError(t, err)

	now := time.Now().UnixMilli()
	for i := 0; i < 10; i++ {
		require.NoError(t, store.BumpUsage(ctx, []string{b.ID}, now))
	}

	boosted, err := retriever.Related(ctx, src.ID, SearchOptions{Limit: 2, BoostFrequent: true})
	require.NoError(t, err)
	require.Len(t, boosted, 2)

	var scoreA, scoreB float64
	for _, res := range boosted {
		switch res.ID {
		case a.ID:
			scoreA = res.Score
		case b.ID:
			scoreB = res.Score
		}
	}
	assert.Less(t, scoreB, scoreA, "heavily used memory should carry the lower (better) score")
}

func TestRelated_DoesNotBumpSourceUsage(t *testing.T) {
	retriever, service, store, cleanup := createTestRetriever(t)
	defer cleanup()

	ctx := context.Background()
	src, err := service.Add(ctx, AddParams{Content: "incident runbook for the search cluster"})
	require.NoError(t, err)
	other, err := service.Add(ctx, AddParams{Content: "incident runbook for the cache cluster"})
	require.NoError(t, err)

	results, err := retriever.Related(ctx, src.ID, SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	retriever.WaitForUsageWrites()

	got, err := store.FindByID(ctx, src.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UsageCount, "querying a memory's related set is not a retrieval of it")

	// The returned neighbors still get their bump
	gotOther, err := store.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotOther.UsageCount)
}

func TestMergeResults(t *testing.T) {
	r := &Retriever{vectorWeight: 0.7, keywordWeight: 0.3}

	scored := r.mergeResults(
		[]vectorHit{
			{memoryID: "a", distance: 0.0},
			{memoryID: "b", distance: 0.5},
		},
		[]keywordHit{
			{memoryID: "a", bm25Score: 4.0},
			{memoryID: "c", bm25Score: 2.0},
		},
	)

	// a: both legs, perfect vector match and best keyword hit
	assert.InDelta(t, 0.0, scored["a"], 1e-9)
	// b: vector only
	assert.InDelta(t, 1.0-0.7*0.5, scored["b"], 1e-9)
	// c: keyword only, half the best bm25
	assert.InDelta(t, 1.0-0.3*0.5, scored["c"], 1e-9)

	// Lower score must mean better match
	assert.Less(t, scored["a"], scored["b"])
	assert.Less(t, scored["a"], scored["c"])
}

func TestBoostScore(t *testing.T) {
	// Never used: unchanged
	assert.InDelta(t, 0.5, boostScore(0.5, 0), 1e-9)
	// Half the cap: half the weight applied
	assert.InDelta(t, 0.5*(1-0.5*0.4), boostScore(0.5, 5), 1e-9)
	// At the cap: full weight
	assert.InDelta(t, 0.5*0.6, boostScore(0.5, 10), 1e-9)
	// Beyond the cap: clamped
	assert.InDelta(t, 0.5*0.6, boostScore(0.5, 100), 1e-9)
}
