package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/mnemo/internal/observability"
	"github.com/harun/mnemo/internal/tracing"
)

const (
	// candidateMultiplier widens each search leg so usage boosting can
	// reorder beyond the requested page.
	candidateMultiplier = 3

	// usageBoostCap and usageBoostWeight shape the frequency boost: a
	// memory retrieved usageBoostCap or more times gets the full
	// usageBoostWeight reduction of its distance score.
	usageBoostCap    = 10
	usageBoostWeight = 0.4

	defaultSearchLimit = 5
)

// Retriever runs hybrid vector+keyword search over a Store. Both legs run
// in parallel; if one fails the other's results are still returned.
type Retriever struct {
	store         *Store
	provider      EmbeddingProvider
	vectorWeight  float64
	keywordWeight float64
	logger        zerolog.Logger

	// usageWrites tracks in-flight usage write-backs so Close and tests
	// can wait for them.
	usageWrites sync.WaitGroup
}

// RetrieverConfig holds retriever configuration
type RetrieverConfig struct {
	Store         *Store
	Provider      EmbeddingProvider
	VectorWeight  float64
	KeywordWeight float64
	Logger        zerolog.Logger
}

// NewRetriever creates a retriever with the given leg weights. Weights
// must be non-negative with a positive sum; they are normalized here so
// merged scores land in [0, 1].
func NewRetriever(cfg RetrieverConfig) (*Retriever, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if cfg.VectorWeight < 0 || cfg.KeywordWeight < 0 {
		return nil, fmt.Errorf("search weights must be non-negative")
	}
	sum := cfg.VectorWeight + cfg.KeywordWeight
	if sum <= 0 {
		return nil, fmt.Errorf("at least one search weight must be positive")
	}

	return &Retriever{
		store:         cfg.Store,
		provider:      cfg.Provider,
		vectorWeight:  cfg.VectorWeight / sum,
		keywordWeight: cfg.KeywordWeight / sum,
		logger:        cfg.Logger,
	}, nil
}

// Search runs hybrid retrieval for the query. Results come back sorted by
// score ascending (lower = more relevant). Every returned memory has its
// usage statistics bumped asynchronously; a failed bump is logged and
// never affects the response.
func (r *Retriever) Search(ctx context.Context, query string, opts SearchOptions) ([]RankedResult, error) {
	ctx, span := tracing.StartSpan(ctx, "memory.search")
	defer span.End()

	return r.search(ctx, query, opts, "")
}

// Related returns memories similar to an existing one, excluding itself.
// Returns ErrNotFound when the id does not exist.
func (r *Retriever) Related(ctx context.Context, id string, opts SearchOptions) ([]RankedResult, error) {
	ctx, span := tracing.StartSpan(ctx, "memory.related")
	defer span.End()

	rec, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// The source memory would be its own best match. Excluding it inside
	// the search keeps it out of the results and the usage write-back.
	return r.search(ctx, rec.Content, opts, id)
}

// search is the shared retrieval pipeline. excludeID drops one memory from
// the candidates before ranking, truncation, and usage bookkeeping.
func (r *Retriever) search(ctx context.Context, query string, opts SearchOptions, excludeID string) ([]RankedResult, error) {
	start := time.Now()

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	fetchLimit := limit * candidateMultiplier

	queryEmbedding, err := r.provider.GenerateEmbedding(ctx, query)
	if err != nil {
		observability.RecordSearch(time.Since(start), false)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var wg sync.WaitGroup
	var vectorHits []vectorHit
	var keywordHits []keywordHit
	var vectorErr, keywordErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = r.store.vectorSearch(ctx, queryEmbedding, fetchLimit)
	}()
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = r.store.keywordSearch(ctx, query, fetchLimit)
	}()
	wg.Wait()

	// Graceful degradation: one leg failing still yields results from
	// the other. Both failing is an error.
	if vectorErr != nil && keywordErr != nil {
		observability.RecordSearch(time.Since(start), false)
		return nil, fmt.Errorf("search failed: vector: %v; keyword: %v", vectorErr, keywordErr)
	}
	if vectorErr != nil {
		r.logger.Warn().Err(vectorErr).Msg("Vector search failed, using keyword results only")
		vectorHits = nil
	}
	if keywordErr != nil {
		r.logger.Warn().Err(keywordErr).Msg("Keyword search failed, using vector results only")
		keywordHits = nil
	}

	scored := r.mergeResults(vectorHits, keywordHits)
	if len(scored) == 0 {
		observability.RecordSearch(time.Since(start), true)
		return []RankedResult{}, nil
	}

	ids := make([]string, 0, len(scored))
	for id := range scored {
		ids = append(ids, id)
	}
	records, err := r.store.loadByIDs(ctx, ids)
	if err != nil {
		observability.RecordSearch(time.Since(start), false)
		return nil, err
	}

	results := make([]RankedResult, 0, len(records))
	for id, score := range scored {
		if excludeID != "" && id == excludeID {
			continue
		}
		rec, ok := records[id]
		if !ok {
			// Index row without a base row; skip rather than fail.
			continue
		}
		results = append(results, RankedResult{
			ID:         rec.ID,
			Content:    rec.Content,
			Score:      score,
			Timestamp:  rec.Timestamp,
			Project:    rec.Project,
			Tags:       rec.Tags,
			UsageCount: rec.UsageCount,
		})
	}

	if opts.BoostFrequent {
		for i := range results {
			results[i].Score = boostScore(results[i].Score, results[i].UsageCount)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}

	r.recordUsage(results)

	observability.RecordSearch(time.Since(start), true)
	r.logger.Debug().
		Int("results", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("Hybrid search completed")

	return results, nil
}

// mergeResults combines both legs into one distance-like score per id.
// Vector distances already live in [0, 1] for cosine; bm25 scores are
// normalized by the best keyword hit. The weighted relevance is then
// inverted so lower scores mean better matches throughout.
func (r *Retriever) mergeResults(vectorHits []vectorHit, keywordHits []keywordHit) map[string]float64 {
	relevance := make(map[string]float64)

	for _, h := range vectorHits {
		similarity := 1.0 - h.distance
		if similarity < 0 {
			similarity = 0
		}
		relevance[h.memoryID] += r.vectorWeight * similarity
	}

	var maxBM25 float64
	for _, h := range keywordHits {
		if h.bm25Score > maxBM25 {
			maxBM25 = h.bm25Score
		}
	}
	if maxBM25 > 0 {
		for _, h := range keywordHits {
			relevance[h.memoryID] += r.keywordWeight * (h.bm25Score / maxBM25)
		}
	}

	scored := make(map[string]float64, len(relevance))
	for id, rel := range relevance {
		scored[id] = 1.0 - rel
	}
	return scored
}

// boostScore reduces the distance score of frequently used memories:
// score * (1 - min(1, usage/cap) * weight). Caps at the configured
// maximum so heavy use cannot dominate relevance entirely.
func boostScore(score float64, usageCount int) float64 {
	factor := math.Min(1.0, float64(usageCount)/float64(usageBoostCap))
	return score * (1.0 - factor*usageBoostWeight)
}

// recordUsage bumps usage statistics for the returned memories without
// blocking the response. Failures are logged and counted, never surfaced.
func (r *Retriever) recordUsage(results []RankedResult) {
	if len(results) == 0 {
		return
	}

	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.ID
	}
	now := time.Now().UnixMilli()

	r.usageWrites.Add(1)
	go func() {
		defer r.usageWrites.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.store.BumpUsage(ctx, ids, now); err != nil {
			observability.RecordUsageWriteFailure()
			r.logger.Warn().Err(err).Int("count", len(ids)).Msg("Failed to update usage statistics")
		}
	}()
}

// WaitForUsageWrites blocks until all in-flight usage write-backs finish
func (r *Retriever) WaitForUsageWrites() {
	r.usageWrites.Wait()
}
