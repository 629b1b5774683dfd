package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/mnemo/internal/observability"
	"github.com/harun/mnemo/internal/tracing"
)

// Service is the write-side lifecycle manager: add, update, delete, list.
// It owns id generation and embedding orchestration; the store stays a
// dumb persistence layer underneath.
type Service struct {
	store    *Store
	provider EmbeddingProvider
	logger   zerolog.Logger
}

// NewService creates a lifecycle service over the store
func NewService(store *Store, provider EmbeddingProvider, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		logger:   logger,
	}
}

// AddParams describes one memory to create
type AddParams struct {
	Content string
	Project string
	Tags    []string
}

// UpdateParams describes a partial update. Nil fields are left untouched;
// nil Tags means "keep existing tags", an empty non-nil slice clears them.
type UpdateParams struct {
	Content *string
	Project *string
	Tags    []string
	SetTags bool
}

// Add stores one memory and returns its generated id. Embedding failure
// aborts the whole operation; nothing is written.
func (s *Service) Add(ctx context.Context, params AddParams) (*Memory, error) {
	ctx, span := tracing.StartSpan(ctx, "memory.add")
	defer span.End()

	if params.Content == "" {
		return nil, fmt.Errorf("content is required")
	}

	start := time.Now()

	embedding, err := s.provider.GenerateEmbedding(ctx, params.Content)
	if err != nil {
		observability.RecordWrite("add", time.Since(start), false)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate memory id: %w", err)
	}

	rec := Memory{
		ID:        id,
		Content:   params.Content,
		Embedding: embedding,
		Timestamp: time.Now().UnixMilli(),
		Project:   params.Project,
		Tags:      params.Tags,
	}

	if err := s.store.Insert(ctx, []Memory{rec}); err != nil {
		observability.RecordWrite("add", time.Since(start), false)
		return nil, err
	}

	observability.RecordWrite("add", time.Since(start), true)
	s.logger.Debug().Str("id", id).Str("project", params.Project).Msg("Memory added")

	return &rec, nil
}

// AddBatch stores several memories atomically: embeddings are generated
// concurrently, all records share one creation timestamp, and any failure
// aborts the batch with nothing written.
func (s *Service) AddBatch(ctx context.Context, batch []AddParams) ([]Memory, error) {
	ctx, span := tracing.StartSpan(ctx, "memory.add_batch")
	defer span.End()

	if len(batch) == 0 {
		return nil, nil
	}
	for i, params := range batch {
		if params.Content == "" {
			return nil, fmt.Errorf("batch item %d: content is required", i)
		}
	}

	start := time.Now()

	embeddings := make([][]float32, len(batch))
	errs := make([]error, len(batch))

	var wg sync.WaitGroup
	for i, params := range batch {
		wg.Add(1)
		go func(i int, content string) {
			defer wg.Done()
			embeddings[i], errs[i] = s.provider.GenerateEmbedding(ctx, content)
		}(i, params.Content)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			observability.RecordWrite("add_batch", time.Since(start), false)
			return nil, fmt.Errorf("%w: batch item %d: %v", ErrEmbeddingFailed, i, err)
		}
	}

	// One timestamp for the whole batch marks it as a single event.
	now := time.Now().UnixMilli()

	records := make([]Memory, len(batch))
	for i, params := range batch {
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate memory id: %w", err)
		}
		records[i] = Memory{
			ID:        id,
			Content:   params.Content,
			Embedding: embeddings[i],
			Timestamp: now,
			Project:   params.Project,
			Tags:      params.Tags,
		}
	}

	if err := s.store.Insert(ctx, records); err != nil {
		observability.RecordWrite("add_batch", time.Since(start), false)
		return nil, err
	}

	observability.RecordWrite("add_batch", time.Since(start), true)
	s.logger.Debug().Int("count", len(records)).Msg("Memory batch added")

	return records, nil
}

// Update modifies an existing memory in place. Creation timestamp and
// usage statistics are preserved; the embedding is regenerated only when
// the content actually changes. Returns ErrNotFound for unknown ids.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (*Memory, error) {
	ctx, span := tracing.StartSpan(ctx, "memory.update")
	defer span.End()

	if params.Content == nil && params.Project == nil && !params.SetTags {
		return nil, fmt.Errorf("no fields to update")
	}
	if params.Content != nil && *params.Content == "" {
		return nil, fmt.Errorf("content cannot be cleared")
	}

	start := time.Now()

	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := params.Content != nil && *params.Content != rec.Content
	if params.Content != nil {
		rec.Content = *params.Content
	}
	if params.Project != nil {
		rec.Project = *params.Project
	}
	if params.SetTags {
		rec.Tags = params.Tags
	}

	if contentChanged {
		embedding, err := s.provider.GenerateEmbedding(ctx, rec.Content)
		if err != nil {
			observability.RecordWrite("update", time.Since(start), false)
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		rec.Embedding = embedding
	}

	if err := s.store.Replace(ctx, *rec, contentChanged); err != nil {
		observability.RecordWrite("update", time.Since(start), false)
		return nil, err
	}

	observability.RecordWrite("update", time.Since(start), true)
	s.logger.Debug().Str("id", id).Bool("reembedded", contentChanged).Msg("Memory updated")

	return rec, nil
}

// Delete removes a memory. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "memory.delete")
	defer span.End()

	start := time.Now()

	if err := s.store.DeleteByID(ctx, id); err != nil {
		observability.RecordWrite("delete", time.Since(start), false)
		return err
	}

	observability.RecordWrite("delete", time.Since(start), true)
	s.logger.Debug().Str("id", id).Msg("Memory deleted")
	return nil
}

// Get returns one memory by id
func (s *Service) Get(ctx context.Context, id string) (*Memory, error) {
	return s.store.FindByID(ctx, id)
}

// List returns memories filtered by project and tags, newest first
func (s *Service) List(ctx context.Context, opts FilterOptions) ([]Memory, error) {
	ctx, span := tracing.StartSpan(ctx, "memory.list")
	defer span.End()

	return s.store.Filter(ctx, opts)
}

// Status reports the store size and embedding identity
func (s *Service) Status(ctx context.Context) (*Status, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	observability.SetMemoriesTotal(count)

	lastImport, err := s.store.lastImportAt(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{
		Memories:   count,
		StorePath:  s.store.Path(),
		Embedding:  s.store.Identity(),
		LastImport: lastImport,
	}, nil
}
