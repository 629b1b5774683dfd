package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// Store owns the on-disk memory table. All access to rows goes through its
// operations; the retriever and service never touch the database directly.
type Store struct {
	db       *sql.DB
	path     string
	identity EmbeddingIdentity
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// StoreConfig holds store configuration
type StoreConfig struct {
	Path     string
	Identity EmbeddingIdentity
	Logger   zerolog.Logger
}

// Open opens (or creates) the store and runs the config guard. A store
// created with one embedding identity refuses to reopen under another.
func Open(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if cfg.Identity.Provider == "" || cfg.Identity.Model == "" {
		return nil, errors.New("embedding identity is required")
	}
	if cfg.Identity.Dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension: %d", cfg.Identity.Dimension)
	}

	// Open database with FTS5 support
	db, err := sql.Open("sqlite3", cfg.Path+"?_fts5=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		path:   cfg.Path,
		logger: cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Config guard: bind the store to one embedding space, or fail fast.
	if err := s.reconcileConfig(cfg.Identity); err != nil {
		db.Close()
		return nil, err
	}

	// The vector table needs the reconciled dimension.
	if err := s.initVectorSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vector table: %w", err)
	}

	s.logger.Info().
		Str("path", cfg.Path).
		Str("model", s.identity.Model).
		Int("dimension", s.identity.Dimension).
		Msg("Memory store opened")

	return s, nil
}

// initSchema creates the base tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			project TEXT,
			tags TEXT,
			usage_count INTEGER NOT NULL DEFAULT 0,
			last_used INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project);
		CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp);

		CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			memory_id UNINDEXED,
			content,
			tokenize='porter unicode61'
		);

		CREATE TABLE IF NOT EXISTS store_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			embedding_provider TEXT NOT NULL,
			embedding_model TEXT NOT NULL,
			embedding_dimension INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS import_log (
			path TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			memory_id TEXT NOT NULL,
			imported_at INTEGER NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) initVectorSchema() error {
	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memory_vectors USING vec0(
			memory_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, s.identity.Dimension)

	_, err := s.db.Exec(vectorSchema)
	return err
}

// Identity returns the embedding identity the store is bound to
func (s *Store) Identity() EmbeddingIdentity {
	return s.identity
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the store; every subsequent operation fails with ErrStoreClosed
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Info().Msg("Closing memory store")
	return s.db.Close()
}

// available reports whether operations may proceed
func (s *Store) available() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Insert appends fully-formed records in a single atomic batch. Embedding
// dimensions are validated against the store's bound identity; ids are the
// caller's responsibility.
func (s *Store) Insert(ctx context.Context, records []Memory) error {
	if err := s.available(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	for _, rec := range records {
		if len(rec.Embedding) != s.identity.Dimension {
			return fmt.Errorf("record %s has embedding dimension %d, store requires %d", rec.ID, len(rec.Embedding), s.identity.Dimension)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		tags, err := encodeTags(rec.Tags)
		if err != nil {
			return err
		}

		var lastUsed *int64
		if rec.LastUsed > 0 {
			lastUsed = &rec.LastUsed
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memories (id, content, timestamp, project, tags, usage_count, last_used) VALUES (?, ?, ?, ?, ?, ?, ?)",
			rec.ID, rec.Content, rec.Timestamp, nullableText(rec.Project), tags, rec.UsageCount, lastUsed,
		); err != nil {
			return fmt.Errorf("failed to insert memory %s: %w", rec.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memories_fts (memory_id, content) VALUES (?, ?)",
			rec.ID, rec.Content,
		); err != nil {
			return fmt.Errorf("failed to index memory %s: %w", rec.ID, err)
		}

		embeddingJSON, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding for %s: %w", rec.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memory_vectors (memory_id, embedding) VALUES (?, ?)",
			rec.ID, string(embeddingJSON),
		); err != nil {
			return fmt.Errorf("failed to store embedding for %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}

	return nil
}

// FindByID returns the record with the given id, or ErrNotFound. The
// embedding is not loaded; it lives in the vector table and is only
// touched when content changes.
func (s *Store) FindByID(ctx context.Context, id string) (*Memory, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, content, timestamp, project, tags, usage_count, last_used FROM memories WHERE id = ?",
		id,
	)

	rec, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory %s: %w", id, err)
	}

	return rec, nil
}

// DeleteByID removes the record with that id. Deleting a nonexistent id
// is indistinguishable from success.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if err := s.available(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM memories WHERE id = ?",
		"DELETE FROM memories_fts WHERE memory_id = ?",
		"DELETE FROM memory_vectors WHERE memory_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete memory %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	return nil
}

// Replace updates a record in place within one transaction. The caller is
// responsible for having preserved timestamp and usage statistics on rec.
// When contentChanged is set, the keyword index and the vector row are
// rewritten from the record's new content and embedding.
func (s *Store) Replace(ctx context.Context, rec Memory, contentChanged bool) error {
	if err := s.available(); err != nil {
		return err
	}
	if contentChanged && len(rec.Embedding) != s.identity.Dimension {
		return fmt.Errorf("record %s has embedding dimension %d, store requires %d", rec.ID, len(rec.Embedding), s.identity.Dimension)
	}

	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return err
	}

	var lastUsed *int64
	if rec.LastUsed > 0 {
		lastUsed = &rec.LastUsed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE memories SET content = ?, timestamp = ?, project = ?, tags = ?, usage_count = ?, last_used = ? WHERE id = ?",
		rec.Content, rec.Timestamp, nullableText(rec.Project), tags, rec.UsageCount, lastUsed, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update memory %s: %w", rec.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if contentChanged {
		if _, err := tx.ExecContext(ctx, "DELETE FROM memories_fts WHERE memory_id = ?", rec.ID); err != nil {
			return fmt.Errorf("failed to reindex memory %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memories_fts (memory_id, content) VALUES (?, ?)",
			rec.ID, rec.Content,
		); err != nil {
			return fmt.Errorf("failed to reindex memory %s: %w", rec.ID, err)
		}

		embeddingJSON, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding for %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM memory_vectors WHERE memory_id = ?", rec.ID); err != nil {
			return fmt.Errorf("failed to replace embedding for %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memory_vectors (memory_id, embedding) VALUES (?, ?)",
			rec.ID, string(embeddingJSON),
		); err != nil {
			return fmt.Errorf("failed to replace embedding for %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	return nil
}

// Filter lists memories matching project equality and tag membership,
// newest first. Values are bound as parameters, never spliced into the
// query text.
func (s *Store) Filter(ctx context.Context, opts FilterOptions) ([]Memory, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	query := "SELECT id, content, timestamp, project, tags, usage_count, last_used FROM memories"
	var conds []string
	var args []interface{}

	if opts.Project != "" {
		conds = append(conds, "project = ?")
		args = append(args, opts.Project)
	}

	if len(opts.Tags) > 0 {
		placeholders := strings.Repeat("?,", len(opts.Tags))
		placeholders = placeholders[:len(placeholders)-1]
		conds = append(conds, fmt.Sprintf(
			"tags IS NOT NULL AND EXISTS (SELECT 1 FROM json_each(memories.tags) WHERE json_each.value IN (%s))",
			placeholders,
		))
		for _, tag := range opts.Tags {
			args = append(args, tag)
		}
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += " ORDER BY timestamp DESC"

	switch {
	case opts.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	case opts.Offset > 0:
		// SQLite only applies OFFSET alongside a LIMIT; -1 is unbounded
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to filter memories: %w", err)
	}
	defer rows.Close()

	var records []Memory
	for rows.Next() {
		rec, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode memory row: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// BumpUsage increments usage_count and sets last_used for the given ids.
// Called from the retrieval write-back path only.
func (s *Store) BumpUsage(ctx context.Context, ids []string, now int64) error {
	if err := s.available(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, now)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE memories SET usage_count = usage_count + 1, last_used = ? WHERE id IN (%s)",
		placeholders,
	), args...)
	if err != nil {
		return fmt.Errorf("failed to update usage statistics: %w", err)
	}

	return nil
}

// Count returns the number of stored memories
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.available(); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return count, nil
}

// Optimize compacts the keyword index and checkpoints the WAL. Run from
// the maintenance schedule, not the request path.
func (s *Store) Optimize(ctx context.Context) error {
	if err := s.available(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "INSERT INTO memories_fts(memories_fts) VALUES('optimize')"); err != nil {
		return fmt.Errorf("failed to optimize keyword index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	return nil
}

type vectorHit struct {
	memoryID string
	distance float64 // cosine distance, lower = more similar
}

type keywordHit struct {
	memoryID  string
	bm25Score float64 // positive, higher = better match
}

// vectorSearch returns the closest stored embeddings to the query vector
func (s *Store) vectorSearch(ctx context.Context, embedding []float32, limit int) ([]vectorHit, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			memory_id,
			vec_distance_cosine(embedding, ?) as distance
		FROM memory_vectors
		ORDER BY distance ASC
		LIMIT ?
	`, string(embeddingJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var hits []vectorHit
	for rows.Next() {
		var h vectorHit
		if err := rows.Scan(&h.memoryID, &h.distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

// keywordSearch runs an FTS5 match over memory content. Each term is
// quoted so arbitrary note text cannot be parsed as FTS5 syntax.
func (s *Store) keywordSearch(ctx context.Context, query string, limit int) ([]keywordHit, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	match := ftsMatchExpr(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_id, bm25(memories_fts) as score
		FROM memories_fts
		WHERE memories_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	var hits []keywordHit
	for rows.Next() {
		var h keywordHit
		if err := rows.Scan(&h.memoryID, &h.bm25Score); err != nil {
			return nil, err
		}
		// BM25 scores are negative, convert to positive
		h.bm25Score = -h.bm25Score
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

// ftsMatchExpr builds a quoted OR expression from free text
func ftsMatchExpr(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// loadByIDs fetches the given records in one query; missing ids are skipped
func (s *Store) loadByIDs(ctx context.Context, ids []string) (map[string]Memory, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[string]Memory{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, content, timestamp, project, tags, usage_count, last_used FROM memories WHERE id IN (%s)",
		placeholders,
	), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}
	defer rows.Close()

	records := make(map[string]Memory, len(ids))
	for rows.Next() {
		rec, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode memory row: %w", err)
		}
		records[rec.ID] = *rec
	}

	return records, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMemory decodes one memories row into the typed record. Raw rows
// never leave the storage boundary untyped.
func scanMemory(row rowScanner) (*Memory, error) {
	var rec Memory
	var project, tags sql.NullString
	var lastUsed sql.NullInt64

	if err := row.Scan(&rec.ID, &rec.Content, &rec.Timestamp, &project, &tags, &rec.UsageCount, &lastUsed); err != nil {
		return nil, err
	}

	if project.Valid {
		rec.Project = project.String
	}
	if tags.Valid {
		decoded, err := decodeTags(&tags.String)
		if err != nil {
			return nil, err
		}
		rec.Tags = decoded
	}
	if lastUsed.Valid {
		rec.LastUsed = lastUsed.Int64
	}

	return &rec, nil
}

// storedEmbedding reads the raw vector for a record from the vector table.
// vec0 stores float32 values as a packed little-endian blob.
func (s *Store) storedEmbedding(ctx context.Context, id string) ([]float32, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT embedding FROM memory_vectors WHERE memory_id = ?", id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding for %s: %w", id, err)
	}

	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("malformed embedding blob for %s: %d bytes", id, len(blob))
	}

	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}
