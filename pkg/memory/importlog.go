package memory

import (
	"context"
	"fmt"
)

// importRecord tracks one imported note file so re-imports are idempotent
type importRecord struct {
	Path        string
	ContentHash string
	MemoryID    string
}

// importLog returns the full import ledger keyed by file path
func (s *Store) importLog(ctx context.Context) (map[string]importRecord, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT path, content_hash, memory_id FROM import_log")
	if err != nil {
		return nil, fmt.Errorf("failed to read import log: %w", err)
	}
	defer rows.Close()

	log := make(map[string]importRecord)
	for rows.Next() {
		var rec importRecord
		if err := rows.Scan(&rec.Path, &rec.ContentHash, &rec.MemoryID); err != nil {
			return nil, err
		}
		log[rec.Path] = rec
	}

	return log, rows.Err()
}

// recordImport upserts one import ledger entry
func (s *Store) recordImport(ctx context.Context, rec importRecord, now int64) error {
	if err := s.available(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_log (path, content_hash, memory_id, imported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			memory_id = excluded.memory_id,
			imported_at = excluded.imported_at
	`, rec.Path, rec.ContentHash, rec.MemoryID, now)
	if err != nil {
		return fmt.Errorf("failed to record import of %s: %w", rec.Path, err)
	}
	return nil
}

// lastImportAt returns the newest imported_at in the ledger, zero when empty
func (s *Store) lastImportAt(ctx context.Context) (int64, error) {
	if err := s.available(); err != nil {
		return 0, err
	}

	var at int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(imported_at), 0) FROM import_log").Scan(&at)
	if err != nil {
		return 0, fmt.Errorf("failed to read last import time: %w", err)
	}
	return at, nil
}

// forgetImport removes one import ledger entry
func (s *Store) forgetImport(ctx context.Context, path string) error {
	if err := s.available(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM import_log WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to forget import of %s: %w", path, err)
	}
	return nil
}
