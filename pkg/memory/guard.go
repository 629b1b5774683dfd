package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// reconcileConfig enforces the one-store-one-embedding-space rule. On a
// fresh store the active identity is persisted verbatim; on reopen the
// persisted (provider, model) pair must match the active one exactly.
// Dimension is implied by model and not independently re-checked.
func (s *Store) reconcileConfig(active EmbeddingIdentity) error {
	var stored EmbeddingIdentity
	err := s.db.QueryRow(
		"SELECT embedding_provider, embedding_model, embedding_dimension FROM store_config WHERE id = 1",
	).Scan(&stored.Provider, &stored.Model, &stored.Dimension)

	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.Exec(
			"INSERT INTO store_config (id, embedding_provider, embedding_model, embedding_dimension, created_at) VALUES (1, ?, ?, ?, ?)",
			active.Provider, active.Model, active.Dimension, time.Now().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to persist embedding configuration: %w", err)
		}
		s.identity = active
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read persisted embedding configuration: %w", err)
	}

	if stored.Provider != active.Provider || stored.Model != active.Model {
		return &ConfigMismatchError{Stored: stored, Active: active}
	}

	s.identity = stored
	return nil
}
