package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreClosed is returned by any store operation attempted before
	// initialization completes or after Close.
	ErrStoreClosed = errors.New("memory store is not available")

	// ErrNotFound is returned when an operation references a memory id
	// that does not exist.
	ErrNotFound = errors.New("memory not found")

	// ErrEmbeddingFailed wraps embedding provider failures. Any add,
	// update or batch operation that hits it aborts without partial
	// writes.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// ConfigMismatchError is returned at startup when the persisted embedding
// identity disagrees with the active configuration. Mixing embeddings from
// different models silently corrupts similarity rankings, so this is fatal.
type ConfigMismatchError struct {
	Stored EmbeddingIdentity
	Active EmbeddingIdentity
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf(
		"embedding configuration mismatch: store was created with %s/%s (dimension %d) but the active configuration is %s/%s (dimension %d); "+
			"either revert to the original provider/model or discard the existing store",
		e.Stored.Provider, e.Stored.Model, e.Stored.Dimension,
		e.Active.Provider, e.Active.Model, e.Active.Dimension,
	)
}
