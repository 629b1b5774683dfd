package memory

import (
	"encoding/json"
	"fmt"
)

// Memory is one stored note. Project and Tags are optional; an empty
// Project and nil Tags are persisted as NULL. Timestamp is set once at
// creation and preserved through every update. UsageCount and LastUsed
// are maintained by the retrieval paths only.
type Memory struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	Timestamp  int64     `json:"timestamp"` // epoch millis
	Project    string    `json:"project,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	UsageCount int       `json:"usage_count"`
	LastUsed   int64     `json:"last_used,omitempty"` // epoch millis, 0 = never retrieved
}

// RankedResult is one hybrid-search hit. Score is distance-like: lower
// means more similar, both before and after usage boosting.
type RankedResult struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Score      float64  `json:"score"`
	Timestamp  int64    `json:"timestamp"`
	Project    string   `json:"project,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	UsageCount int      `json:"usage_count"`
}

// FilterOptions selects memories by project equality and tag membership.
// A record matches Tags when it carries at least one of the given tags.
type FilterOptions struct {
	Project string
	Tags    []string
	Limit   int
	Offset  int
}

// SearchOptions configures hybrid search behavior
type SearchOptions struct {
	Limit         int
	BoostFrequent bool
}

// Status summarizes the store for status commands
type Status struct {
	Memories  int               `json:"memories"`
	StorePath string            `json:"store_path"`
	Embedding EmbeddingIdentity `json:"embedding"`
	// LastImport is the unix-millisecond timestamp of the most recent
	// note import, zero when nothing was ever imported.
	LastImport int64 `json:"last_import,omitempty"`
}

// encodeTags serializes tags to the JSON text stored in the tags column.
// nil and empty both map to NULL so absent tags stay absent.
func encodeTags(tags []string) (*string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	s := string(data)
	return &s, nil
}

// decodeTags parses the tags column back into a slice
func decodeTags(raw *string) ([]string, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(*raw), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}

// nullableText maps "" to NULL for optional text columns
func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
