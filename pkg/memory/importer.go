package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Importer syncs a directory of markdown notes into the store. Each file
// becomes one memory tagged "imported"; re-running an import only touches
// files whose content hash changed, and prunes memories whose source file
// disappeared.
type Importer struct {
	service *Service
	store   *Store
	dir     string
	project string
	logger  zerolog.Logger
}

// ImportStats summarizes one sync pass
type ImportStats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Pruned    int `json:"pruned"`
	Unchanged int `json:"unchanged"`
}

// NewImporter creates an importer for the given notes directory
func NewImporter(service *Service, store *Store, dir, project string, logger zerolog.Logger) *Importer {
	return &Importer{
		service: service,
		store:   store,
		dir:     dir,
		project: project,
		logger:  logger,
	}
}

// Sync reconciles the notes directory against the store
func (im *Importer) Sync(ctx context.Context) (*ImportStats, error) {
	files, err := im.scanNotes()
	if err != nil {
		return nil, err
	}

	log, err := im.store.importLog(ctx)
	if err != nil {
		return nil, err
	}

	stats := &ImportStats{}

	for path, content := range files {
		hash := contentHash(content)
		prev, known := log[path]
		delete(log, path)

		if known && prev.ContentHash == hash {
			stats.Unchanged++
			continue
		}

		if known {
			if err := im.updateNote(ctx, prev, path, content, hash, stats); err != nil {
				return nil, err
			}
			continue
		}

		if err := im.addNote(ctx, path, content, hash); err != nil {
			return nil, err
		}
		stats.Added++
	}

	// Whatever is left in the ledger has no file behind it anymore.
	for path, prev := range log {
		if err := im.service.Delete(ctx, prev.MemoryID); err != nil {
			return nil, fmt.Errorf("failed to prune memory for %s: %w", path, err)
		}
		if err := im.store.forgetImport(ctx, path); err != nil {
			return nil, err
		}
		stats.Pruned++
	}

	im.logger.Info().
		Int("added", stats.Added).
		Int("updated", stats.Updated).
		Int("pruned", stats.Pruned).
		Int("unchanged", stats.Unchanged).
		Str("dir", im.dir).
		Msg("Note import completed")

	return stats, nil
}

func (im *Importer) addNote(ctx context.Context, path, content, hash string) error {
	rec, err := im.service.Add(ctx, AddParams{
		Content: content,
		Project: im.project,
		Tags:    noteTags(path),
	})
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	return im.store.recordImport(ctx, importRecord{
		Path:        path,
		ContentHash: hash,
		MemoryID:    rec.ID,
	}, rec.Timestamp)
}

func (im *Importer) updateNote(ctx context.Context, prev importRecord, path, content, hash string, stats *ImportStats) error {
	_, err := im.service.Update(ctx, prev.MemoryID, UpdateParams{Content: &content})
	if errors.Is(err, ErrNotFound) {
		// Memory deleted out from under the ledger; re-import fresh.
		if err := im.addNote(ctx, path, content, hash); err != nil {
			return err
		}
		stats.Added++
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update import of %s: %w", path, err)
	}

	if err := im.store.recordImport(ctx, importRecord{
		Path:        path,
		ContentHash: hash,
		MemoryID:    prev.MemoryID,
	}, time.Now().UnixMilli()); err != nil {
		return err
	}
	stats.Updated++
	return nil
}

// scanNotes reads every markdown file under the import directory. Paths
// are stored relative to the root so the directory can move.
func (im *Importer) scanNotes() (map[string]string, error) {
	files := make(map[string]string)

	err := filepath.WalkDir(im.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			return nil
		}

		rel, err := filepath.Rel(im.dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = content
		return nil
	})
	if os.IsNotExist(err) {
		return files, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan notes directory: %w", err)
	}

	return files, nil
}

// noteTags derives tags for an imported file: always "imported", plus the
// top-level subdirectory name when the note lives in one.
func noteTags(relPath string) []string {
	tags := []string{"imported"}
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) > 1 && parts[0] != "" {
		tags = append(tags, parts[0])
	}
	return tags
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
