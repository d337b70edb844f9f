// Package search provides the client's offline full-text index over
// cached bookmarks, backed by Bleve.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/bookmarkhive/hivecache/internal/domain"
)

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on open triggers an automatic rebuild.
const mappingVersion = "1"

// Index wraps a Bleve index over bookmark projections.
//
// Thread safety: all public methods are safe for concurrent use. The
// mutex protects against corruption during rebuilds.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Open creates or opens the search index under dataDir. A corrupt index
// or one built with an older mapping is discarded and recreated; the
// reconciler refills it from the local cache.
func Open(dataDir string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	indexPath := filepath.Join(dataDir, "search.bleve")
	versionPath := filepath.Join(dataDir, "search.version")

	var index bleve.Index
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(existingVersion) != mappingVersion {
			logger.Info("search index mapping changed, rebuilding",
				"new_version", mappingVersion)
			needsRebuild = true
		}
	}

	if indexExists && !needsRebuild {
		var err error
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing search index, recreating",
				"path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index = nil
	}

	if index == nil {
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created search index", "path", indexPath)
	}

	return &Index{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// toDoc converts a projection to the map form matching the index mapping.
// Bleve would otherwise index Go field names, which are capitalized.
func toDoc(e *domain.BookmarkProjection) map[string]any {
	doc := map[string]any{
		"title":     e.Title,
		"url":       e.URL,
		"domain":    e.Domain,
		"is_public": strconv.FormatBool(e.IsPublic),
	}
	if len(e.Tags) > 0 {
		doc["tags"] = e.Tags
	}
	if t, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
		doc["created_at"] = t.UnixMilli()
	}
	return doc
}

// Upsert indexes a single bookmark, replacing any previous document.
func (i *Index) Upsert(e *domain.BookmarkProjection) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Index(e.ID, toDoc(e))
}

// UpsertBatch indexes bookmarks in chunks. Much faster than Upsert in a
// loop during bootstrap.
func (i *Index) UpsertBatch(entries []domain.BookmarkProjection) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	const batchSize = 500

	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))

		batch := i.index.NewBatch()
		for j := start; j < end; j++ {
			if err := batch.Index(entries[j].ID, toDoc(&entries[j])); err != nil {
				return fmt.Errorf("batch index %s: %w", entries[j].ID, err)
			}
		}
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Delete removes a bookmark from the index. Deleting an absent document
// is a no-op.
func (i *Index) Delete(id string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Delete(id)
}

// DeleteBatch removes multiple bookmarks from the index.
func (i *Index) DeleteBatch(ids []string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return i.index.Batch(batch)
}

// DocCount returns the number of indexed bookmarks.
func (i *Index) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Rebuild drops the index and recreates it empty. The caller refills it
// from the cache afterwards. Blocks all other operations while it runs.
func (i *Index) Rebuild() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(i.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(i.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	i.index = index
	i.logger.Info("rebuilt search index", "path", i.path)
	return nil
}
