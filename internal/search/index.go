// Package search implements the read-optimized product index. It is a
// denormalized projection of the catalog, rebuilt from the change-event
// topic on startup and kept current by the index worker.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"catalog-service/internal/models"
)

type entry struct {
	doc *models.SearchDocument
	// version is the highest source version seen for this id, including
	// the tombstone version after a delete. Applies at or below it are
	// ignored, which makes redelivery and reordering safe.
	version    int64
	tombstoned bool
}

// Index is an in-memory search index. All query methods are read-only and
// take only the read lock, so readers never wait on pipeline activity.
type Index struct {
	mu   sync.RWMutex
	docs map[string]*entry
}

// New creates an empty index.
func New() *Index {
	return &Index{docs: make(map[string]*entry)}
}

// ApplyIfNewer upserts a document unless the stored version is already at
// or past doc.SourceVersion. A tombstoned id can only move forward in
// version, never back to a live document, so deleted products are never
// resurrected by late events. The bool reports whether the document was
// applied; false means the event was stale and the call was a no-op.
func (ix *Index) ApplyIfNewer(_ context.Context, doc *models.SearchDocument) (bool, error) {
	if doc == nil || doc.ID == "" {
		return false, fmt.Errorf("document missing id")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.docs[doc.ID]
	if !ok {
		ix.docs[doc.ID] = &entry{doc: doc, version: doc.SourceVersion}
		return true, nil
	}
	if doc.SourceVersion <= e.version {
		return false, nil
	}
	e.doc = doc
	e.version = doc.SourceVersion
	e.tombstoned = false
	return true, nil
}

// Tombstone removes the document for id at the given version. The
// tombstone itself is version-checked: a stale delete cannot erase a newer
// document, and the retained version blocks older upserts from reviving
// the id.
func (ix *Index) Tombstone(_ context.Context, id string, version int64) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.docs[id]
	if !ok {
		ix.docs[id] = &entry{version: version, tombstoned: true}
		return true, nil
	}
	if version <= e.version {
		return false, nil
	}
	e.doc = nil
	e.version = version
	e.tombstoned = true
	return true, nil
}

// GetByID returns the document for id, or ErrNotFound when the id is
// absent or tombstoned.
func (ix *Index) GetByID(id string) (*models.SearchDocument, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.docs[id]
	if !ok || e.tombstoned {
		return nil, models.ErrNotFound
	}
	return e.doc, nil
}

// Version returns the stored source version for id, zero when unseen.
func (ix *Index) Version(id string) int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if e, ok := ix.docs[id]; ok {
		return e.version
	}
	return 0
}

// Len returns the number of live (non-tombstoned) documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, e := range ix.docs {
		if !e.tombstoned {
			n++
		}
	}
	return n
}

// QueryByText matches query tokens against name, description and tags.
// Results order by match count, then recency, then id for determinism.
func (ix *Index) QueryByText(q string) ([]models.SearchDocument, error) {
	tokens := tokenize(q)
	if len(tokens) == 0 {
		return nil, &models.ValidationError{Field: "q", Reason: "must not be empty"}
	}

	type scored struct {
		doc   *models.SearchDocument
		score int
	}

	ix.mu.RLock()
	matches := make([]scored, 0)
	for _, e := range ix.docs {
		if e.tombstoned {
			continue
		}
		if s := score(e.doc, tokens); s > 0 {
			matches = append(matches, scored{doc: e.doc, score: s})
		}
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		if !matches[i].doc.UpdatedAt.Equal(matches[j].doc.UpdatedAt) {
			return matches[i].doc.UpdatedAt.After(matches[j].doc.UpdatedAt)
		}
		return matches[i].doc.ID < matches[j].doc.ID
	})

	out := make([]models.SearchDocument, len(matches))
	for i, m := range matches {
		out[i] = *m.doc
	}
	return out, nil
}

// QueryByCategory returns documents in the exact category, newest first,
// ties by id ascending.
func (ix *Index) QueryByCategory(category string) ([]models.SearchDocument, error) {
	if !models.ValidCategory(category) {
		return nil, &models.ValidationError{Field: "category", Reason: "unknown category"}
	}

	ix.mu.RLock()
	out := make([]models.SearchDocument, 0)
	for _, e := range ix.docs {
		if !e.tombstoned && e.doc.Category == category {
			out = append(out, *e.doc)
		}
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// QueryByPriceRange returns documents with minPrice <= price <= maxPrice,
// cheapest first, ties by id ascending.
func (ix *Index) QueryByPriceRange(minPrice, maxPrice int64) ([]models.SearchDocument, error) {
	if minPrice < 0 || maxPrice < 0 {
		return nil, &models.ValidationError{Field: "price", Reason: "bounds must not be negative"}
	}
	if minPrice > maxPrice {
		return nil, &models.ValidationError{Field: "price", Reason: "min must not exceed max"}
	}

	ix.mu.RLock()
	out := make([]models.SearchDocument, 0)
	for _, e := range ix.docs {
		if !e.tombstoned && e.doc.PriceMinor >= minPrice && e.doc.PriceMinor <= maxPrice {
			out = append(out, *e.doc)
		}
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PriceMinor != out[j].PriceMinor {
			return out[i].PriceMinor < out[j].PriceMinor
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func tokenize(q string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(q)))
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func score(doc *models.SearchDocument, tokens []string) int {
	name := strings.ToLower(doc.Name)
	desc := strings.ToLower(doc.Description)
	n := 0
	for _, tok := range tokens {
		if strings.Contains(name, tok) || strings.Contains(desc, tok) {
			n++
			continue
		}
		for _, tag := range doc.Tags {
			if strings.ToLower(tag) == tok {
				n++
				break
			}
		}
	}
	return n
}
