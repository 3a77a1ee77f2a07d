package pages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kaplanbora/sage/pkg/embedders"
	"github.com/kaplanbora/sage/pkg/vector"
)

// IndexStore implements Store by composing an embedder, a vector index over
// page summaries, and a content source for full bodies.
type IndexStore struct {
	embedder   embedders.Embedder
	index      vector.Provider
	source     ContentSource
	collection string
}

func NewIndexStore(embedder embedders.Embedder, index vector.Provider, source ContentSource, collection string) *IndexStore {
	return &IndexStore{
		embedder:   embedder,
		index:      index,
		source:     source,
		collection: collection,
	}
}

func (s *IndexStore) SearchIndex(ctx context.Context, query string, maxResults int) ([]IndexHit, error) {
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.index.Search(ctx, s.collection, queryVector, maxResults)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	hits := make([]IndexHit, 0, len(results))
	for _, r := range results {
		hit := IndexHit{
			PageID:   metaString(r.Metadata, "page_id"),
			Title:    metaString(r.Metadata, "title"),
			Path:     metaString(r.Metadata, "path"),
			Summary:  metaString(r.Metadata, "summary"),
			Score:    r.Score,
			Metadata: r.Metadata,
		}
		if hit.PageID == "" {
			hit.PageID = r.ID
		}
		if hit.Summary == "" {
			hit.Summary = r.Content
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *IndexStore) FetchPage(ctx context.Context, pageID string) (*Page, error) {
	return s.source.GetPage(ctx, pageID)
}

// IndexPage embeds a page's summary (falling back to a content prefix) and
// upserts it into the vector index.
func (s *IndexStore) IndexPage(ctx context.Context, page Page) error {
	text := page.Summary
	if text == "" {
		text = page.Content
		if len(text) > 1000 {
			text = text[:1000]
		}
	}
	if text == "" {
		text = page.Title
	}

	pageVector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed page %s: %w", page.PageID, err)
	}

	metadata := map[string]any{
		"page_id": page.PageID,
		"title":   page.Title,
		"path":    page.Path,
		"summary": page.Summary,
	}
	if err := s.index.Upsert(ctx, s.collection, page.PageID, pageVector, metadata); err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", page.PageID, err)
	}
	return nil
}

// Reindex embeds and upserts every page in the content source. Individual
// page failures are logged and skipped.
func (s *IndexStore) Reindex(ctx context.Context) (int, error) {
	pagesList, err := s.source.ListPages(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pages: %w", err)
	}

	indexed := 0
	for _, page := range pagesList {
		if err := s.IndexPage(ctx, page); err != nil {
			slog.Warn("skipping page during reindex", "page_id", page.PageID, "error", err)
			continue
		}
		indexed++
	}
	return indexed, nil
}

func metaString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
