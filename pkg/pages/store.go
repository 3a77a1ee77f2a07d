// Package pages is the document store the retrieval pipeline searches: a
// vector index over page summaries plus a content source for full page
// bodies.
package pages

import (
	"context"
)

// IndexHit is one search index match.
type IndexHit struct {
	PageID   string
	Title    string
	Path     string
	Summary  string
	Score    float32
	Metadata map[string]any
}

// Page is a full document.
type Page struct {
	PageID  string
	Title   string
	Path    string
	Summary string
	Content string
}

// Store is the search/fetch capability the pipeline consumes. FetchPage
// returns (nil, nil) when the page does not exist; absence is not an error.
type Store interface {
	SearchIndex(ctx context.Context, query string, maxResults int) ([]IndexHit, error)
	FetchPage(ctx context.Context, pageID string) (*Page, error)
}

// ContentSource serves full page bodies and enumerates pages for indexing.
type ContentSource interface {
	GetPage(ctx context.Context, pageID string) (*Page, error)
	ListPages(ctx context.Context) ([]Page, error)
	Close() error
}
