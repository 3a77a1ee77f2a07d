// Package vector abstracts nearest-neighbor search over embeddings. Two
// backends ship: chromem (embedded, zero-config default) and qdrant
// (external server).
package vector

import (
	"context"
	"fmt"

	"github.com/kaplanbora/sage/pkg/config"
)

// Result is one similarity search hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// Provider is a vector index safe for concurrent reads.
type Provider interface {
	Name() string
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	Delete(ctx context.Context, collection string, id string) error
	Close() error
}

// NewProvider builds a vector provider from config.
func NewProvider(cfg *config.VectorConfig) (Provider, error) {
	switch cfg.Type {
	case "chromem":
		return NewChromemProvider(cfg.Chromem)
	case "qdrant":
		return NewQdrantProvider(cfg.Qdrant)
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Type)
	}
}
