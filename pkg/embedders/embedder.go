// Package embedders turns text into vectors for the search index.
package embedders

import (
	"context"
	"fmt"

	"github.com/kaplanbora/sage/pkg/config"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetDimension() int
	GetModelName() string
	Close() error
}

// NewEmbedder builds an embedder from config.
func NewEmbedder(cfg *config.EmbedderConfig) (Embedder, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		return NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", cfg.Type)
	}
}
