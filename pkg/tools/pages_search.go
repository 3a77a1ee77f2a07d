package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/kaplanbora/sage/pkg/pages"
)

// PagesSearchTool searches the document index directly, without the full
// pipeline. The knowledge specialist uses it for ad-hoc lookups.
type PagesSearchTool struct {
	store pages.Store
}

type pagesSearchArgs struct {
	Query      string `mapstructure:"query"`
	MaxResults int    `mapstructure:"max_results"`
}

func NewPagesSearchTool(store pages.Store) *PagesSearchTool {
	return &PagesSearchTool{store: store}
}

func (t *PagesSearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "pages_search",
		Description: "Search the workspace pages by semantic similarity. Returns matching page titles, paths, and summaries.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum results to return (default 5)",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *PagesSearchTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	var params pagesSearchArgs
	if err := mapstructure.Decode(args, &params); err != nil {
		return Failure("pages_search", fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if params.Query == "" {
		return Failure("pages_search", "query is required"), nil
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 5
	}

	hits, err := t.store.SearchIndex(ctx, params.Query, params.MaxResults)
	if err != nil {
		return Failure("pages_search", fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(hits) == 0 {
		return ToolResult{
			Success:       true,
			Content:       "No pages matched the query.",
			ToolName:      "pages_search",
			ExecutionTime: time.Since(start),
		}, nil
	}

	var sb strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   %s\n", i+1, hit.Title, hit.Path, hit.Summary)
	}

	return ToolResult{
		Success:       true,
		Content:       sb.String(),
		Data:          map[string]any{"result_count": len(hits)},
		ToolName:      "pages_search",
		ExecutionTime: time.Since(start),
	}, nil
}
