package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/kaplanbora/sage/pkg/llms"
)

const metadataMarker = "---METADATA---"

const noResultsMessage = "I couldn't find any relevant pages for your question. " +
	"Try rephrasing it or using different keywords."

// splitSynthesisResponse separates the answer text from the metadata block.
// Text before the marker is the answer verbatim; an absent or unparsable
// block yields the defaults.
func splitSynthesisResponse(text string) (string, synthesisMetadata) {
	idx := strings.Index(text, metadataMarker)
	if idx < 0 {
		return strings.TrimSpace(text), defaultSynthesisMetadata()
	}
	answer := strings.TrimSpace(text[:idx])
	meta := parseSynthesisMetadata(text[idx+len(metadataMarker):])
	return answer, meta
}

// noResultsAnswer handles the empty-search path. With synthesis enabled the
// model writes the acknowledgment; otherwise a canned message stands in.
// Confidence is always 0.0.
func (e *Engine) noResultsAnswer(ctx context.Context, question string) *SynthesizedAnswer {
	answer := &SynthesizedAnswer{
		Answer:              noResultsMessage,
		Confidence:          0.0,
		Citations:           []Citation{},
		FollowUpSuggestions: []string{},
	}

	if !e.cfg.UseSynthesis() {
		return answer
	}

	resp, err := e.llm.Generate(ctx, llms.Request{
		SystemPrompt: noResultsSystemPrompt,
		Prompt:       buildNoResultsPrompt(e.workspaceContext, question),
	})
	if err != nil {
		e.logger.Warn("No-results synthesis failed, using canned message", "error", err)
		return answer
	}
	if text := strings.TrimSpace(resp.Text); text != "" {
		answer.Answer = text
	}
	return answer
}

// rawResultsAnswer handles the synthesis-disabled path: a numbered list of
// enriched results, one citation per result, no model call. Confidence is
// fixed at 0.6.
func (e *Engine) rawResultsAnswer(question string, results []RankedResult) *SynthesizedAnswer {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's what I found for %q:\n\n", question)

	citations := make([]Citation, 0, len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. **%s** (%s)\n", i+1, r.Title, r.Path)
		preview := r.Content
		if preview == "" {
			preview = r.Summary
		}
		if preview != "" {
			fmt.Fprintf(&sb, "   %s\n", truncate(preview, 1000))
		}
		sb.WriteString("\n")
		citations = append(citations, Citation{
			PageID:  r.PageID,
			Title:   r.Title,
			Path:    r.Path,
			Excerpt: truncate(r.Summary, 200),
		})
	}

	return &SynthesizedAnswer{
		Answer:              sb.String(),
		Confidence:          0.6,
		Citations:           citations,
		FollowUpSuggestions: []string{},
		PagesAnalyzed:       len(results),
	}
}

// simpleFallback is the last rung of the ladder: one raw search, best match
// wins, zero model calls. It serves both the disabled-engine path and total
// pipeline failure.
func (e *Engine) simpleFallback(ctx context.Context, question string) *SynthesizedAnswer {
	empty := &SynthesizedAnswer{
		Answer:              noResultsMessage,
		Confidence:          0.0,
		Citations:           []Citation{},
		FollowUpSuggestions: []string{},
	}

	hits, err := e.store.SearchIndex(ctx, question, 5)
	if err != nil {
		e.logger.Error("Fallback search failed", "error", err)
		return empty
	}
	if len(hits) == 0 {
		return empty
	}

	best := hits[0]
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** (%s)\n\n", best.Title, best.Path)

	if page, err := e.store.FetchPage(ctx, best.PageID); err != nil {
		e.logger.Warn("Fallback content fetch failed", "page_id", best.PageID, "error", err)
		sb.WriteString(best.Summary)
	} else if page != nil && page.Content != "" {
		sb.WriteString(truncate(page.Content, 1500))
	} else {
		sb.WriteString(best.Summary)
	}

	if len(hits) > 1 {
		sb.WriteString("\n\nOther matches:\n")
		others := hits[1:]
		if len(others) > 3 {
			others = others[:3]
		}
		for _, hit := range others {
			fmt.Fprintf(&sb, "- %s (%s)\n", hit.Title, hit.Path)
		}
	}

	return &SynthesizedAnswer{
		Answer:     sb.String(),
		Confidence: 0.7,
		Citations: []Citation{{
			PageID:  best.PageID,
			Title:   best.Title,
			Path:    best.Path,
			Excerpt: truncate(best.Summary, 200),
		}},
		FollowUpSuggestions: []string{},
		PagesAnalyzed:       1,
	}
}
