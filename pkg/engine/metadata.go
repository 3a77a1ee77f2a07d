package engine

import (
	"fmt"
	"strings"

	"github.com/kaplanbora/sage/pkg/jsonx"
)

// parseStrategy recovers a SearchStrategy from model output. Models commonly
// emit a bare list of query strings instead of the requested object; a list
// of strings becomes primary_queries, a list of objects takes the first as
// the strategy.
func parseStrategy(text, question string) SearchStrategy {
	fallback := SearchStrategy{PrimaryQueries: []string{question}}

	v, err := jsonx.Extract(text)
	if err != nil {
		return fallback
	}

	switch val := v.(type) {
	case map[string]any:
		if s := strategyFromMap(val); len(s.PrimaryQueries) > 0 {
			return s
		}
	case []any:
		var queries []string
		for _, item := range val {
			switch entry := item.(type) {
			case string:
				queries = append(queries, entry)
			case map[string]any:
				if s := strategyFromMap(entry); len(s.PrimaryQueries) > 0 {
					return s
				}
			}
		}
		if len(queries) > 0 {
			return SearchStrategy{PrimaryQueries: queries}
		}
	}
	return fallback
}

func strategyFromMap(m map[string]any) SearchStrategy {
	return SearchStrategy{
		PrimaryQueries:      toStringSlice(m["primary_queries"]),
		FallbackQueries:     toStringSlice(m["fallback_queries"]),
		ExpectedContentType: toString(m["expected_content_type"]),
		Reasoning:           toString(m["reasoning"]),
	}
}

// parseRerank maps page_id to score and reasoning from the model's rerank
// output. Returns nil on total parse failure.
func parseRerank(text string) map[string]rerankEntry {
	arr, err := jsonx.ExtractArray(text)
	if err != nil {
		return nil
	}

	out := make(map[string]rerankEntry, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pageID := toString(m["page_id"])
		if pageID == "" {
			continue
		}
		score, ok := toFloat(m["relevance_score"])
		if !ok {
			continue
		}
		out[pageID] = rerankEntry{
			score:     clampScore(score),
			reasoning: toString(m["relevance_reasoning"]),
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type rerankEntry struct {
	score     float64
	reasoning string
}

// synthesisMetadata is the parsed block after the ---METADATA--- marker.
type synthesisMetadata struct {
	confidence          float64
	citations           []Citation
	gapsIdentified      string
	followUpSuggestions []string
}

func defaultSynthesisMetadata() synthesisMetadata {
	return synthesisMetadata{confidence: 0.7, citations: []Citation{}, followUpSuggestions: []string{}}
}

// parseSynthesisMetadata parses the JSON block defensively; any shape the
// model produces degrades to the defaults rather than failing the stage.
func parseSynthesisMetadata(text string) synthesisMetadata {
	meta := defaultSynthesisMetadata()

	obj, err := jsonx.ExtractObject(text)
	if err != nil {
		return meta
	}

	if conf, ok := toFloat(obj["confidence"]); ok {
		meta.confidence = clampScore(conf)
	}
	meta.citations = parseCitations(obj["citations"])
	meta.gapsIdentified = normalizeGaps(obj["gaps_identified"])
	meta.followUpSuggestions = normalizeFollowUps(obj["follow_up_suggestions"])
	return meta
}

// parseCitations keeps dict entries and drops everything else.
func parseCitations(v any) []Citation {
	arr, ok := v.([]any)
	if !ok {
		return []Citation{}
	}
	out := make([]Citation, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Citation{
			PageID:  toString(m["page_id"]),
			Title:   toString(m["title"]),
			Path:    toString(m["path"]),
			Excerpt: toString(m["excerpt"]),
		})
	}
	return out
}

// normalizeGaps flattens whatever the model put in gaps_identified into a
// single string. Lists join with semicolons; dict entries contribute their
// detail value; anything else is stringified.
func normalizeGaps(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		var parts []string
		for _, item := range val {
			switch entry := item.(type) {
			case string:
				parts = append(parts, entry)
			case map[string]any:
				if detail := toString(entry["detail"]); detail != "" {
					parts = append(parts, detail)
				} else {
					parts = append(parts, fmt.Sprintf("%v", entry))
				}
			default:
				parts = append(parts, fmt.Sprintf("%v", item))
			}
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// normalizeFollowUps accepts strings, {question: ...} or {suggestion: ...}
// dicts, or anything stringifiable.
func normalizeFollowUps(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		switch entry := item.(type) {
		case string:
			out = append(out, entry)
		case map[string]any:
			if q := toString(entry["question"]); q != "" {
				out = append(out, q)
			} else if s := toString(entry["suggestion"]); s != "" {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprintf("%v", entry))
			}
		default:
			out = append(out, fmt.Sprintf("%v", item))
		}
	}
	return out
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func clampScore(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
