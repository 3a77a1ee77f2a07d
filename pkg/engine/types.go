// Copyright 2025 Bora Kaplan
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine implements the retrieval pipeline: intent analysis,
// multi-query search, model re-ranking, content fetch, and answer
// synthesis, each stage degrading to a narrower fallback on failure.
package engine

// SearchScope tunes how broadly intent analysis expands the question.
type SearchScope string

const (
	ScopePrecise       SearchScope = "precise"
	ScopeExploratory   SearchScope = "exploratory"
	ScopeComprehensive SearchScope = "comprehensive"
)

// scopeDescription feeds the intent analysis prompt.
func (s SearchScope) description() string {
	switch s {
	case ScopePrecise:
		return "Precise: the user wants one specific fact or document. Prefer narrow, exact queries."
	case ScopeComprehensive:
		return "Comprehensive: the user wants everything relevant. Cast a wide net with varied phrasings."
	default:
		return "Exploratory: the user is investigating a topic. Balance specific and broad queries."
	}
}

// SearchStrategy is the output of intent analysis.
type SearchStrategy struct {
	PrimaryQueries      []string `json:"primary_queries"`
	FallbackQueries     []string `json:"fallback_queries,omitempty"`
	ExpectedContentType string   `json:"expected_content_type,omitempty"`
	Reasoning           string   `json:"reasoning,omitempty"`
}

// RankedResult is one candidate page flowing through the pipeline. Content
// is populated only for results selected for enrichment.
type RankedResult struct {
	PageID             string
	Title              string
	Path               string
	Summary            string
	VectorScore        float32
	RelevanceScore     float64
	RelevanceReasoning string
	Content            string
	Metadata           map[string]any
}

// Citation points at a page the answer drew on.
type Citation struct {
	PageID  string `json:"page_id"`
	Title   string `json:"title"`
	Path    string `json:"path"`
	Excerpt string `json:"excerpt,omitempty"`
}

// SynthesizedAnswer is the terminal artifact of one pipeline run.
type SynthesizedAnswer struct {
	Answer              string     `json:"answer"`
	Confidence          float64    `json:"confidence"`
	Citations           []Citation `json:"citations"`
	GapsIdentified      string     `json:"gaps_identified,omitempty"`
	FollowUpSuggestions []string   `json:"follow_up_suggestions,omitempty"`
	PagesAnalyzed       int        `json:"pages_analyzed"`
}
