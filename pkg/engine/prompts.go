package engine

import (
	"fmt"
	"strings"
)

const intentSystemPrompt = `You are a search strategist for a document workspace. Given a user
question, produce a JSON object describing how to search the workspace.

Respond with ONLY a JSON object in this exact shape:
{
  "primary_queries": ["query 1", "query 2"],
  "fallback_queries": ["broader query"],
  "expected_content_type": "what kind of page should answer this",
  "reasoning": "one sentence on the approach"
}

Rules:
- 1 to 5 primary queries, most specific first.
- Fallback queries are broader rephrasings used only if primary queries find little.
- Queries should be short keyword phrases, not full sentences.`

func buildIntentPrompt(workspaceContext, question, contextHint string, scope SearchScope) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Workspace: %s\n\n", workspaceContext)
	fmt.Fprintf(&sb, "Question: %s\n", question)
	if contextHint != "" {
		fmt.Fprintf(&sb, "Conversation context: %s\n", contextHint)
	}
	fmt.Fprintf(&sb, "Search scope: %s\n", scope.description())
	return sb.String()
}

const rerankSystemPrompt = `You rank search results by relevance to a question. Respond with ONLY
a JSON array, one entry per result:
[{"page_id": "...", "relevance_score": 0.0, "relevance_reasoning": "..."}]

relevance_score is between 0.0 (irrelevant) and 1.0 (directly answers the
question). Include every result you were given.`

func buildRerankPrompt(question string, results []RankedResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nResults:\n", question)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. page_id: %s\n   Title: %s\n   Path: %s\n   Summary: %s\n",
			i+1, r.PageID, r.Title, r.Path, truncate(r.Summary, 500))
	}
	return sb.String()
}

const synthesisSystemPrompt = `You answer questions using only the provided workspace pages. Cite
the pages you draw on. If the pages do not contain the answer, say so.

Write your answer first. Then, on its own line, write the marker
---METADATA---
followed by a JSON object:
{
  "confidence": 0.0,
  "citations": [{"page_id": "...", "title": "...", "path": "...", "excerpt": "..."}],
  "gaps_identified": "what the pages did not cover, or null",
  "follow_up_suggestions": ["next question the user might ask"]
}`

func buildSynthesisPrompt(question string, results []RankedResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	for i, r := range results {
		content := r.Content
		if content == "" {
			content = r.Summary
		}
		fmt.Fprintf(&sb, "--- Page %d: %s ---\nPath: %s\nPage ID: %s\nContent:\n%s\n",
			i+1, r.Title, r.Path, r.PageID, truncate(content, 2000))
	}
	return sb.String()
}

const noResultsSystemPrompt = `The workspace search found nothing for the user's question. Write a
short, helpful reply: acknowledge that nothing was found, and suggest one
or two ways the user could rephrase or narrow the question. Do not invent
an answer.`

func buildNoResultsPrompt(workspaceContext, question string) string {
	return fmt.Sprintf("Workspace: %s\n\nQuestion: %s\n", workspaceContext, question)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
