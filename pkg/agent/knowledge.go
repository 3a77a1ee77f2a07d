package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaplanbora/sage/pkg/engine"
	"github.com/kaplanbora/sage/pkg/trace"
)

// KnowledgeSpecialist answers questions from the workspace pages through the
// retrieval pipeline. It accepts either a structured KnowledgeQuery (the
// delegation path) or a free-text question.
type KnowledgeSpecialist struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewKnowledgeSpecialist(eng *engine.Engine) *KnowledgeSpecialist {
	return &KnowledgeSpecialist{engine: eng, logger: slog.Default()}
}

func (s *KnowledgeSpecialist) Name() string { return "knowledge" }

func (s *KnowledgeSpecialist) Description() string {
	return "Answers questions from the workspace pages: notes, project documents, and reference material."
}

func (s *KnowledgeSpecialist) GetSystemPrompt(actx *AgentContext) string {
	return "You answer questions using the document workspace. Ground every answer in the retrieved pages and cite them."
}

func (s *KnowledgeSpecialist) Process(ctx context.Context, message string, actx *AgentContext) AgentResult {
	start := time.Now()

	question := message
	scope := engine.ScopeExploratory
	maxPages := 0

	var query KnowledgeQuery
	if err := json.Unmarshal([]byte(message), &query); err == nil {
		if query.UserQuestion != "" {
			question = query.UserQuestion
		} else if query.SearchTerm != "" {
			question = query.SearchTerm
		}
		if query.ReadFullContent {
			scope = engine.ScopeComprehensive
		}
		if query.MaxResults > 0 {
			maxPages = query.MaxResults
		}
	}

	contextHint := recentHistoryHint(actx, 3)
	answer := s.engine.ProcessQuery(ctx, question, contextHint, scope, maxPages)

	if actx != nil && actx.Trace != nil {
		elapsed := time.Since(start)
		durationMS := float64(elapsed) / float64(time.Millisecond)
		actx.Trace.AddEvent(trace.EventResponse, s.Name(), "dispatcher",
			fmt.Sprintf("answered with confidence %.2f from %d pages", answer.Confidence, answer.PagesAnalyzed),
			&durationMS, nil)
	}

	return AgentResult{
		Success:      true,
		ResponseText: formatAnswer(answer),
		StructuredData: map[string]any{
			"confidence":     answer.Confidence,
			"pages_analyzed": answer.PagesAnalyzed,
			"citations":      answer.Citations,
		},
		AgentName:        s.Name(),
		TraceID:          actx.TraceID(),
		ProcessingTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
	}
}

func formatAnswer(answer *engine.SynthesizedAnswer) string {
	var sb strings.Builder
	sb.WriteString(answer.Answer)

	if len(answer.Citations) > 0 {
		sb.WriteString("\n\nSources:\n")
		for _, c := range answer.Citations {
			fmt.Fprintf(&sb, "- %s (%s)\n", c.Title, c.Path)
		}
	}
	if len(answer.FollowUpSuggestions) > 0 {
		sb.WriteString("\nYou could also ask:\n")
		for _, f := range answer.FollowUpSuggestions {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}
	return sb.String()
}

// recentHistoryHint condenses the last few turns into a context hint for
// intent analysis.
func recentHistoryHint(actx *AgentContext, turns int) string {
	if actx == nil || len(actx.MessageHistory) == 0 {
		return ""
	}
	history := actx.MessageHistory
	if len(history) > turns {
		history = history[len(history)-turns:]
	}
	var parts []string
	for _, msg := range history {
		content := msg.Content
		if len(content) > 150 {
			content = content[:150]
		}
		parts = append(parts, fmt.Sprintf("%s: %s", msg.Role, content))
	}
	return strings.Join(parts, " | ")
}
