package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/session"
)

// RecallSpecialist surfaces earlier parts of the conversation. Three modes:
// recent returns the latest turns verbatim, smart filters by keyword, llm
// asks the model to summarize what matters for the query.
type RecallSpecialist struct {
	llm   llms.Provider
	store session.Store
}

func NewRecallSpecialist(llm llms.Provider, store session.Store) *RecallSpecialist {
	return &RecallSpecialist{llm: llm, store: store}
}

func (s *RecallSpecialist) Name() string { return "recall" }

func (s *RecallSpecialist) Description() string {
	return "Recalls what was said earlier in this conversation."
}

func (s *RecallSpecialist) GetSystemPrompt(actx *AgentContext) string {
	return "You summarize earlier conversation turns that are relevant to the user's question. Quote the original wording where it matters."
}

func (s *RecallSpecialist) Process(ctx context.Context, message string, actx *AgentContext) AgentResult {
	start := time.Now()

	query := RecallQuery{Mode: "smart", MaxMessages: 20}
	if err := json.Unmarshal([]byte(message), &query); err != nil || query.Query == "" {
		query.Query = message
	}
	if query.Mode == "" {
		query.Mode = "smart"
	}
	if query.MaxMessages <= 0 {
		query.MaxMessages = 20
	}
	if query.MaxMessages > 50 {
		query.MaxMessages = 50
	}

	sessionID := ""
	if actx != nil {
		sessionID = actx.SessionID
	}

	history, err := s.store.History(ctx, sessionID, query.MaxMessages)
	if err != nil {
		return failureResult(s.Name(), "I couldn't access the conversation history right now. Please try again.",
			actx, float64(time.Since(start))/float64(time.Millisecond))
	}
	if len(history) == 0 {
		return AgentResult{
			Success:          true,
			ResponseText:     "There's no earlier conversation to recall yet.",
			AgentName:        s.Name(),
			TraceID:          actx.TraceID(),
			ProcessingTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
		}
	}

	var text string
	switch query.Mode {
	case "recent":
		text = formatHistory(history)
	case "llm":
		text = s.summarize(ctx, query.Query, history)
	default:
		filtered := filterByKeywords(history, query.Query)
		if len(filtered) == 0 {
			filtered = history
		}
		text = formatHistory(filtered)
	}

	return AgentResult{
		Success:          true,
		ResponseText:     text,
		StructuredData:   map[string]any{"messages_considered": len(history)},
		AgentName:        s.Name(),
		TraceID:          actx.TraceID(),
		ProcessingTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
	}
}

// summarize asks the model to condense the relevant turns. A model failure
// degrades to the verbatim listing rather than an error.
func (s *RecallSpecialist) summarize(ctx context.Context, query string, history []session.Message) string {
	resp, err := s.llm.Generate(ctx, llms.Request{
		SystemPrompt: s.GetSystemPrompt(nil),
		Prompt:       fmt.Sprintf("Question: %s\n\nConversation so far:\n%s", query, formatHistory(history)),
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		return formatHistory(history)
	}
	return resp.Text
}

func formatHistory(history []session.Message) string {
	var sb strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&sb, "[%s] %s\n", msg.Role, msg.Content)
	}
	return sb.String()
}

// filterByKeywords keeps messages sharing at least one word (4+ chars) with
// the query, preserving order.
func filterByKeywords(history []session.Message, query string) []session.Message {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if len(word) >= 4 {
			keywords = append(keywords, word)
		}
	}
	if len(keywords) == 0 {
		return nil
	}

	var out []session.Message
	for _, msg := range history {
		lower := strings.ToLower(msg.Content)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, msg)
				break
			}
		}
	}
	return out
}
