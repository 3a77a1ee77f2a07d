package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kaplanbora/sage/pkg/llms"
)

// ChitchatSpecialist handles small talk with a single direct model call. No
// tools, no delegation.
type ChitchatSpecialist struct {
	llm llms.Provider
}

func NewChitchatSpecialist(llm llms.Provider) *ChitchatSpecialist {
	return &ChitchatSpecialist{llm: llm}
}

func (s *ChitchatSpecialist) Name() string { return "chitchat" }

func (s *ChitchatSpecialist) Description() string {
	return "Handles greetings, thanks, and casual conversation."
}

func (s *ChitchatSpecialist) GetSystemPrompt(actx *AgentContext) string {
	return "You are a friendly assistant making casual conversation. Keep replies short and warm. Do not invent facts about the user's documents or calendar."
}

// fallbackGreeting keeps small talk working when the model is unreachable.
const fallbackGreeting = "Hello! How can I help you today?"

func (s *ChitchatSpecialist) Process(ctx context.Context, message string, actx *AgentContext) AgentResult {
	start := time.Now()

	var query ChitchatQuery
	if err := json.Unmarshal([]byte(message), &query); err == nil && query.Message != "" {
		message = query.Message
	}

	text := fallbackGreeting
	resp, err := s.llm.Generate(ctx, llms.Request{
		SystemPrompt: s.GetSystemPrompt(actx),
		Prompt:       message,
	})
	if err == nil && resp.Text != "" {
		text = resp.Text
	}

	return AgentResult{
		Success:          true,
		ResponseText:     text,
		AgentName:        s.Name(),
		TraceID:          actx.TraceID(),
		ProcessingTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
	}
}
