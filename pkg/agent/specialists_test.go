package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaplanbora/sage/pkg/calendar"
	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/session"
)

func TestChitchatSpecialist(t *testing.T) {
	s := NewChitchatSpecialist(&routingProvider{text: "Hey! Nice to hear from you."})

	result := s.Process(context.Background(), "hello", &AgentContext{})
	assert.True(t, result.Success)
	assert.Equal(t, "Hey! Nice to hear from you.", result.ResponseText)
	assert.Equal(t, "chitchat", result.AgentName)
}

func TestChitchatSpecialistFallsBackToGreeting(t *testing.T) {
	s := NewChitchatSpecialist(&routingProvider{err: errors.New("rate limited")})

	result := s.Process(context.Background(), "hello", &AgentContext{})
	assert.True(t, result.Success)
	assert.Equal(t, fallbackGreeting, result.ResponseText)
}

func TestRecallSpecialistRecentMode(t *testing.T) {
	store := session.NewMemoryStore(100)
	require.NoError(t, store.AppendMessage(context.Background(), "s1", session.Message{Role: "user", Content: "remember the budget is 5000"}))
	require.NoError(t, store.AppendMessage(context.Background(), "s1", session.Message{Role: "assistant", Content: "Noted."}))

	s := NewRecallSpecialist(&routingProvider{}, store)
	result := s.Process(context.Background(),
		`{"query": "budget", "mode": "recent"}`,
		&AgentContext{SessionID: "s1"})

	assert.True(t, result.Success)
	assert.Contains(t, result.ResponseText, "budget is 5000")
}

func TestRecallSpecialistSmartModeFilters(t *testing.T) {
	store := session.NewMemoryStore(100)
	require.NoError(t, store.AppendMessage(context.Background(), "s1", session.Message{Role: "user", Content: "the budget is 5000"}))
	require.NoError(t, store.AppendMessage(context.Background(), "s1", session.Message{Role: "user", Content: "unrelated chatter"}))

	s := NewRecallSpecialist(&routingProvider{}, store)
	result := s.Process(context.Background(),
		`{"query": "budget amount", "mode": "smart"}`,
		&AgentContext{SessionID: "s1"})

	assert.True(t, result.Success)
	assert.Contains(t, result.ResponseText, "budget is 5000")
	assert.NotContains(t, result.ResponseText, "unrelated chatter")
}

func TestRecallSpecialistEmptyHistory(t *testing.T) {
	s := NewRecallSpecialist(&routingProvider{}, session.NewMemoryStore(100))
	result := s.Process(context.Background(), "what did I say", &AgentContext{SessionID: "empty"})

	assert.True(t, result.Success)
	assert.Contains(t, result.ResponseText, "no earlier conversation")
}

type recordingCalendar struct {
	created []calendar.Event
}

func (c *recordingCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	return nil, nil
}

func (c *recordingCalendar) CreateEvent(ctx context.Context, event calendar.Event) (*calendar.Event, error) {
	event.ID = "e1"
	c.created = append(c.created, event)
	return &event, nil
}

func (c *recordingCalendar) Close() error { return nil }

func TestSchedulerDirectWriteSkipsModel(t *testing.T) {
	store := &recordingCalendar{}
	provider := &routingProvider{err: errors.New("model must not be called")}

	s := NewSchedulerSpecialist(provider, store, time.UTC)
	result := s.Process(context.Background(),
		`{"action": "write", "title": "Dentist", "start_time": "2026-09-01T14:00:00Z", "duration_minutes": 30}`,
		&AgentContext{})

	assert.True(t, result.Success)
	require.Len(t, store.created, 1)
	assert.Equal(t, "Dentist", store.created[0].Title)
	assert.Equal(t, []string{"calendar_writer"}, result.ToolCallsMade)
}

// toolThenTextProvider requests a tool call on the first round and answers
// in text on the second, exercising the tool loop.
type toolThenTextProvider struct {
	call  llms.ToolCall
	text  string
	round int
}

func (p *toolThenTextProvider) Generate(ctx context.Context, req llms.Request) (*llms.Response, error) {
	p.round++
	if p.round == 1 {
		return &llms.Response{ToolCalls: []llms.ToolCall{p.call}}, nil
	}
	return &llms.Response{Text: p.text}, nil
}

func (p *toolThenTextProvider) ModelName() string { return "tool-then-text" }
func (p *toolThenTextProvider) Close() error      { return nil }

func TestSchedulerToolLoopReadsCalendar(t *testing.T) {
	store := &recordingCalendar{}
	provider := &toolThenTextProvider{
		call: llms.ToolCall{ID: "1", Name: "calendar_reader", Arguments: map[string]any{"days_ahead": 7}},
		text: "You have no events this week.",
	}

	s := NewSchedulerSpecialist(provider, store, time.UTC)
	result := s.Process(context.Background(), "what's on my calendar this week?", &AgentContext{})

	assert.True(t, result.Success)
	assert.Equal(t, "You have no events this week.", result.ResponseText)
	assert.Equal(t, []string{"calendar_reader"}, result.ToolCallsMade)
}

func TestChildContextCopiesByValue(t *testing.T) {
	parent := &AgentContext{
		ChatID:    "c1",
		UserID:    "u1",
		SessionID: "s1",
		MessageHistory: []session.Message{
			{Role: "user", Content: "original"},
		},
		Metadata: map[string]any{"k": "v"},
	}

	child := parent.Child()
	child.MessageHistory[0].Content = "mutated"
	child.Metadata["k"] = "mutated"

	assert.Equal(t, "original", parent.MessageHistory[0].Content)
	assert.Equal(t, "v", parent.Metadata["k"])
	assert.Equal(t, "c1", child.ChatID)
	assert.Equal(t, "s1", child.SessionID)
}
