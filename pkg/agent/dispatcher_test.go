package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/tools"
	"github.com/kaplanbora/sage/pkg/trace"
)

// routingProvider always requests the configured tool call, or answers
// directly when no call is configured.
type routingProvider struct {
	toolCall *llms.ToolCall
	text     string
	err      error
}

func (p *routingProvider) Generate(ctx context.Context, req llms.Request) (*llms.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	resp := &llms.Response{Text: p.text}
	if p.toolCall != nil {
		resp.ToolCalls = []llms.ToolCall{*p.toolCall}
	}
	return resp, nil
}

func (p *routingProvider) ModelName() string { return "routing" }
func (p *routingProvider) Close() error      { return nil }

type stubDelegate struct {
	name    string
	result  tools.ToolResult
	err     error
	gotArgs map[string]any
}

func (d *stubDelegate) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: d.name, Parameters: map[string]any{"type": "object"}}
}

func (d *stubDelegate) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	d.gotArgs = args
	return d.result, d.err
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterSpecialist(NewChitchatSpecialist(&routingProvider{text: "hi"})))
	return reg
}

func TestDispatcherRoutesToDelegate(t *testing.T) {
	delegate := &stubDelegate{
		name:   "delegate_to_knowledge",
		result: tools.ToolResult{Success: true, Content: "The deadline is March 15.", Data: map[string]any{"confidence": 0.9}},
	}
	provider := &routingProvider{
		toolCall: &llms.ToolCall{ID: "1", Name: "delegate_to_knowledge", Arguments: map[string]any{"user_question": "deadline?"}},
	}

	d := NewDispatcher(provider, newTestRegistry(t), []tools.Tool{delegate}, time.UTC)
	result := d.Process(context.Background(), "When is the deadline?", &AgentContext{})

	assert.True(t, result.Success)
	assert.Equal(t, "The deadline is March 15.", result.ResponseText)
	assert.Equal(t, "knowledge", result.AgentName)
	assert.Equal(t, map[string]any{"user_question": "deadline?"}, delegate.gotArgs)
}

func TestDispatcherAnswersTrivialTurnsDirectly(t *testing.T) {
	provider := &routingProvider{text: "Hello! How can I help?"}

	d := NewDispatcher(provider, newTestRegistry(t), nil, time.UTC)
	result := d.Process(context.Background(), "hi", &AgentContext{})

	assert.True(t, result.Success)
	assert.Equal(t, "Hello! How can I help?", result.ResponseText)
	assert.Equal(t, "dispatcher", result.AgentName)
}

func TestDispatcherModelFailureBecomesApology(t *testing.T) {
	provider := &routingProvider{err: errors.New("provider down")}

	d := NewDispatcher(provider, newTestRegistry(t), nil, time.UTC)
	result := d.Process(context.Background(), "anything", &AgentContext{})

	assert.False(t, result.Success)
	assert.Equal(t, dispatchErrorMessage, result.ResponseText)
}

func TestDispatcherUnknownToolBecomesApology(t *testing.T) {
	provider := &routingProvider{
		toolCall: &llms.ToolCall{ID: "1", Name: "delegate_to_nonexistent", Arguments: map[string]any{}},
	}

	d := NewDispatcher(provider, newTestRegistry(t), nil, time.UTC)
	result := d.Process(context.Background(), "anything", &AgentContext{})

	assert.False(t, result.Success)
	assert.Equal(t, dispatchErrorMessage, result.ResponseText)
}

func TestDispatcherFailedDelegationUsesUserSafeText(t *testing.T) {
	delegate := &stubDelegate{
		name:   "delegate_to_recall",
		result: tools.ToolResult{Success: false, Content: "history unavailable", Error: "history unavailable"},
	}
	provider := &routingProvider{
		toolCall: &llms.ToolCall{ID: "1", Name: "delegate_to_recall", Arguments: map[string]any{}},
	}

	d := NewDispatcher(provider, newTestRegistry(t), []tools.Tool{delegate}, time.UTC)
	result := d.Process(context.Background(), "what did I say", &AgentContext{})

	assert.False(t, result.Success)
	assert.Equal(t, "history unavailable", result.ResponseText)
	assert.Equal(t, "recall", result.AgentName)
}

func TestDispatcherHidesDiagnosticFailureText(t *testing.T) {
	delegate := &stubDelegate{
		name:   "delegate_to_knowledge",
		result: tools.ToolResult{Success: false, Error: `invalid argument "user_question": required field is missing`},
	}
	provider := &routingProvider{
		toolCall: &llms.ToolCall{ID: "1", Name: "delegate_to_knowledge", Arguments: map[string]any{}},
	}

	d := NewDispatcher(provider, newTestRegistry(t), []tools.Tool{delegate}, time.UTC)
	result := d.Process(context.Background(), "deadline?", &AgentContext{})

	assert.False(t, result.Success)
	assert.Equal(t, dispatchErrorMessage, result.ResponseText)
	assert.NotContains(t, result.ResponseText, "user_question")
}

func TestDispatcherRecordsTraceEvents(t *testing.T) {
	provider := &routingProvider{text: "hi"}
	tr := trace.New(trace.WithUserMessage("hi"))

	d := NewDispatcher(provider, newTestRegistry(t), nil, time.UTC)
	d.Process(context.Background(), "hi", &AgentContext{Trace: tr})

	events := tr.Events()
	require.Len(t, events, 2)
	assert.Equal(t, trace.EventRequest, events[0].EventType)
	assert.Equal(t, trace.EventResponse, events[1].EventType)
	for _, event := range events {
		assert.Equal(t, tr.ID(), event.TraceID)
	}
}

func TestDispatcherClassificationFailureRecordsErrorEvent(t *testing.T) {
	provider := &routingProvider{err: errors.New("provider down")}
	tr := trace.New()

	d := NewDispatcher(provider, newTestRegistry(t), nil, time.UTC)
	d.Process(context.Background(), "anything", &AgentContext{Trace: tr})

	var errorEvents []trace.Event
	for _, event := range tr.Events() {
		if event.EventType == trace.EventError {
			errorEvents = append(errorEvents, event)
		}
	}
	require.Len(t, errorEvents, 1)
	assert.Contains(t, errorEvents[0].ContentSummary, "provider down")
}

func TestSystemPromptListsSpecialists(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterSpecialist(NewChitchatSpecialist(&routingProvider{})))

	d := NewDispatcher(&routingProvider{}, reg, nil, time.UTC)
	prompt := d.systemPrompt()

	assert.Contains(t, prompt, "- **chitchat**:")
	assert.Contains(t, prompt, "Timezone: UTC")
}
