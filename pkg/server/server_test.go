package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaplanbora/sage/pkg/agent"
	"github.com/kaplanbora/sage/pkg/delegate"
	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/session"
	"github.com/kaplanbora/sage/pkg/tools"
	"github.com/kaplanbora/sage/pkg/trace"
)

type echoProvider struct{}

func (echoProvider) Generate(ctx context.Context, req llms.Request) (*llms.Response, error) {
	return &llms.Response{Text: "echo: " + req.Prompt}, nil
}

func (echoProvider) ModelName() string { return "echo" }
func (echoProvider) Close() error      { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := agent.NewRegistry()
	require.NoError(t, reg.RegisterSpecialist(agent.NewChitchatSpecialist(echoProvider{})))
	dispatcher := agent.NewDispatcher(echoProvider{}, reg, nil, time.UTC)
	return New(":0", dispatcher, session.NewMemoryStore(100), NewTraceStore(10), nil)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()

	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestChatEndpointRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()

	body := strings.NewReader(`{"session_id": "s1", "message": "hello"}`)
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "echo: hello", resp.Response)
	assert.Equal(t, "s1", resp.SessionID)
	assert.NotEmpty(t, resp.TraceID)

	// The trace must be retrievable in the export shape.
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/traces/"+resp.TraceID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var export trace.Export
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Equal(t, resp.TraceID, export.TraceID)
	assert.Equal(t, "hello", export.UserMessage)
	assert.NotEmpty(t, export.EndTime)
}

// delegatingProvider always routes to the chitchat delegation tool.
type delegatingProvider struct{}

func (delegatingProvider) Generate(ctx context.Context, req llms.Request) (*llms.Response, error) {
	return &llms.Response{ToolCalls: []llms.ToolCall{{
		ID:        "1",
		Name:      "delegate_to_chitchat",
		Arguments: map[string]any{"message": req.Prompt},
	}}}, nil
}

func (delegatingProvider) ModelName() string { return "delegating" }
func (delegatingProvider) Close() error      { return nil }

type greetingSpecialist struct{}

func (greetingSpecialist) Name() string        { return "chitchat" }
func (greetingSpecialist) Description() string { return "Small talk." }

func (greetingSpecialist) GetSystemPrompt(actx *agent.AgentContext) string { return "" }

func (greetingSpecialist) Process(ctx context.Context, message string, actx *agent.AgentContext) agent.AgentResult {
	return agent.AgentResult{Success: true, ResponseText: "hello there", AgentName: "chitchat"}
}

func TestChatDelegationChildTraceIsReachable(t *testing.T) {
	reg := agent.NewRegistry()
	require.NoError(t, reg.RegisterSpecialist(greetingSpecialist{}))

	wrapped := delegate.MustWrap(greetingSpecialist{}, &agent.ChitchatQuery{})
	dispatcher := agent.NewDispatcher(delegatingProvider{}, reg, []tools.Tool{wrapped}, time.UTC)
	srv := New(":0", dispatcher, session.NewMemoryStore(100), NewTraceStore(10), nil)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"session_id": "s1", "message": "hi"}`)
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello there", resp.Response)

	// Both the root trace and the delegation's child trace are stored.
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/traces", nil))
	var listing struct {
		TraceIDs []string `json:"trace_ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.TraceIDs, 2)

	var childID string
	for _, id := range listing.TraceIDs {
		if id != resp.TraceID {
			childID = id
		}
	}
	require.NotEmpty(t, childID)

	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/traces/"+childID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var export trace.Export
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Equal(t, resp.TraceID, export.ParentTraceID)
	assert.NotEmpty(t, export.Events, "specialist-side events must be exportable")
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()

	body := strings.NewReader(`{"session_id": "s1"}`)
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTraceNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()

	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/traces/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTraceStoreEvictsOldest(t *testing.T) {
	store := NewTraceStore(2)

	first := trace.New()
	second := trace.New()
	third := trace.New()
	store.Add(first)
	store.Add(second)
	store.Add(third)

	_, ok := store.Get(first.ID())
	assert.False(t, ok, "oldest trace should be evicted")
	_, ok = store.Get(second.ID())
	assert.True(t, ok)
	_, ok = store.Get(third.ID())
	assert.True(t, ok)
	assert.Equal(t, []string{second.ID(), third.ID()}, store.RecentIDs())
}
