package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaplanbora/sage/pkg/calendar"
	"github.com/kaplanbora/sage/pkg/pages"
	"github.com/kaplanbora/sage/pkg/session"
)

type fakePagesStore struct {
	hits []pages.IndexHit
	err  error
}

func (f *fakePagesStore) SearchIndex(ctx context.Context, query string, maxResults int) ([]pages.IndexHit, error) {
	return f.hits, f.err
}

func (f *fakePagesStore) FetchPage(ctx context.Context, pageID string) (*pages.Page, error) {
	return nil, nil
}

func TestPagesSearchTool(t *testing.T) {
	tool := NewPagesSearchTool(&fakePagesStore{hits: []pages.IndexHit{
		{PageID: "p1", Title: "Roadmap", Path: "/projects/roadmap", Summary: "Q3 plans"},
	}})

	result, err := tool.Execute(context.Background(), map[string]any{"query": "roadmap"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "Roadmap")
	assert.Contains(t, result.Content, "/projects/roadmap")
	assert.Equal(t, 1, result.Data["result_count"])
}

func TestPagesSearchToolRequiresQuery(t *testing.T) {
	tool := NewPagesSearchTool(&fakePagesStore{})

	result, err := tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "query is required")
}

type fakeCalendarStore struct {
	events  []calendar.Event
	created []calendar.Event
}

func (f *fakeCalendarStore) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	return f.events, nil
}

func (f *fakeCalendarStore) CreateEvent(ctx context.Context, event calendar.Event) (*calendar.Event, error) {
	event.ID = "evt-1"
	f.created = append(f.created, event)
	return &event, nil
}

func (f *fakeCalendarStore) Close() error { return nil }

func TestCalendarReaderTool(t *testing.T) {
	store := &fakeCalendarStore{events: []calendar.Event{
		{ID: "e1", Title: "Standup", StartTime: time.Now().Add(time.Hour), Location: "Room 4"},
	}}
	tool := NewCalendarReaderTool(store)

	result, err := tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "Standup")
	assert.Contains(t, result.Content, "Room 4")
}

func TestCalendarWriterTool(t *testing.T) {
	store := &fakeCalendarStore{}
	tool := NewCalendarWriterTool(store)

	result, err := tool.Execute(context.Background(), map[string]any{
		"title":            "Dentist",
		"start_time":       "2026-09-01T14:00:00Z",
		"duration_minutes": 30,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, store.created, 1)
	assert.Equal(t, "Dentist", store.created[0].Title)
	assert.Equal(t, 30*time.Minute, store.created[0].EndTime.Sub(store.created[0].StartTime))
	assert.Equal(t, "evt-1", result.Data["event_id"])
}

func TestCalendarWriterToolRejectsBadTime(t *testing.T) {
	tool := NewCalendarWriterTool(&fakeCalendarStore{})

	result, err := tool.Execute(context.Background(), map[string]any{
		"title":      "Dentist",
		"start_time": "tomorrow at noon",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "RFC3339")
}

func TestConversationHistoryTool(t *testing.T) {
	store := session.NewMemoryStore(100)
	require.NoError(t, store.AppendMessage(context.Background(), "s1", session.Message{Role: "user", Content: "hello"}))
	require.NoError(t, store.AppendMessage(context.Background(), "s1", session.Message{Role: "assistant", Content: "hi there"}))

	tool := NewConversationHistoryTool(store)

	result, err := tool.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "[user] hello")
	assert.Contains(t, result.Content, "[assistant] hi there")
	assert.Equal(t, 2, result.Data["message_count"])
}
