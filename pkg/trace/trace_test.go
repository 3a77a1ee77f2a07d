package trace

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEventAppendsInOrder(t *testing.T) {
	tr := New()

	tr.AddEvent(EventRequest, "transport", "dispatcher", "incoming message", nil, nil)
	tr.AddEvent(EventModelRequest, "dispatcher", "llm", "classify", nil, nil)
	tr.AddEvent(EventResponse, "dispatcher", "transport", "reply", nil, nil)

	events := tr.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventRequest, events[0].EventType)
	assert.Equal(t, EventModelRequest, events[1].EventType)
	assert.Equal(t, EventResponse, events[2].EventType)

	for _, e := range events {
		assert.Equal(t, tr.ID(), e.TraceID)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	tr := New()
	tr.Complete()
	first := tr.DurationMS()

	time.Sleep(5 * time.Millisecond)
	tr.Complete()

	assert.Equal(t, first, tr.DurationMS())
}

func TestDurationBeforeCompletion(t *testing.T) {
	tr := New()
	time.Sleep(2 * time.Millisecond)

	d1 := tr.DurationMS()
	assert.Greater(t, d1, 0.0)

	time.Sleep(2 * time.Millisecond)
	assert.Greater(t, tr.DurationMS(), d1)
}

func TestObserverReceivesEvents(t *testing.T) {
	var seen []Event
	tr := New(WithObserver(func(e Event) {
		seen = append(seen, e)
	}))

	tr.AddEvent(EventToolCall, "specialist", "pages_search", "query", nil, nil)

	require.Len(t, seen, 1)
	assert.Equal(t, EventToolCall, seen[0].EventType)
}

func TestObserverPanicDoesNotPropagate(t *testing.T) {
	tr := New(WithObserver(func(e Event) {
		panic("observer is broken")
	}))

	assert.NotPanics(t, func() {
		tr.AddEvent(EventError, "a", "b", "boom", nil, nil)
	})
	assert.Len(t, tr.Events(), 1)
}

func TestContextCarriesTrace(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	tr := New()
	ctx := NewContext(context.Background(), tr)
	assert.Same(t, tr, FromContext(ctx))
}

func TestNewChildLinksParent(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	assert.NotEqual(t, parent.ID(), child.ID())
	assert.Equal(t, parent.ID(), child.ParentID())
}

func TestChildInheritsObserver(t *testing.T) {
	var count int
	parent := New(WithObserver(func(Event) { count++ }))
	child := NewChild(parent)

	child.AddEvent(EventDelegation, "dispatcher", "knowledge", "delegate", nil, nil)
	assert.Equal(t, 1, count)
}

func TestChildSinkReceivesDerivedTraces(t *testing.T) {
	var registered []*Trace
	parent := New(WithChildSink(func(tr *Trace) {
		registered = append(registered, tr)
	}))

	child := NewChild(parent)
	grandchild := NewChild(child)

	require.Len(t, registered, 2)
	assert.Equal(t, child.ID(), registered[0].ID())
	assert.Equal(t, grandchild.ID(), registered[1].ID())

	// Events appended after registration are visible through the sink's
	// reference, so a store holding it sees the full delegation record.
	child.AddEvent(EventRequest, "dispatcher", "knowledge", "delegate", nil, nil)
	assert.Len(t, registered[0].Events(), 1)
}

func TestChildSinkPanicDoesNotPropagate(t *testing.T) {
	parent := New(WithChildSink(func(*Trace) {
		panic("sink is broken")
	}))

	assert.NotPanics(t, func() {
		child := NewChild(parent)
		assert.Equal(t, parent.ID(), child.ParentID())
	})
}

func TestExportShape(t *testing.T) {
	tr := New(WithUserMessage("when is the deadline?"))
	duration := 12.5
	tr.AddEvent(EventModelResponse, "llm", "dispatcher", "answer", &duration, map[string]any{"tokens": 42})
	tr.SetResponse("March 15")
	tr.Complete()

	data, err := tr.ExportJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, tr.ID(), decoded["trace_id"])
	assert.Equal(t, "when is the deadline?", decoded["user_message"])
	assert.Equal(t, "March 15", decoded["bot_response"])
	assert.NotEmpty(t, decoded["start_time"])
	assert.NotEmpty(t, decoded["end_time"])
	assert.GreaterOrEqual(t, decoded["duration_ms"].(float64), 0.0)

	events := decoded["events"].([]any)
	require.Len(t, events, 1)
	event := events[0].(map[string]any)
	assert.Equal(t, "model_response", event["event_type"])
	assert.Equal(t, "llm", event["source"])
	assert.Equal(t, "dispatcher", event["target"])
	assert.Equal(t, 12.5, event["duration_ms"])

	// Timestamps must be ISO-8601.
	_, err = time.Parse(time.RFC3339Nano, event["timestamp"].(string))
	assert.NoError(t, err)
}
