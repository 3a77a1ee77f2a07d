// Package trace records the path of one user request through the system as
// an append-only event log. A trace spans dispatch and every delegation made
// while handling a single transport message; child traces link back to their
// parent so the full tree can be reconstructed.
package trace

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventRequest       EventType = "request"
	EventResponse      EventType = "response"
	EventToolCall      EventType = "tool_call"
	EventDelegation    EventType = "delegation"
	EventModelRequest  EventType = "model_request"
	EventModelResponse EventType = "model_response"
	EventError         EventType = "error"
)

// Event is one hop in a request's path. TraceID always equals the owning
// trace's id.
type Event struct {
	Timestamp      time.Time      `json:"timestamp"`
	EventType      EventType      `json:"event_type"`
	Source         string         `json:"source"`
	Target         string         `json:"target"`
	ContentSummary string         `json:"content_summary"`
	DurationMS     *float64       `json:"duration_ms,omitempty"`
	TraceID        string         `json:"trace_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Observer receives every appended event, typically to live-stream it to a
// debug surface. Observers are best-effort: panics are caught and logged,
// never propagated to the caller.
type Observer func(Event)

// ChildSink receives every trace derived from this one, transitively, at
// creation time. Stores register it on the root trace so delegation traces
// stay reachable after the request completes. Same best-effort contract as
// Observer.
type ChildSink func(*Trace)

// Trace is the event log for one end-to-end request. Events can only be
// appended. A trace is owned by a single logical request; the mutex guards
// against an observer-driven reader racing the owning goroutine.
type Trace struct {
	mu          sync.Mutex
	id          string
	parentID    string
	userMessage string
	botResponse string
	startTime   time.Time
	endTime     time.Time
	events      []Event
	observer    Observer
	childSink   ChildSink
}

type Option func(*Trace)

// WithObserver attaches a live event callback to the trace.
func WithObserver(obs Observer) Option {
	return func(t *Trace) {
		t.observer = obs
	}
}

// WithChildSink registers a callback for every trace derived from this one.
func WithChildSink(sink ChildSink) Option {
	return func(t *Trace) {
		t.childSink = sink
	}
}

// WithUserMessage records the originating user message for export.
func WithUserMessage(msg string) Option {
	return func(t *Trace) {
		t.userMessage = msg
	}
}

func New(opts ...Option) *Trace {
	t := &Trace{
		id:        uuid.NewString(),
		startTime: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewChild creates a trace for a delegation: fresh id, parent pointer set to
// the caller's id. Observer and child sink are inherited so child events keep
// streaming to the same surfaces, and the sink sees the new trace.
func NewChild(parent *Trace) *Trace {
	t := New()
	if parent == nil {
		return t
	}
	t.parentID = parent.id
	t.observer = parent.observer
	t.childSink = parent.childSink
	if t.childSink != nil {
		t.notifySink(t.childSink)
	}
	return t
}

func (t *Trace) ID() string       { return t.id }
func (t *Trace) ParentID() string { return t.parentID }

// AddEvent appends an event and notifies the observer. durationMS and
// metadata may be nil.
func (t *Trace) AddEvent(eventType EventType, source, target, summary string, durationMS *float64, metadata map[string]any) Event {
	event := Event{
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		Source:         source,
		Target:         target,
		ContentSummary: summary,
		DurationMS:     durationMS,
		TraceID:        t.id,
		Metadata:       metadata,
	}

	t.mu.Lock()
	t.events = append(t.events, event)
	observer := t.observer
	t.mu.Unlock()

	if observer != nil {
		t.notify(observer, event)
	}

	return event
}

func (t *Trace) notify(observer Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("trace observer panicked", "trace_id", t.id, "panic", r)
		}
	}()
	observer(event)
}

func (t *Trace) notifySink(sink ChildSink) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("trace child sink panicked", "trace_id", t.id, "panic", r)
		}
	}()
	sink(t)
}

// SetResponse records the final user-facing response for export.
func (t *Trace) SetResponse(response string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.botResponse = response
}

// Complete marks the trace as finished. Safe to call more than once; only
// the first call sets the end time.
func (t *Trace) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endTime.IsZero() {
		t.endTime = time.Now().UTC()
	}
}

// DurationMS returns the trace duration in milliseconds, measured against
// the current time when the trace has not been completed yet.
func (t *Trace) DurationMS() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	end := t.endTime
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return float64(end.Sub(t.startTime)) / float64(time.Millisecond)
}

// Events returns a copy of the event list.
func (t *Trace) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := make([]Event, len(t.events))
	copy(events, t.events)
	return events
}

// Export is the persisted JSON shape of a trace.
type Export struct {
	TraceID       string  `json:"trace_id"`
	ParentTraceID string  `json:"parent_trace_id,omitempty"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time,omitempty"`
	DurationMS    float64 `json:"duration_ms"`
	UserMessage   string  `json:"user_message,omitempty"`
	BotResponse   string  `json:"bot_response,omitempty"`
	Events        []Event `json:"events"`
}

// Export snapshots the trace in its persisted shape.
func (t *Trace) Export() *Export {
	duration := t.DurationMS()

	t.mu.Lock()
	defer t.mu.Unlock()

	export := &Export{
		TraceID:       t.id,
		ParentTraceID: t.parentID,
		StartTime:     t.startTime.Format(time.RFC3339Nano),
		DurationMS:    duration,
		UserMessage:   t.userMessage,
		BotResponse:   t.botResponse,
		Events:        make([]Event, len(t.events)),
	}
	if !t.endTime.IsZero() {
		export.EndTime = t.endTime.Format(time.RFC3339Nano)
	}
	copy(export.Events, t.events)
	return export
}

// ExportJSON serializes the trace in its persisted shape.
func (t *Trace) ExportJSON() ([]byte, error) {
	return json.Marshal(t.Export())
}
