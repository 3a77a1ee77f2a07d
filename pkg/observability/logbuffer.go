package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LogEntry is one captured log record.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Broadcast receives every captured entry, typically to push it to a live
// debug surface. Like trace observers it is best-effort only.
type Broadcast func(LogEntry)

// LogBuffer keeps the most recent log records in a fixed-size ring. It is an
// explicit object owned by the observability subsystem, injected where
// needed rather than installed as a process-wide handler.
type LogBuffer struct {
	mu        sync.Mutex
	entries   []LogEntry
	next      int
	full      bool
	broadcast Broadcast
}

func NewLogBuffer(size int, broadcast Broadcast) *LogBuffer {
	if size <= 0 {
		size = 256
	}
	return &LogBuffer{
		entries:   make([]LogEntry, size),
		broadcast: broadcast,
	}
}

func (b *LogBuffer) Add(entry LogEntry) {
	b.mu.Lock()
	b.entries[b.next] = entry
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
	broadcast := b.broadcast
	b.mu.Unlock()

	if broadcast != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Debug("log broadcast panicked", "panic", r)
				}
			}()
			broadcast(entry)
		}()
	}
}

// Recent returns buffered entries oldest-first.
func (b *LogBuffer) Recent() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]LogEntry, b.next)
		copy(out, b.entries[:b.next])
		return out
	}

	out := make([]LogEntry, 0, len(b.entries))
	out = append(out, b.entries[b.next:]...)
	out = append(out, b.entries[:b.next]...)
	return out
}

// Handler adapts the buffer into a slog.Handler so it can be attached as a
// secondary log sink.
func (b *LogBuffer) Handler(level slog.Level) slog.Handler {
	return &bufferHandler{buffer: b, level: level}
}

type bufferHandler struct {
	buffer *LogBuffer
	level  slog.Level
	attrs  []slog.Attr
}

func (h *bufferHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *bufferHandler) Handle(ctx context.Context, record slog.Record) error {
	h.buffer.Add(LogEntry{
		Time:    record.Time,
		Level:   record.Level.String(),
		Message: record.Message,
	})
	return nil
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &bufferHandler{buffer: h.buffer, level: h.level, attrs: append(h.attrs, attrs...)}
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	return h
}
