package session

import (
	"context"
	"sync"
)

// MemoryStore keeps history in-process, trimming each session to maxHistory
// messages.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string][]Message
	maxHistory int
}

func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = 200
	}
	return &MemoryStore{
		sessions:   make(map[string][]Message),
		maxHistory: maxHistory,
	}
}

func (s *MemoryStore) AppendMessage(ctx context.Context, sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID], msg)
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}
	s.sessions[sessionID] = history
	return nil
}

func (s *MemoryStore) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[sessionID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
