package server

import (
	"container/list"
	"sync"

	"github.com/kaplanbora/sage/pkg/trace"
)

// TraceStore keeps the most recent traces in memory for the debug surface.
// Old traces are evicted once capacity is reached.
type TraceStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	byID     map[string]*trace.Trace
}

func NewTraceStore(capacity int) *TraceStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &TraceStore{
		capacity: capacity,
		order:    list.New(),
		byID:     make(map[string]*trace.Trace),
	}
}

func (s *TraceStore) Add(t *trace.Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID()]; exists {
		return
	}
	s.byID[t.ID()] = t
	s.order.PushBack(t.ID())

	for s.order.Len() > s.capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.byID, oldest.Value.(string))
	}
}

func (s *TraceStore) Get(id string) (*trace.Trace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	return t, ok
}

// RecentIDs returns stored trace ids, newest last.
func (s *TraceStore) RecentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(string))
	}
	return ids
}
