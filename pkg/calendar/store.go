// Package calendar is the scheduling capability the scheduling specialist
// reads and writes. The repo ships a local SQL-backed store; an external
// calendar service can satisfy the same contract.
package calendar

import (
	"context"
	"time"
)

// Event is one calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// Store lists and creates events.
type Store interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
	CreateEvent(ctx context.Context, event Event) (*Event, error)
	Close() error
}
