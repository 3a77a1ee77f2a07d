// Package session stores conversation history per chat session.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/kaplanbora/sage/pkg/config"
)

// Message is one conversational turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists and retrieves session history.
type Store interface {
	AppendMessage(ctx context.Context, sessionID string, msg Message) error

	// History returns the most recent messages oldest-first, capped at
	// limit (0 means no cap).
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)

	Close() error
}

// NewStore builds a session store from config.
func NewStore(cfg *config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case "memory":
		return NewMemoryStore(cfg.MaxHistory), nil
	case "sql":
		return NewSQLStore(cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
	}
}
