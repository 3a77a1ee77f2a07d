package calendar

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Database drivers registered for the configured dialect.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"

	"github.com/kaplanbora/sage/pkg/config"
)

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS calendar_events (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	start_time TIMESTAMP NOT NULL,
	end_time TIMESTAMP NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT ''
)`

// SQLStore persists calendar events in a SQL database.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(cfg config.DatabaseConfig) (*SQLStore, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open calendar database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to calendar database: %w", err)
	}
	if _, err := db.Exec(createEventsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create events table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_time, end_time, description, location FROM calendar_events
		 WHERE start_time >= ? AND start_time < ? ORDER BY start_time`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.Title, &event.StartTime, &event.EndTime,
			&event.Description, &event.Location); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateEvent(ctx context.Context, event Event) (*Event, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EndTime.IsZero() {
		event.EndTime = event.StartTime.Add(time.Hour)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_events (id, title, start_time, end_time, description, location)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.Title, event.StartTime, event.EndTime, event.Description, event.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &event, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
