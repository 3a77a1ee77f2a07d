package pages

import (
	"context"
	"database/sql"
	"fmt"

	// Database drivers registered for the configured dialect.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kaplanbora/sage/pkg/config"
)

const createPagesTableSQL = `
CREATE TABLE IF NOT EXISTS pages (
	page_id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	path TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT ''
)`

// SQLContentSource serves page bodies from a SQL database.
type SQLContentSource struct {
	db *sql.DB
}

func NewSQLContentSource(cfg config.DatabaseConfig) (*SQLContentSource, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open pages database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to pages database: %w", err)
	}
	if _, err := db.Exec(createPagesTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create pages table: %w", err)
	}
	return &SQLContentSource{db: db}, nil
}

func (s *SQLContentSource) GetPage(ctx context.Context, pageID string) (*Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT page_id, title, path, summary, content FROM pages WHERE page_id = ?`, pageID)

	var page Page
	err := row.Scan(&page.PageID, &page.Title, &page.Path, &page.Summary, &page.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page %s: %w", pageID, err)
	}
	return &page, nil
}

func (s *SQLContentSource) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_id, title, path, summary, content FROM pages ORDER BY page_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var out []Page
	for rows.Next() {
		var page Page
		if err := rows.Scan(&page.PageID, &page.Title, &page.Path, &page.Summary, &page.Content); err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		out = append(out, page)
	}
	return out, rows.Err()
}

// SavePage inserts or replaces a page. Uses ON CONFLICT, so sqlite3 or
// postgres; mysql callers should load pages out of band.
func (s *SQLContentSource) SavePage(ctx context.Context, page Page) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (page_id, title, path, summary, content) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(page_id) DO UPDATE SET title = excluded.title, path = excluded.path,
		 summary = excluded.summary, content = excluded.content`,
		page.PageID, page.Title, page.Path, page.Summary, page.Content)
	if err != nil {
		return fmt.Errorf("failed to save page %s: %w", page.PageID, err)
	}
	return nil
}

func (s *SQLContentSource) Close() error {
	return s.db.Close()
}
