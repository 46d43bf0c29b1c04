// Package journal persists a local history of processed events backed by
// SQLite. The journal is observational: recording failures never affect
// message acknowledgment.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one processed event.
type Entry struct {
	ID            int64
	WebhookID     string
	Queue         string
	CorrelationID string
	ItemID        string
	ItemName      string
	Completed     bool
	Duration      time.Duration
	ReceivedAt    time.Time
}

// Journal records processed events in a SQLite database.
type Journal struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	webhook_id TEXT NOT NULL,
	queue TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	item_id TEXT NOT NULL DEFAULT '',
	item_name TEXT NOT NULL DEFAULT '',
	completed INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	received_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_received_at ON events(received_at);
`

// Open initializes or connects to the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}

	return &Journal{db: db, path: path}, nil
}

// Record appends one processed event.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	received := entry.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events (webhook_id, queue, correlation_id, item_id, item_name, completed, duration_ms, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.WebhookID,
		entry.Queue,
		entry.CorrelationID,
		entry.ItemID,
		entry.ItemName,
		boolToInt(entry.Completed),
		entry.Duration.Milliseconds(),
		received.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, webhook_id, queue, correlation_id, item_id, item_name, completed, duration_ms, received_at
		FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			completed  int
			durationMS int64
			receivedAt string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.WebhookID,
			&entry.Queue,
			&entry.CorrelationID,
			&entry.ItemID,
			&entry.ItemName,
			&completed,
			&durationMS,
			&receivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entry.Completed = completed != 0
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		if parsed, parseErr := time.Parse(time.RFC3339Nano, receivedAt); parseErr == nil {
			entry.ReceivedAt = parsed
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
