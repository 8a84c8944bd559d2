package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Entry is one recorded event.
type Entry struct {
	ID       int64
	Event    string
	Payload  json.RawMessage
	LoggedAt time.Time
}

// Journal is a Sink that appends events to an embedded SQLite database.
//
// The journal is an audit trail of the operations a cache received. It is not
// used to rebuild the cache.
type Journal struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// OpenJournal opens or creates the journal database at path.
//
// The caller must call Close when done.
func OpenJournal(path string, logger *log.Logger) (*Journal, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[journal] ", log.LstdFlags)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	j := &Journal{conn: conn, path: path, logger: logger}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := j.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event TEXT NOT NULL,
		payload TEXT NOT NULL,
		logged_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_event ON events(event);
	`
	if _, err := j.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Log implements Sink. Write failures are logged and dropped.
func (j *Journal) Log(event string, payload any) {
	if err := j.Append(context.Background(), event, payload); err != nil {
		j.logger.Printf("Warning: %v", err)
	}
}

// Append records one event.
func (j *Journal) Append(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	_, err = j.conn.ExecContext(ctx,
		`INSERT INTO events (event, payload, logged_at) VALUES (?, ?, ?)`,
		event, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append %s event: %w", event, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.conn.QueryContext(ctx,
		`SELECT id, event, payload, logged_at FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			payload  string
			loggedAt string
		)
		if err := rows.Scan(&e.ID, &e.Event, &payload, &loggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		if e.LoggedAt, err = time.Parse(time.RFC3339Nano, loggedAt); err != nil {
			return nil, fmt.Errorf("invalid timestamp in journal row %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded events.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal events: %w", err)
	}
	return n, nil
}

// Close checkpoints the WAL and closes the database.
func (j *Journal) Close() error {
	if j.conn == nil {
		return nil
	}
	if _, err := j.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		j.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}
	if err := j.conn.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	j.conn = nil
	return nil
}
