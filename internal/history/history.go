// Package history keeps a SQLite log of the chat messages the server relays.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"net/netip"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const initSQL = `CREATE TABLE IF NOT EXISTS messages (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	origin  TEXT NOT NULL,
	body    BLOB NOT NULL,
	sent_at INTEGER NOT NULL
);`

// Entry is one logged message.
type Entry struct {
	ID     int64     `json:"id"`
	Origin string    `json:"origin"`
	Body   string    `json:"body"`
	At     time.Time `json:"at"`
}

// Store is a message log backed by a SQLite database.
// It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens, creating if needed, the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	// A ":memory:" database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(initSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a message.
func (s *Store) Record(ctx context.Context, from netip.AddrPort, body []byte, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (
		origin,
		body,
		sent_at
	) VALUES (
		?,
		?,
		?
	);`, from.String(), body, at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest messages, oldest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, origin, body, sent_at FROM (
		SELECT id, origin, body, sent_at FROM messages ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC;`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			body []byte
			at   int64
		)
		if err := rows.Scan(&e.ID, &e.Origin, &body, &at); err != nil {
			return nil, fmt.Errorf("failed to read history row: %w", err)
		}
		e.Body = string(body)
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return out, nil
}
