// Package journal keeps a local audit log of inbound and outbound turns.
// Writes are best-effort: callers log journal failures and continue.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry directions.
const (
	DirectionInbound  = "in"
	DirectionOutbound = "out"
)

// Entry is one journaled message turn.
type Entry struct {
	ID        int64
	Direction string // "in" | "out"
	Sender    string
	Recipient string
	ChannelID string
	Type      string
	Content   string // text body or media URL
	Filename  string // generated audio filename, outbound audio only
	CreatedAt time.Time
}

// Store persists entries in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		direction   TEXT NOT NULL,
		sender      TEXT,
		recipient   TEXT,
		channel_id  TEXT,
		type        TEXT,
		content     TEXT,
		filename    TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_time ON messages(created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (direction, sender, recipient, channel_id, type, content, filename, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Direction, e.Sender, e.Recipient, e.ChannelID, e.Type, e.Content, e.Filename, e.CreatedAt,
	)
	return err
}

// Recent returns the newest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, direction, sender, recipient, channel_id, type, content, filename, created_at
		 FROM messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Direction, &e.Sender, &e.Recipient, &e.ChannelID, &e.Type, &e.Content, &e.Filename, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the retention window and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}
