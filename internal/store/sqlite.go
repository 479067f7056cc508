package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// ErrEmptyEntry is returned when recording a blank query or result.
var ErrEmptyEntry = errors.New("store: query and result are required")

// Store is the SQLite history log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu         sync.Mutex
	maxEntries int
	entropy    io.Reader
}

// Open opens or creates the history database at path and runs migrations.
// maxEntries <= 0 uses DefaultMaxEntries.
func Open(path string, maxEntries int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default().With("component", "history")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := MigrateDB(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{
		db:      db,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	s.SetMaxEntries(maxEntries)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable and its schema is in place.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return ValidateSchema(ctx, s.db)
}

// SetMaxEntries changes the retention limit. It applies from the next Record.
func (s *Store) SetMaxEntries(n int) {
	if n <= 0 {
		n = DefaultMaxEntries
	}
	s.mu.Lock()
	s.maxEntries = n
	s.mu.Unlock()
}

// MaxEntries returns the retention limit.
func (s *Store) MaxEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxEntries
}

// Record appends an entry and trims the log to the retention limit.
func (s *Store) Record(ctx context.Context, query, result string, at time.Time) (Entry, error) {
	if strings.TrimSpace(query) == "" || strings.TrimSpace(result) == "" {
		return Entry{}, ErrEmptyEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(at), s.entropy)
	if err != nil {
		return Entry{}, fmt.Errorf("generate id: %w", err)
	}
	e := Entry{ID: id.String(), Query: query, Result: result, CreatedAt: at}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO history (id, query, result, created_ns) VALUES (?, ?, ?, ?)",
		e.ID, e.Query, e.Result, at.UnixNano(),
	); err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY created_ns DESC, id DESC LIMIT ?
		)`, s.maxEntries)
	if err != nil {
		return Entry{}, fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit history entry: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("trimmed history", "removed", n, "max_entries", s.maxEntries)
	}
	return e, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	q := "SELECT id, query, result, created_ns FROM history ORDER BY created_ns DESC, id DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ns int64
		if err := rows.Scan(&e.ID, &e.Query, &e.Result, &ns); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.CreatedAt = time.Unix(0, ns)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Clear removes every entry and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM history")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Info("cleared history", "removed", n)
	return n, nil
}
