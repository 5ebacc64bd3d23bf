// Package history keeps a sqlite log of control queries and their outcomes.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vlmd/internal/common/fsutil"
	"vlmd/pkg/types"
)

// ErrDisabled is returned by every method of a nil *Store.
var ErrDisabled = errors.New("history disabled")

// Store records queries. A nil *Store is valid and disabled.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an open database. Call Init before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open opens (creating if needed) the database at path and initializes the
// schema. An empty path returns a nil, disabled store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, nil
	}
	p, err := fsutil.PrepareFile(path)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	db, err := sql.Open("sqlite3", p+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history open: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	s := NewStore(db)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history init: %w", err)
	}
	return s, nil
}

func (s *Store) Init(ctx context.Context) error {
	if s == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(
		ctx,
		`CREATE TABLE IF NOT EXISTS queries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			prompt TEXT NOT NULL,
			status TEXT NOT NULL,
			reply TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	)
	return err
}

func (s *Store) stamp() string { return s.now().UTC().Format(time.RFC3339) }

// Record inserts a pending row for id.
func (s *Store) Record(ctx context.Context, id, prompt string) error {
	if s == nil {
		return ErrDisabled
	}
	now := s.stamp()
	_, err := s.db.ExecContext(
		ctx,
		"INSERT INTO queries (id, prompt, status, reply, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		id,
		prompt,
		types.StatusPending,
		"",
		now,
		now,
	)
	return err
}

// Complete sets the outcome of id. The first outcome wins: a timeout only
// applies to rows still pending, and a reply or error only to rows pending
// or timed out, so later calls under the same id leave the row alone.
// Unknown ids are ignored.
func (s *Store) Complete(ctx context.Context, id, status, reply string) error {
	if s == nil {
		return ErrDisabled
	}
	q := "UPDATE queries SET status = ?, reply = ?, updated_at = ? WHERE id = ?"
	args := []any{status, reply, s.stamp(), id}
	if status == types.StatusTimeout {
		q += " AND status = ?"
		args = append(args, types.StatusPending)
	} else {
		q += " AND status IN (?, ?)"
		args = append(args, types.StatusPending, types.StatusTimeout)
	}
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

// Answer records reply as the final outcome of id regardless of its current
// status. It is used once the caller has the reply in hand.
func (s *Store) Answer(ctx context.Context, id, reply string) error {
	if s == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(
		ctx,
		"UPDATE queries SET status = ?, reply = ?, updated_at = ? WHERE id = ?",
		types.StatusOK,
		reply,
		s.stamp(),
		id,
	)
	return err
}

// Get returns the row for id.
func (s *Store) Get(ctx context.Context, id string) (types.HistoryEntry, bool, error) {
	if s == nil {
		return types.HistoryEntry{}, false, ErrDisabled
	}
	row := s.db.QueryRowContext(
		ctx,
		"SELECT id, prompt, status, reply, created_at, updated_at FROM queries WHERE id = ?",
		id,
	)
	var e types.HistoryEntry
	if err := row.Scan(&e.ID, &e.Prompt, &e.Status, &e.Reply, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.HistoryEntry{}, false, nil
		}
		return types.HistoryEntry{}, false, err
	}
	return e, true, nil
}

// List returns rows newest first and the total row count.
func (s *Store) List(ctx context.Context, offset, limit int) ([]types.HistoryEntry, int, error) {
	if s == nil {
		return nil, 0, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM queries")
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT id, prompt, status, reply, created_at, updated_at FROM queries ORDER BY seq DESC LIMIT ? OFFSET ?",
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []types.HistoryEntry{}
	for rows.Next() {
		var e types.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Prompt, &e.Status, &e.Reply, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
