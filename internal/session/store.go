// Package session persists conversation snapshots in a local SQLite database.
// Snapshots are opaque JSON produced by the context manager.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// DBFile is the database file name inside the data directory.
const DBFile = "sessions.db"

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidState = errors.New("session state is not valid JSON")
)

// Session is one stored conversation snapshot.
type Session struct {
	ID        string          `json:"id"`
	Workspace string          `json:"workspace"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	State     json.RawMessage `json:"state,omitempty"`
}

// Summary is a session without its state.
type Summary struct {
	ID        string    `json:"id"`
	Workspace string    `json:"workspace"`
	UpdatedAt time.Time `json:"updatedAt"`
	Bytes     int       `json:"bytes"`
}

// Store reads and writes sessions.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

// Open opens (creating if needed) the session database in dataDir.
func Open(dataDir string, logger *zap.Logger) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("session: data dir is empty")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("session: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now, logger: logging.OrNop(logger)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			workspace  TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			state      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_workspace ON sessions(workspace, updated_at);
	`)
	if err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

// Save stores state under id, creating the session when id is empty or
// unknown. It returns the stored session.
func (s *Store) Save(ctx context.Context, id, workspace string, state []byte) (*Session, error) {
	if !json.Valid(state) {
		return nil, ErrInvalidState
	}
	if id == "" {
		id = uuid.New().String()
	}
	now := s.now().UTC()
	ts := now.Format(timeLayout)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, workspace, created_at, updated_at, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace = excluded.workspace,
			updated_at = excluded.updated_at,
			state = excluded.state`,
		id, workspace, ts, ts, string(state))
	if err != nil {
		return nil, fmt.Errorf("session: save %s: %w", id, err)
	}
	s.logger.Debug("session saved", zap.String("id", id), zap.Int("bytes", len(state)))
	return s.Load(ctx, id)
}

// Load returns the session with id.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace, created_at, updated_at, state FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	return sess, nil
}

// Latest returns the most recently updated session of workspace.
func (s *Store) Latest(ctx context.Context, workspace string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace, created_at, updated_at, state FROM sessions
		WHERE workspace = ? ORDER BY updated_at DESC, id LIMIT 1`, workspace)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no session for %s", ErrNotFound, workspace)
	}
	if err != nil {
		return nil, fmt.Errorf("session: latest: %w", err)
	}
	return sess, nil
}

// List returns the sessions of workspace, newest first. An empty workspace
// lists every session.
func (s *Store) List(ctx context.Context, workspace string) ([]Summary, error) {
	query := `SELECT id, workspace, updated_at, length(state) FROM sessions`
	var args []any
	if workspace != "" {
		query += ` WHERE workspace = ?`
		args = append(args, workspace)
	}
	query += ` ORDER BY updated_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var updated string
		if err := rows.Scan(&sum.ID, &sum.Workspace, &updated, &sum.Bytes); err != nil {
			return nil, fmt.Errorf("session: list: %w", err)
		}
		sum.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes the session with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanSession(row *sql.Row) (*Session, error) {
	var (
		sess             Session
		created, updated string
		state            string
	)
	if err := row.Scan(&sess.ID, &sess.Workspace, &created, &updated, &state); err != nil {
		return nil, err
	}
	sess.CreatedAt, _ = time.Parse(timeLayout, created)
	sess.UpdatedAt, _ = time.Parse(timeLayout, updated)
	sess.State = json.RawMessage(state)
	return &sess, nil
}
