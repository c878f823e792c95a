package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the sqlite driver
)

// CursorStore persists monitor cursors in a local SQLite file so a restarted
// monitor resumes where it left off instead of replaying the whole log.
// Cursors are keyed by monitor name; one store can serve several monitors.
type CursorStore struct {
	db *sql.DB
}

// OpenCursorStore opens the cursor database at path, creating it and its
// schema as needed.
func OpenCursorStore(path string) (*CursorStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cursor store: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cursors (
		name     TEXT PRIMARY KEY,
		position INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cursors table: %w", err)
	}
	return &CursorStore{db: db}, nil
}

// Load returns the saved position for name. ok is false when nothing has
// been saved under that name yet.
func (s *CursorStore) Load(ctx context.Context, name string) (pos uint64, ok bool, err error) {
	var v int64
	err = s.db.QueryRowContext(ctx, `SELECT position FROM cursors WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load cursor %q: %w", name, err)
	}
	return uint64(v), true, nil
}

// Save upserts the position for name.
func (s *CursorStore) Save(ctx context.Context, name string, pos uint64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO cursors (name, position) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET position = excluded.position`, name, int64(pos))
	if err != nil {
		return fmt.Errorf("save cursor %q: %w", name, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *CursorStore) Close() error {
	return s.db.Close()
}
