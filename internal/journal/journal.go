// Package journal keeps an append-only record of build activity in SQLite.
// Each build pass writes a started entry, per-item failure entries, and a
// settled entry, keyed by the build's UUID.
package journal

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	builderrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// Entry kinds.
const (
	KindBuildStarted = "build_started"
	KindBuildSettled = "build_settled"
	KindItemFailed   = "item_failed"
)

// Entry is one journal record.
type Entry struct {
	ID      int64
	BuildID string
	Kind    string
	// Key is the item key for item-scoped entries, empty otherwise.
	Key string
	// Detail is free-form context: outcome, error text, page counts.
	Detail string
	At     time.Time
}

// Journal is an append-only build event log backed by SQLite. Use ":memory:"
// as the path for an ephemeral journal.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and if needed initializes) a journal at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, builderrors.StoreFailed(path, err)
	}
	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, builderrors.StoreFailed(path, err)
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		key TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_build_id ON entries(build_id);
	CREATE INDEX IF NOT EXISTS idx_entries_at ON entries(at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends one entry. The timestamp is assigned here.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO entries (build_id, kind, key, detail, at) VALUES (?, ?, ?, ?, ?)",
		e.BuildID, e.Kind, e.Key, e.Detail, time.Now().UnixMilli(),
	)
	if err != nil {
		return builderrors.StoreFailed("journal", err)
	}
	return nil
}

// ForBuild returns all entries of one build in append order.
func (j *Journal) ForBuild(ctx context.Context, buildID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, build_id, kind, key, detail, at FROM entries WHERE build_id = ? ORDER BY id",
		buildID,
	)
	if err != nil {
		return nil, builderrors.StoreFailed("journal", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Recent returns the newest entries, most recent first, capped at limit.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, build_id, kind, key, detail, at FROM entries ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, builderrors.StoreFailed("journal", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var atMilli int64
		if err := rows.Scan(&e.ID, &e.BuildID, &e.Kind, &e.Key, &e.Detail, &atMilli); err != nil {
			return nil, builderrors.StoreFailed("journal", err)
		}
		e.At = time.UnixMilli(atMilli)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, builderrors.StoreFailed("journal", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
