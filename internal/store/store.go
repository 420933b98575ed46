// Package store implements the local persistent database: three record
// collections (cached stories, a pending-write outbox, bookmarks) plus a
// small metadata key-value table, all backed by SQLite with versioned schema
// migrations applied on open.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/storyapp/storysync/internal/common"
	"github.com/storyapp/storysync/internal/store/migrations"
)

// Store owns every persisted collection. All mutation of local data goes
// through its repositories; no other component touches the database directly.
type Store struct {
	db  *sql.DB
	now func() time.Time

	Stories   *StoryRepository
	Outbox    *OutboxRepository
	Bookmarks *BookmarkRepository
	Metadata  *MetadataRepository
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if necessary) the local database at dsn and brings the
// schema up to the current version. Migrations are idempotent: re-opening an
// already-migrated database is a no-op.
//
// An open or migration failure renders the store unusable; callers must treat
// any returned error as fatal to dependent operations.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrStorage, dsn, err)
	}
	// A single connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", common.ErrStorage, err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	s.Stories = &StoryRepository{db: db}
	s.Outbox = &OutboxRepository{db: db, now: s.now}
	s.Bookmarks = &BookmarkRepository{db: db, now: s.now}
	s.Metadata = &MetadataRepository{db: db}
	return s, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// DB exposes the underlying handle for transaction composition.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// timestamp renders t the way the remote API does.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// wrapConstraint maps SQLite constraint violations onto common.ErrConstraint
// so callers can branch with errors.Is.
func wrapConstraint(err error, msg string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "constraint") {
		return fmt.Errorf("%w: %s: %v", common.ErrConstraint, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
