// Package sqlcatalog is the SQLite implementation of the catalog.
package sqlcatalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/desruisseaux/Seagis-sub004/catalog"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ catalog.Catalog = (*Store)(nil)

// Store is a catalog backed by a SQLite database.
type Store struct {
	db  *sql.DB
	log logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open opens or creates the database at path and applies pending
// migrations. Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases and SQLite writes consistent
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Debug(ctx, "catalog opened", logging.String("path", path))
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: closing it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func notFound(kind, name string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %q", catalog.ErrNotFound, kind, name)
	}
	return fmt.Errorf("query %s %q: %w", kind, name, err)
}
