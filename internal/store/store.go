// Package store is the persistence layer: gorm over a pure-Go SQLite
// driver, fronting the internal/model entities and the
// internal/keyenvelope private-key-at-rest scheme. Not-found, conflict,
// network-full and validation failures are reported as this package's
// sentinel errors so callers (internal/httpapi) can translate them
// without depending on gorm or the driver directly; other database
// errors are returned wrapped with a "store:" prefix.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wirewarden/wirewarden/internal/keyenvelope"
	"github.com/wirewarden/wirewarden/internal/model"
)

// Store is the control plane's single persistence handle. It is safe for
// concurrent use — gorm pools connections internally and every method
// here runs its own transaction.
type Store struct {
	db       *gorm.DB
	envelope *keyenvelope.Envelope
}

// Open connects to dsn (a glebarez/sqlite data source, e.g. a file path
// or "file::memory:?cache=shared" for tests) and migrates the schema.
func Open(dsn string, envelope *keyenvelope.Envelope) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	s := New(db, envelope)
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an already-open gorm.DB. Exposed for tests that want to
// share one in-memory database across setup and assertions.
func New(db *gorm.DB, envelope *keyenvelope.Envelope) *Store {
	return &Store{db: db, envelope: envelope}
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&model.Network{},
		&model.WgKey{},
		&model.Server{},
		&model.Client{},
		&model.ServerRoute{},
		&model.PreSharedKey{},
	)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// wrapWriteErr maps a gorm write error onto our sentinels. SQLite's
// driver reports uniqueness violations as a plain error string rather
// than a typed error, so — matching the teacher's fallback
// string-matching dispatch in its gRPC error translator — conflict
// detection here also falls back to substring matching once the typed
// check misses.
func wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}
	return fmt.Errorf("store: %w", err)
}
