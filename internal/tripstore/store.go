package tripstore

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

	"github.com/dashcamv2/control-go/internal/dashcamerrors"
	"github.com/dashcamv2/control-go/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the Trip Store: a *sql.DB wrapper whose schema is owned by the
// embedded golang-migrate migrations and whose writes go through
// retryOnBusy, following the banshee-data-velocity.report lidardb /
// migrate.go pattern this package is grounded on.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
	gps    *gpsBatcher
}

// Open opens (creating if absent) the SQLite database at path and migrates
// it forward to the latest schema version. Missing columns added by a
// later release (planned_trip_id, clip location, external-video tags) are
// applied as forward-only ALTER migrations, per spec.md §4.B.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tripstore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite: a single writer; readers share the same handle safely.

	if _, err := db.Exec("PRAGMA busy_timeout = 10000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("tripstore: set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("tripstore: enable foreign_keys: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{db: db, logger: logging.GetLogger("tripstore")}
	store.gps = newGPSBatcher(store)
	return store, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("tripstore: migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("tripstore: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("tripstore: migration setup: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("tripstore: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database handle. It has the signature of
// shutdown.Stoppable's Stop, so cmd/dashcamd registers it through a
// stopperFunc adapter as the last entry of the process shutdown controller,
// closed only after every writer has stopped.
func (s *Store) Close(ctx context.Context) error {
	s.gps.mu.Lock()
	tripIDs := make([]int64, 0, len(s.gps.pending))
	for id := range s.gps.pending {
		tripIDs = append(tripIDs, id)
	}
	s.gps.mu.Unlock()
	for _, id := range tripIDs {
		if err := s.gps.flushTrip(ctx, id); err != nil {
			s.logger.WithError(err).WithField("trip_id", fmt.Sprintf("%d", id)).Error("flush on shutdown failed")
		}
	}
	return s.db.Close()
}

// Scope is the transactional-scope primitive spec.md §4.B requires: every
// store operation runs within one, and any fault rolls it back.
type Scope struct {
	tx *sql.Tx
}

// withinScope begins a transaction, invokes fn, commits on success and
// rolls back on any error including a panic recovered and re-raised. The
// whole begin-fn-commit sequence is itself retried on SQLITE_BUSY.
func (s *Store) withinScope(ctx context.Context, op string, fn func(*Scope) error) error {
	return retryOnBusy(op, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		scope := &Scope{tx: tx}

		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(scope); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// fatal wraps a non-busy write failure as dashcamerrors.StorageFatal,
// spec.md §7's "corruption is fatal; the process must abort".
func fatal(op string, err error) error {
	return &dashcamerrors.StorageFatal{Op: op, Err: err}
}
