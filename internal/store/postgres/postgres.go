// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateOccurrence(ctx context.Context, o *model.Occurrence) error {
	return queryCreateOccurrence(ctx, s.db, o)
}

func (s *PostgresStore) GetOccurrence(ctx context.Context, id string) (*model.Occurrence, error) {
	return queryGetOccurrence(ctx, s.db, id)
}

func (s *PostgresStore) GetOccurrenceByTitle(ctx context.Context, title string) (*model.Occurrence, error) {
	return queryGetOccurrenceByTitle(ctx, s.db, title)
}

func (s *PostgresStore) LatestPerSeries(ctx context.Context) (map[string]*model.Occurrence, error) {
	return queryLatestPerSeries(ctx, s.db)
}

func (s *PostgresStore) ListOccurrences(ctx context.Context, filter model.OccurrenceFilter) ([]*model.Occurrence, error) {
	return queryListOccurrences(ctx, s.db, filter)
}

func (s *PostgresStore) CreateRegistration(ctx context.Context, r *model.Registration) error {
	return queryCreateRegistration(ctx, s.db, r)
}

func (s *PostgresStore) GetRegistration(ctx context.Context, eventID string, userID int64) (*model.Registration, error) {
	return queryGetRegistration(ctx, s.db, eventID, userID)
}

func (s *PostgresStore) DeleteRegistration(ctx context.Context, eventID string, userID int64) (bool, error) {
	return queryDeleteRegistration(ctx, s.db, eventID, userID)
}

func (s *PostgresStore) ListRegistrations(ctx context.Context, eventID string, status model.RegistrationStatus) ([]*model.Registration, error) {
	return queryListRegistrations(ctx, s.db, eventID, status)
}

func (s *PostgresStore) RecordActivity(ctx context.Context, a *model.Activity) error {
	return queryRecordActivity(ctx, s.db, a)
}

func (s *PostgresStore) ListActivity(ctx context.Context, eventID string) ([]*model.Activity, error) {
	return queryListActivity(ctx, s.db, eventID)
}

func (s *PostgresStore) LockGeneration(ctx context.Context) error {
	return queryLockGeneration(ctx, s.db)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

// savepoint runs fn under a savepoint so that a rejected statement does not
// abort the enclosing transaction.
func (s *txStore) savepoint(ctx context.Context, fn func() error) error {
	if _, err := s.tx.ExecContext(ctx, `SAVEPOINT cadence_write`); err != nil {
		return fmt.Errorf("savepoint: %w", mapError(err))
	}
	if err := fn(); err != nil {
		if _, rbErr := s.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT cadence_write`); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", mapError(rbErr)))
		}
		return err
	}
	if _, err := s.tx.ExecContext(ctx, `RELEASE SAVEPOINT cadence_write`); err != nil {
		return fmt.Errorf("release savepoint: %w", mapError(err))
	}
	return nil
}

func (s *txStore) CreateOccurrence(ctx context.Context, o *model.Occurrence) error {
	return s.savepoint(ctx, func() error {
		return queryCreateOccurrence(ctx, s.tx, o)
	})
}

func (s *txStore) GetOccurrence(ctx context.Context, id string) (*model.Occurrence, error) {
	return queryGetOccurrence(ctx, s.tx, id)
}

func (s *txStore) GetOccurrenceByTitle(ctx context.Context, title string) (*model.Occurrence, error) {
	return queryGetOccurrenceByTitle(ctx, s.tx, title)
}

func (s *txStore) LatestPerSeries(ctx context.Context) (map[string]*model.Occurrence, error) {
	return queryLatestPerSeries(ctx, s.tx)
}

func (s *txStore) ListOccurrences(ctx context.Context, filter model.OccurrenceFilter) ([]*model.Occurrence, error) {
	return queryListOccurrences(ctx, s.tx, filter)
}

func (s *txStore) CreateRegistration(ctx context.Context, r *model.Registration) error {
	return s.savepoint(ctx, func() error {
		return queryCreateRegistration(ctx, s.tx, r)
	})
}

func (s *txStore) GetRegistration(ctx context.Context, eventID string, userID int64) (*model.Registration, error) {
	return queryGetRegistration(ctx, s.tx, eventID, userID)
}

func (s *txStore) DeleteRegistration(ctx context.Context, eventID string, userID int64) (bool, error) {
	return queryDeleteRegistration(ctx, s.tx, eventID, userID)
}

func (s *txStore) ListRegistrations(ctx context.Context, eventID string, status model.RegistrationStatus) ([]*model.Registration, error) {
	return queryListRegistrations(ctx, s.tx, eventID, status)
}

func (s *txStore) RecordActivity(ctx context.Context, a *model.Activity) error {
	return queryRecordActivity(ctx, s.tx, a)
}

func (s *txStore) ListActivity(ctx context.Context, eventID string) ([]*model.Activity, error) {
	return queryListActivity(ctx, s.tx, eventID)
}

func (s *txStore) LockGeneration(ctx context.Context) error {
	return queryLockGeneration(ctx, s.tx)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Ping is a no-op inside a transaction.
func (s *txStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
