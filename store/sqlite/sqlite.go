/*
Package sqlite is the production SQLite implementation of the ledger
persistence interfaces.

PURPOSE:
  Implements ledger.TxStore over mattn/go-sqlite3, with the schema
  managed by golang-migrate from embedded migration files.

ATOMICITY:
  WithTx runs the callback against a *sql.Tx; every query method lives
  on the shared queries type, so the same code serves both the pooled
  connection and an open transaction. Balance effects are plain
  read-modify-write statements and rely on being inside WithTx.

WAL MODE:
  The database is opened with WAL and foreign keys on. Readers do not
  block the writer; a busy writer surfaces "database is locked", which
  the resilience layer classifies as transient and retries.

DATA ENCODING:
  - uuids and money as TEXT (decimal strings, parsed with shopspring)
  - timestamps as RFC3339 TEXT
  - income schedules as a JSON column
  - booleans as INTEGER 0/1

ERROR MAPPING:
  Missing rows map to ledger.NotFoundError and unique violations to
  ledger.ErrAlreadyExists. Everything else is returned raw for the
  resilience layer to classify.

SEE ALSO:
  - ledger/store.go: The interfaces implemented here
  - ledger/store/memory.go: In-memory implementation for tests
  - migrations/: Versioned schema
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// STORE
// =============================================================================

// dbtx is the subset of *sql.DB and *sql.Tx the queries need, letting
// the same methods run pooled or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// Store implements ledger.TxStore.
type Store struct {
	*queries
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies pending
// migrations. Use ":memory:" for an ephemeral database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{queries: &queries{db: db}, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// WithTx executes fn within a database transaction. Rolled back when fn
// errors, committed otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

// timeLayout keeps a fixed-width fractional second so that lexicographic
// ordering of the stored TEXT matches chronological ordering. RFC3339Nano
// trims trailing zeros, which breaks ORDER BY on same-second timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := decodeTime(s.String)
	return &t
}

func encodeUUIDPtr(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func decodeUUIDPtr(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("parse uuid %q: %w", s.String, err)
	}
	return &id, nil
}

func decodeUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse uuid %q: %w", s, err)
	}
	return id, nil
}

func encodeDecimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decodeDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

func decodeDecimalPtr(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decodeDecimal(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mapInsertErr translates driver errors on inserts into the taxonomy.
func mapInsertErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%s: %w", kind, ledger.ErrAlreadyExists)
	}
	return err
}

// requireRowAffected converts an UPDATE/DELETE that touched nothing
// into a NotFoundError.
func requireRowAffected(res sql.Result, kind string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
