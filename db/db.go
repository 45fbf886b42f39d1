// Package db opens pooled connections to the SQL engines grocer supports and
// translates their errors into grocer errors.
//
// Each engine is described by a Dialect, which knows how to write placeholders,
// whether the engine can return rows from a write, how to ask for the engine's
// version, and how to classify the engine's error values.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dekarrin/grocer"
)

// Dialect is the engine-specific part of talking to a SQL database.
type Dialect interface {
	// Name returns the DBType the dialect is for.
	Name() grocer.DBType

	// Placeholder returns the bind parameter marker for the n-th (1-based)
	// argument of a statement.
	Placeholder(n int) string

	// Returning is whether INSERT, UPDATE, and DELETE support a RETURNING
	// clause.
	Returning() bool

	// VersionQuery is a single-row, single-column query giving the engine's
	// version string.
	VersionQuery() string

	// ConvertError converts an error returned by the engine's driver into one
	// that answers errors.Is for the grocer error sentinels. The driver's
	// message is preserved as the error text. Errors it does not recognize are
	// returned unchanged.
	ConvertError(err error) error
}

// Store is a pooled connection to a SQL database. It implements grocer.Store.
//
// The zero value should not be used; call Open or New to get one.
type Store struct {
	DB      *sql.DB
	Dialect Dialect

	// closers are run after DB is closed, in order.
	closers []func()
}

// New wraps an already-open *sql.DB. It is mainly for use with test doubles;
// Open should be used for real connections.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{DB: db, Dialect: dialect}
}

// Open connects to the database described by cfg and returns a Store ready
// for use. cfg is expected to have had defaults filled and been validated.
func Open(ctx context.Context, cfg grocer.DatabaseConfig) (*Store, error) {
	switch cfg.Type {
	case grocer.DatabaseSQLite:
		return openSQLite(ctx, cfg)
	case grocer.DatabasePostgres:
		return openPostgres(ctx, cfg)
	case grocer.DatabaseMySQL:
		return openMySQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database type: %q", cfg.Type.String())
	}
}

// Ping checks that a connection can be acquired from the pool.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return grocer.NewError("", s.Dialect.ConvertError(err), grocer.ErrUnavailable)
	}
	return nil
}

// Version returns the version string the engine reports.
func (s *Store) Version(ctx context.Context) (string, error) {
	var version string
	err := s.DB.QueryRowContext(ctx, s.Dialect.VersionQuery()).Scan(&version)
	if err != nil {
		return "", s.WrapDBError(err)
	}
	return version, nil
}

// BeginTx starts a transaction. A failure here means no connection could be
// had, so the returned error always answers errors.Is for
// grocer.ErrUnavailable.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, grocer.NewError("", s.Dialect.ConvertError(err), grocer.ErrUnavailable, grocer.ErrDB)
	}
	return tx, nil
}

// Placeholders returns the bind markers for arguments from through
// from+count-1.
func (s *Store) Placeholders(from, count int) []string {
	marks := make([]string, count)
	for i := range marks {
		marks[i] = s.Dialect.Placeholder(from + i)
	}
	return marks
}

// Close closes the connection pool.
func (s *Store) Close() error {
	err := s.DB.Close()
	for _, c := range s.closers {
		c()
	}
	return err
}

// WrapDBError creates a new grocer.Error that wraps the given error as a cause
// and automatically adds grocer.ErrDB as another cause. A message may be
// provided with msg; if none is given, the driver's message is the error's
// whole text.
//
// The provided error is first converted by the Store's Dialect, so e.g. a
// constraint violation reported by the engine will answer true for
// errors.Is(err, grocer.ErrConstraintViolation).
func (s *Store) WrapDBError(err error, msg ...any) error {
	if err == nil {
		return nil
	}

	err = s.Dialect.ConvertError(err)

	var errMsg string
	if len(msg) > 0 {
		errMsg = fmt.Sprint(msg...)
	}

	return grocer.NewError(errMsg, err, grocer.ErrDB)
}

// convertCommon handles the conversions shared by all dialects.
func convertCommon(err error) (error, bool) {
	if errors.Is(err, sql.ErrNoRows) {
		return grocer.NewError("", err, grocer.ErrNotFound), true
	}
	return err, false
}

func dollarPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}
