package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dekarrin/grocer"
	"modernc.org/sqlite"
)

// SQLiteFile is the name of the database file created in the data directory.
const SQLiteFile = "grocer.db"

// SQLite is the Dialect for SQLite 3.35 and later.
type SQLite struct{}

func (SQLite) Name() grocer.DBType { return grocer.DatabaseSQLite }
func (SQLite) Placeholder(n int) string { return "?" }
func (SQLite) Returning() bool { return true }
func (SQLite) VersionQuery() string { return "SELECT sqlite_version()" }

// ConvertError converts an error from the SQLite engine. Constraint failures
// answer errors.Is for grocer.ErrConstraintViolation and sql.ErrNoRows answers
// it for grocer.ErrNotFound.
func (SQLite) ConvertError(err error) error {
	if err, ok := convertCommon(err); ok {
		return err
	}

	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		primaryCode := sqliteErr.Code() & 0xff
		if primaryCode == 19 {
			return grocer.NewError("", err, grocer.ErrConstraintViolation)
		}
		if primaryCode == 1 {
			// this is a generic error and thus the code string is not
			// descriptive, so preserve the original error instead
			return err
		}
		return grocer.NewError(sqlite.ErrorCodeString[sqliteErr.Code()], err)
	}
	return err
}

// SQLiteDSN returns the URI filename of the database file in cfg.DataDir, with
// the busy timeout and foreign key enforcement set. The path is
// percent-escaped so characters such as '?', '#', and '%' in the directory
// name reach the filesystem unchanged.
func SQLiteDSN(cfg grocer.DatabaseConfig) string {
	file := filepath.ToSlash(filepath.Join(cfg.DataDir, SQLiteFile))

	u := url.URL{
		Scheme:   "file",
		Opaque:   (&url.URL{Path: file}).EscapedPath(),
		RawQuery: "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
	}
	return u.String()
}

func openSQLite(ctx context.Context, cfg grocer.DatabaseConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0770); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	file := filepath.Join(cfg.DataDir, SQLiteFile)

	db, err := sql.Open("sqlite", SQLiteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// between pooled connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := New(db, SQLite{})
	if err := store.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", file, err)
	}

	return store, nil
}
