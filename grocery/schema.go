package grocery

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/db"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// EnsureSchema creates the grocery tables if they do not yet exist. It only
// does so for SQLite stores, which are used for local development and tests;
// for any other engine the schema is managed outside of grocer and this is a
// no-op.
func EnsureSchema(ctx context.Context, store *db.Store) error {
	if store.Dialect.Name() != grocer.DatabaseSQLite {
		return nil
	}

	for _, stmt := range strings.Split(sqliteSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := store.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", store.WrapDBError(err))
		}
	}
	return nil
}
