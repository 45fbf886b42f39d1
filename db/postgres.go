package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dekarrin/grocer"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Postgres is the Dialect for PostgreSQL.
type Postgres struct{}

func (Postgres) Name() grocer.DBType { return grocer.DatabasePostgres }
func (Postgres) Placeholder(n int) string { return dollarPlaceholder(n) }
func (Postgres) Returning() bool { return true }
func (Postgres) VersionQuery() string { return "SELECT version()" }

// ConvertError converts an error from the pgx driver. Any integrity constraint
// violation (SQLSTATE class 23) answers errors.Is for
// grocer.ErrConstraintViolation.
func (Postgres) ConvertError(err error) error {
	if err, ok := convertCommon(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return grocer.NewError("", err, grocer.ErrConstraintViolation)
	}
	return err
}

// PostgresConnString builds the URL-style connection string for cfg.
func PostgresConnString(cfg grocer.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Name,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func openPostgres(ctx context.Context, cfg grocer.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(PostgresConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := New(stdlib.OpenDBFromPool(pool), Postgres{})
	store.closers = append(store.closers, pool.Close)
	return store, nil
}
