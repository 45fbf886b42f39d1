package resource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/db"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Repo runs the statements for one Entity against a Store. Every call runs
// exactly one data statement, plus a read-back on engines without RETURNING.
// Writes run inside a transaction that is rolled back on any failure.
type Repo[Q Request, W any] struct {
	Store  *db.Store
	Entity Entity[Q, W]
}

// NewRepo returns a Repo for e backed by store.
func NewRepo[Q Request, W any](store *db.Store, e Entity[Q, W]) Repo[Q, W] {
	return Repo[Q, W]{Store: store, Entity: e}
}

// List returns every record in primary key order. An empty table gives an
// empty, non-nil slice.
func (repo Repo[Q, W]) List(ctx context.Context) ([]W, error) {
	e := repo.Entity
	stmt := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", e.Table, e.Key)

	rows, err := repo.query(ctx, repo.Store.DB, stmt)
	if err != nil {
		return nil, err
	}

	all := make([]W, len(rows))
	for i := range rows {
		all[i] = e.ToWire(rows[i])
	}
	return all, nil
}

// Count returns the number of rows in the table as counted by the store.
func (repo Repo[Q, W]) Count(ctx context.Context) (int64, error) {
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s", repo.Entity.Table)

	var count int64
	err := repo.Store.DB.QueryRowContext(ctx, stmt).Scan(&count)
	if err != nil {
		return 0, repo.Store.WrapDBError(err)
	}
	return count, nil
}

// Get returns the record with the given key. If there is none, the returned
// error answers errors.Is for grocer.ErrNotFound.
func (repo Repo[Q, W]) Get(ctx context.Context, id int64) (W, error) {
	var w W

	row, err := repo.selectByKey(ctx, repo.Store.DB, id)
	if err != nil {
		return w, err
	}
	return repo.Entity.ToWire(row), nil
}

// Create inserts a new row from q and returns the stored record. q must
// already be validated.
func (repo Repo[Q, W]) Create(ctx context.Context, q Q) (W, error) {
	var w W
	e := repo.Entity

	tx, err := repo.Store.BeginTx(ctx)
	if err != nil {
		return w, err
	}
	defer tx.Rollback()

	marks := repo.Store.Placeholders(1, len(e.Columns))
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", e.Table, strings.Join(e.Columns, ", "), strings.Join(marks, ", "))
	args := e.Values(q)

	var row Row
	if repo.Store.Dialect.Returning() {
		row, err = repo.queryOne(ctx, tx, stmt+" RETURNING *", args...)
		if err != nil {
			return w, err
		}
	} else {
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return w, repo.Store.WrapDBError(err)
		}

		var id int64
		if e.KeyOf != nil {
			id, err = e.KeyOf(q)
		} else {
			id, err = res.LastInsertId()
		}
		if err != nil {
			return w, repo.Store.WrapDBError(err)
		}

		row, err = repo.selectByKey(ctx, tx, id)
		if err != nil {
			return w, err
		}
	}

	if err := tx.Commit(); err != nil {
		return w, repo.Store.WrapDBError(err)
	}

	return e.ToWire(row), nil
}

// Update replaces every written column of the row with key id using the values
// in q, and returns the stored record. If no row has that key, nothing is
// changed and the returned error answers errors.Is for grocer.ErrNotFound.
//
// For entities with client-supplied keys, the key is also replaced by the one
// in q.
func (repo Repo[Q, W]) Update(ctx context.Context, id int64, q Q) (W, error) {
	var w W
	e := repo.Entity

	tx, err := repo.Store.BeginTx(ctx)
	if err != nil {
		return w, err
	}
	defer tx.Rollback()

	marks := repo.Store.Placeholders(1, len(e.Columns)+1)
	sets := make([]string, len(e.Columns))
	for i := range e.Columns {
		sets[i] = e.Columns[i] + " = " + marks[i]
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s", e.Table, strings.Join(sets, ", "), e.Key, marks[len(marks)-1])
	args := append(e.Values(q), id)

	var row Row
	if repo.Store.Dialect.Returning() {
		row, err = repo.queryOne(ctx, tx, stmt+" RETURNING *", args...)
		if err != nil {
			return w, err
		}
	} else {
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return w, repo.Store.WrapDBError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return w, repo.Store.WrapDBError(err)
		}
		if affected < 1 {
			return w, grocer.ErrNotFound
		}

		newID := id
		if e.KeyOf != nil {
			newID, err = e.KeyOf(q)
			if err != nil {
				return w, err
			}
		}

		row, err = repo.selectByKey(ctx, tx, newID)
		if err != nil {
			return w, err
		}
	}

	if err := tx.Commit(); err != nil {
		return w, repo.Store.WrapDBError(err)
	}

	return e.ToWire(row), nil
}

// Delete removes the row with key id. If no row has that key, the returned
// error answers errors.Is for grocer.ErrNotFound.
func (repo Repo[Q, W]) Delete(ctx context.Context, id int64) error {
	e := repo.Entity

	tx, err := repo.Store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", e.Table, e.Key, repo.Store.Dialect.Placeholder(1))
	res, err := tx.ExecContext(ctx, stmt, id)
	if err != nil {
		return repo.Store.WrapDBError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return repo.Store.WrapDBError(err)
	}
	if affected < 1 {
		return grocer.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return repo.Store.WrapDBError(err)
	}
	return nil
}

func (repo Repo[Q, W]) selectByKey(ctx context.Context, q querier, id int64) (Row, error) {
	e := repo.Entity
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", e.Table, e.Key, repo.Store.Dialect.Placeholder(1))
	return repo.queryOne(ctx, q, stmt, id)
}

// queryOne runs stmt and returns its first row. If there are no rows, the
// error answers errors.Is for grocer.ErrNotFound. The result set is closed
// before returning.
func (repo Repo[Q, W]) queryOne(ctx context.Context, q querier, stmt string, args ...any) (Row, error) {
	rows, err := repo.query(ctx, q, stmt, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, repo.Store.WrapDBError(sql.ErrNoRows)
	}
	return rows[0], nil
}

func (repo Repo[Q, W]) query(ctx context.Context, q querier, stmt string, args ...any) ([]Row, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, repo.Store.WrapDBError(err)
	}
	defer rows.Close()

	all, err := scanRows(rows)
	if err != nil {
		return nil, repo.Store.WrapDBError(err)
	}
	return all, nil
}
