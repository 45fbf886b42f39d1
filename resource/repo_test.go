package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/db"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func Test_Repo_List(t *testing.T) {
	t.Run("in key order", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.Postgres{})
		mock.ExpectQuery("SELECT * FROM widget ORDER BY w_id").
			WillReturnRows(widgetRows().AddRow(int64(1), "bolt").AddRow(int64(2), "nut"))

		actual, err := NewRepo(store, widgets).List(context.Background())
		if !assert.NoError(err) {
			return
		}

		assert.Equal([]widget{{ID: "1", Name: "bolt"}, {ID: "2", Name: "nut"}}, actual)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("empty table is empty, not nil", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.Postgres{})
		mock.ExpectQuery("SELECT * FROM widget ORDER BY w_id").WillReturnRows(widgetRows())

		actual, err := NewRepo(store, widgets).List(context.Background())
		if !assert.NoError(err) {
			return
		}

		assert.NotNil(actual)
		assert.Empty(actual)
	})

	t.Run("store failure", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.Postgres{})
		mock.ExpectQuery("SELECT * FROM widget ORDER BY w_id").WillReturnError(errors.New(`relation "widget" does not exist`))

		_, err := NewRepo(store, widgets).List(context.Background())

		assert.ErrorIs(err, grocer.ErrDB)
		assert.EqualError(err, `relation "widget" does not exist`)
	})
}

func Test_Repo_Count(t *testing.T) {
	assert := assert.New(t)

	store, mock := newMock(t, db.MySQL{})
	mock.ExpectQuery("SELECT COUNT(*) FROM widget").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(17)))

	actual, err := NewRepo(store, widgets).Count(context.Background())
	if !assert.NoError(err) {
		return
	}

	assert.Equal(int64(17), actual)
	assert.NoError(mock.ExpectationsWereMet())
}

func Test_Repo_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.Postgres{})
		mock.ExpectQuery("SELECT * FROM widget WHERE w_id = $1").WithArgs(int64(4)).
			WillReturnRows(widgetRows().AddRow(int64(4), "gear"))

		actual, err := NewRepo(store, widgets).Get(context.Background(), 4)
		if !assert.NoError(err) {
			return
		}

		assert.Equal(widget{ID: "4", Name: "gear"}, actual)
	})

	t.Run("not found", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.MySQL{})
		mock.ExpectQuery("SELECT * FROM widget WHERE w_id = ?").WithArgs(int64(4)).WillReturnRows(widgetRows())

		_, err := NewRepo(store, widgets).Get(context.Background(), 4)

		assert.ErrorIs(err, grocer.ErrNotFound)
	})
}

func Test_Repo_Create(t *testing.T) {
	t.Run("returning", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.Postgres{})
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO widget (name) VALUES ($1) RETURNING *").WithArgs("sprocket").
			WillReturnRows(widgetRows().AddRow(int64(9), "sprocket"))
		mock.ExpectCommit()

		actual, err := NewRepo(store, widgets).Create(context.Background(), widgetRequest{Name: ptr("sprocket")})
		if !assert.NoError(err) {
			return
		}

		assert.Equal(widget{ID: "9", Name: "sprocket"}, actual)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("no returning uses last insert id", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.MySQL{})
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO widget (name) VALUES (?)").WithArgs("sprocket").
			WillReturnResult(sqlmock.NewResult(9, 1))
		mock.ExpectQuery("SELECT * FROM widget WHERE w_id = ?").WithArgs(int64(9)).
			WillReturnRows(widgetRows().AddRow(int64(9), "sprocket"))
		mock.ExpectCommit()

		actual, err := NewRepo(store, widgets).Create(context.Background(), widgetRequest{Name: ptr("sprocket")})
		if !assert.NoError(err) {
			return
		}

		assert.Equal(widget{ID: "9", Name: "sprocket"}, actual)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("no returning with client key", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.MySQL{})
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO widget (w_id, name) VALUES (?, ?)").WithArgs(int64(12), "cog").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT * FROM widget WHERE w_id = ?").WithArgs(int64(12)).
			WillReturnRows(widgetRows().AddRow(int64(12), "cog"))
		mock.ExpectCommit()

		actual, err := NewRepo(store, codedWidgets).Create(context.Background(), widgetRequest{Code: ptr("12"), Name: ptr("cog")})
		if !assert.NoError(err) {
			return
		}

		assert.Equal(widget{ID: "12", Name: "cog"}, actual)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("constraint violation is rolled back", func(t *testing.T) {
		assert := assert.New(t)

		pgErr := &pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "widget_pkey"`}

		store, mock := newMock(t, db.Postgres{})
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO widget (w_id, name) VALUES ($1, $2) RETURNING *").WithArgs(int64(12), "cog").
			WillReturnError(pgErr)
		mock.ExpectRollback()

		_, err := NewRepo(store, codedWidgets).Create(context.Background(), widgetRequest{Code: ptr("12"), Name: ptr("cog")})

		assert.ErrorIs(err, grocer.ErrConstraintViolation)
		assert.ErrorIs(err, grocer.ErrDB)
		assert.EqualError(err, pgErr.Error())
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("store unreachable", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.Postgres{})
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		_, err := NewRepo(store, widgets).Create(context.Background(), widgetRequest{Name: ptr("sprocket")})

		assert.ErrorIs(err, grocer.ErrUnavailable)
	})
}

func Test_Repo_Update(t *testing.T) {
	t.Run("returning", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.Postgres{})
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE widget SET name = $1 WHERE w_id = $2 RETURNING *").WithArgs("flange", int64(3)).
			WillReturnRows(widgetRows().AddRow(int64(3), "flange"))
		mock.ExpectCommit()

		actual, err := NewRepo(store, widgets).Update(context.Background(), 3, widgetRequest{Name: ptr("flange")})
		if !assert.NoError(err) {
			return
		}

		assert.Equal(widget{ID: "3", Name: "flange"}, actual)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("returning, no such row, rolled back", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.Postgres{})
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE widget SET name = $1 WHERE w_id = $2 RETURNING *").WithArgs("flange", int64(3)).
			WillReturnRows(widgetRows())
		mock.ExpectRollback()

		_, err := NewRepo(store, widgets).Update(context.Background(), 3, widgetRequest{Name: ptr("flange")})

		assert.ErrorIs(err, grocer.ErrNotFound)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("client key is replaced", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.MySQL{})
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE widget SET w_id = ?, name = ? WHERE w_id = ?").WithArgs(int64(20), "cog", int64(12)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT * FROM widget WHERE w_id = ?").WithArgs(int64(20)).
			WillReturnRows(widgetRows().AddRow(int64(20), "cog"))
		mock.ExpectCommit()

		actual, err := NewRepo(store, codedWidgets).Update(context.Background(), 12, widgetRequest{Code: ptr("20"), Name: ptr("cog")})
		if !assert.NoError(err) {
			return
		}

		assert.Equal(widget{ID: "20", Name: "cog"}, actual)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("no returning, no such row, rolled back", func(t *testing.T) {
		assert := assert.New(t)

		store, mock := newMock(t, db.MySQL{})
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE widget SET name = ? WHERE w_id = ?").WithArgs("flange", int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := NewRepo(store, widgets).Update(context.Background(), 3, widgetRequest{Name: ptr("flange")})

		assert.ErrorIs(err, grocer.ErrNotFound)
		assert.NoError(mock.ExpectationsWereMet())
	})
}

func Test_Repo_Delete(t *testing.T) {
	testCases := []struct {
		name      string
		dialect   db.Dialect
		stmt      string
		affected  int64
		execErr   error
		expectErr []error
	}{
		{
			name:     "postgres deleted",
			dialect:  db.Postgres{},
			stmt:     "DELETE FROM widget WHERE w_id = $1",
			affected: 1,
		},
		{
			name:     "mysql deleted",
			dialect:  db.MySQL{},
			stmt:     "DELETE FROM widget WHERE w_id = ?",
			affected: 1,
		},
		{
			name:      "no such row",
			dialect:   db.Postgres{},
			stmt:      "DELETE FROM widget WHERE w_id = $1",
			affected:  0,
			expectErr: []error{grocer.ErrNotFound},
		},
		{
			name:      "still referenced",
			dialect:   db.MySQL{},
			stmt:      "DELETE FROM widget WHERE w_id = ?",
			execErr:   &mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row: a foreign key constraint fails"},
			expectErr: []error{grocer.ErrConstraintViolation, grocer.ErrDB},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			store, mock := newMock(t, tc.dialect)
			mock.ExpectBegin()
			exp := mock.ExpectExec(tc.stmt).WithArgs(int64(5))
			if tc.execErr != nil {
				exp.WillReturnError(tc.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tc.affected))
			}
			if tc.expectErr != nil {
				mock.ExpectRollback()
			} else {
				mock.ExpectCommit()
			}

			err := NewRepo(store, widgets).Delete(context.Background(), 5)

			if tc.expectErr != nil {
				for _, e := range tc.expectErr {
					assert.ErrorIs(err, e)
				}
			} else {
				assert.NoError(err)
			}
			assert.NoError(mock.ExpectationsWereMet())
		})
	}
}
