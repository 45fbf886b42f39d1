package resource

import (
	"strconv"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dekarrin/grocer/db"
)

type widgetRequest struct {
	Code *string `json:"code"`
	Name *string `json:"name"`
}

func (r widgetRequest) Validate() error {
	var v Validator
	v.Require("name", r.Name != nil)
	return v.Err()
}

type widget struct {
	ID   string `json:"W_id"`
	Name string `json:"name"`
}

func widgetToWire(r Row) widget {
	return widget{ID: strconv.FormatInt(r.Int("w_id"), 10), Name: r.String("name")}
}

// widgets have store-assigned keys.
var widgets = Entity[widgetRequest, widget]{
	Name:    "Widget",
	Path:    "widgets",
	Table:   "widget",
	Key:     "w_id",
	Columns: []string{"name"},
	Values: func(r widgetRequest) []any {
		return []any{*r.Name}
	},
	ToWire: widgetToWire,
}

// codedWidgets have client-supplied keys.
var codedWidgets = Entity[widgetRequest, widget]{
	Name:    "Coded widget",
	Path:    "coded-widgets",
	Table:   "widget",
	Key:     "w_id",
	Columns: []string{"w_id", "name"},
	Values: func(r widgetRequest) []any {
		id, _ := strconv.ParseInt(*r.Code, 10, 64)
		return []any{id, *r.Name}
	},
	KeyOf: func(r widgetRequest) (int64, error) {
		return strconv.ParseInt(*r.Code, 10, 64)
	},
	ToWire: widgetToWire,
}

func ptr[E any](v E) *E {
	return &v
}

func newMock(t *testing.T, d db.Dialect) (*db.Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return db.New(mockDB, d), mock
}

func widgetRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"W_ID", "name"})
}
