// Package resource implements the list, count, get, create, update, and delete
// operations shared by every table-backed entity, and the HTTP endpoints that
// expose them.
//
// An entity is described once by an Entity value; Repo runs its statements
// and Endpoints serves them.
package resource

import (
	"strings"

	"github.com/dekarrin/grocer"
)

// Request is a decoded create or update body.
type Request interface {
	// Validate checks that all required fields are present and usable. Its
	// error is shown to the client as-is.
	Validate() error
}

// Entity describes how one kind of record maps onto one table. Q is the
// request type it accepts and W is the record it sends back.
type Entity[Q Request, W any] struct {
	// Name is the human-readable singular name used in messages, such as
	// "Purchase order".
	Name string

	// Path is the URI path segment the entity is served under, such as
	// "purchase-orders".
	Path string

	// Table is the name of the table.
	Table string

	// Key is the primary key column.
	Key string

	// Columns are the columns written by create and update, in the same order
	// as Values returns them.
	Columns []string

	// Values gives the column values for a validated request.
	Values func(q Q) []any

	// KeyOf is set for entities whose key is supplied by the client. It gives
	// the key a request will be stored under. The key column must then also be
	// in Columns. When nil, the store assigns keys.
	KeyOf func(q Q) (int64, error)

	// ToWire converts a row of the table to the record sent to clients.
	ToWire func(r Row) W
}

// Validator collects missing required fields for a Request.
type Validator struct {
	missing []string
}

// Require notes field as missing if present is false.
func (v *Validator) Require(field string, present bool) {
	if !present {
		v.missing = append(v.missing, field)
	}
}

// Err returns an error naming every missing field, or nil if there were none.
// The error answers errors.Is for grocer.ErrBadArgument.
func (v *Validator) Err() error {
	if len(v.missing) == 0 {
		return nil
	}

	word := "field"
	if len(v.missing) > 1 {
		word = "fields"
	}
	return grocer.NewError("missing required "+word+": "+strings.Join(v.missing, ", "), grocer.ErrBadArgument)
}
