package grocery

import (
	"strconv"

	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/resource"
)

// ErrInvalidOrderID is returned when an order detail's Order_Id is not a
// non-negative integer.
var ErrInvalidOrderID = grocer.NewError("Order_Id must be a valid integer", grocer.ErrBadArgument)

// ParseOrderID converts the string form of an order detail key. Only ASCII
// digits are accepted, and the value must fit in an int64.
func ParseOrderID(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidOrderID
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, ErrInvalidOrderID
		}
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidOrderID
	}
	return id, nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func i64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func f64(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// fk gives the value to store for an optional reference. Keys are never zero,
// so zero is stored as NULL like an absent one.
func fk(id *int64) any {
	if id == nil || *id == 0 {
		return nil
	}
	return *id
}

// idString gives a key column in the decimal string form sent to clients.
func idString(r resource.Row, col string) string {
	id := r.OptInt(col)
	if id == nil {
		return r.String(col)
	}
	return strconv.FormatInt(*id, 10)
}
