package resource

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is a single result row keyed by lower-cased column name. Values are
// whatever the driver produced; the accessors coerce them.
//
// All accessors take one or more column names and use the first one that is
// present with a non-NULL value. They never fail; a missing or NULL column
// gives the zero value.
type Row map[string]any

func (r Row) lookup(names ...string) (any, bool) {
	for _, n := range names {
		v, ok := r[strings.ToLower(n)]
		if ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String returns the first of the named columns that has a non-empty text
// value. Times are rendered as RFC 3339.
func (r Row) String(names ...string) string {
	for _, n := range names {
		v, ok := r.lookup(n)
		if !ok {
			continue
		}
		s := toString(v, time.RFC3339)
		if s != "" {
			return s
		}
	}
	return ""
}

// Date is String, except that a time value with no clock component is
// rendered as "2006-01-02".
func (r Row) Date(names ...string) string {
	v, ok := r.lookup(names...)
	if !ok {
		return ""
	}
	if t, ok := v.(time.Time); ok {
		h, m, s := t.Clock()
		if h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	}
	return toString(v, time.RFC3339)
}

// Int returns the named column as an integer. Floating point values are
// truncated.
func (r Row) Int(names ...string) int64 {
	v, ok := r.lookup(names...)
	if !ok {
		return 0
	}
	n, _ := toInt(v)
	return n
}

// Float returns the named column as a float64.
func (r Row) Float(names ...string) float64 {
	v, ok := r.lookup(names...)
	if !ok {
		return 0
	}
	f, _ := toFloat(v)
	return f
}

// OptInt returns the named column as an integer, or nil if it is missing,
// NULL, or not numeric.
func (r Row) OptInt(names ...string) *int64 {
	v, ok := r.lookup(names...)
	if !ok {
		return nil
	}
	n, ok := toInt(v)
	if !ok {
		return nil
	}
	return &n
}

func toString(v any, timeLayout string) string {
	switch tv := v.(type) {
	case string:
		return tv
	case []byte:
		return string(tv)
	case time.Time:
		return tv.Format(timeLayout)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(tv), 'f', -1, 32)
	default:
		return fmt.Sprint(tv)
	}
}

func toInt(v any) (int64, bool) {
	switch tv := v.(type) {
	case int64:
		return tv, true
	case int32:
		return int64(tv), true
	case int:
		return int64(tv), true
	case float64:
		return int64(tv), true
	case float32:
		return int64(tv), true
	case bool:
		if tv {
			return 1, true
		}
		return 0, true
	case []byte:
		return parseInt(string(tv))
	case string:
		return parseInt(tv)
	default:
		return 0, false
	}
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case float64:
		return tv, true
	case float32:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case int:
		return float64(tv), true
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(tv)), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// scanRows reads every remaining row of rows. It does not close rows.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	all := []Row{}
	for rows.Next() {
		r, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

func scanRow(rows *sql.Rows, cols []string) (Row, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	r := make(Row, len(cols))
	for i, c := range cols {
		// drivers may reuse byte slices between calls to Next
		if b, ok := vals[i].([]byte); ok {
			vals[i] = append([]byte(nil), b...)
		}
		r[strings.ToLower(c)] = vals[i]
	}
	return r, nil
}
