// Package record defines the row type that travels from the source fetcher to
// the destination writer.
package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Row is one source row. Its key set is fixed at construction to the selected
// source fields; looking up any other field is an error. A Row is never
// mutated after New returns.
type Row struct {
	fields []string
	values map[string]any
}

// New builds a Row from parallel field and value slices, as produced by a
// SELECT of exactly those fields. It fails if the lengths differ, if a field
// is empty, or if a field appears twice.
func New(fields []string, values []any) (Row, error) {
	if len(fields) != len(values) {
		return Row{}, fmt.Errorf("record: %d fields but %d values", len(fields), len(values))
	}
	m := make(map[string]any, len(fields))
	for i, f := range fields {
		if f == "" {
			return Row{}, fmt.Errorf("record: empty field name at position %d", i)
		}
		if _, dup := m[f]; dup {
			return Row{}, fmt.Errorf("record: duplicate field %q", f)
		}
		m[f] = values[i]
	}
	fs := make([]string, len(fields))
	copy(fs, fields)
	return Row{fields: fs, values: m}, nil
}

// Fields returns the row's field names in selection order.
func (r Row) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Get returns the value of field. The boolean is false when the field is not
// part of the row.
func (r Row) Get(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Values returns the values for fields in the given order. It fails on the
// first field that is not part of the row.
func (r Row) Values(fields []string) ([]any, error) {
	out := make([]any, len(fields))
	for i, f := range fields {
		v, ok := r.values[f]
		if !ok {
			return nil, fmt.Errorf("record: unknown field %q", f)
		}
		out[i] = v
	}
	return out, nil
}

// Map returns a copy of the row as a field -> value map.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Int64 returns field converted to int64. Drivers hand back identity values
// as int64, int32, float64 or text depending on the backend.
func (r Row) Int64(field string) (int64, error) {
	v, ok := r.values[field]
	if !ok {
		return 0, fmt.Errorf("record: unknown field %q", field)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case []byte:
		return parseInt(field, string(n))
	case string:
		return parseInt(field, n)
	case nil:
		return 0, fmt.Errorf("record: field %q is null", field)
	default:
		return 0, fmt.Errorf("record: field %q has non-integer type %T", field, v)
	}
}

func parseInt(field, s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("record: field %q: %w", field, err)
	}
	return n, nil
}
