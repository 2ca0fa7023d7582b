// Package mapping holds the fixed correspondence between source fields and
// destination columns.
package mapping

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/florinutz/rowsync/rowsyncerr"
)

var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Pair is one source field and the destination column it is written to.
type Pair struct {
	Field  string
	Column string
}

// Mapping is an immutable, ordered source -> destination mapping. The order
// of Pairs is the configured source field order and is the column order of
// every INSERT.
type Mapping struct {
	pairs          []Pair
	byField        map[string]string
	identityField  string
	identityColumn string
}

// New validates fields against columns and returns the mapping. Every
// violation is reported as a *rowsyncerr.ConfigurationError.
//
// identityField is the source's monotonically increasing row id (f_RecID);
// identityColumn is the destination column it lands in (raw_id). The identity
// field must be selected and must map to the identity column, otherwise the
// destination-derived cursor would never advance.
func New(fields []string, columns map[string]string, identityField, identityColumn string) (*Mapping, error) {
	if len(fields) != len(columns) {
		return nil, &rowsyncerr.ConfigurationError{
			Field:  "mapping",
			Reason: fmt.Sprintf("%d source fields selected but %d mapped columns", len(fields), len(columns)),
		}
	}
	if len(fields) == 0 {
		return nil, &rowsyncerr.ConfigurationError{Field: "source.fields", Reason: "no source fields selected"}
	}

	m := &Mapping{
		pairs:          make([]Pair, 0, len(fields)),
		byField:        make(map[string]string, len(fields)),
		identityField:  identityField,
		identityColumn: identityColumn,
	}
	seenColumns := make(map[string]string, len(columns))

	for _, f := range fields {
		if !validIdentifier.MatchString(f) {
			return nil, &rowsyncerr.ConfigurationError{Field: "source.fields", Reason: fmt.Sprintf("invalid field name %q", f)}
		}
		if _, dup := m.byField[f]; dup {
			return nil, &rowsyncerr.ConfigurationError{Field: "source.fields", Reason: fmt.Sprintf("field %q selected twice", f)}
		}
		col, ok := columns[f]
		if !ok {
			return nil, &rowsyncerr.ConfigurationError{Field: "mapping", Reason: fmt.Sprintf("source field %q has no destination column", f)}
		}
		if !validIdentifier.MatchString(col) {
			return nil, &rowsyncerr.ConfigurationError{Field: "mapping", Reason: fmt.Sprintf("invalid column name %q for field %q", col, f)}
		}
		key := strings.ToLower(col)
		if other, dup := seenColumns[key]; dup {
			return nil, &rowsyncerr.ConfigurationError{
				Field:  "mapping",
				Reason: fmt.Sprintf("fields %q and %q both map to column %q", other, f, col),
			}
		}
		seenColumns[key] = f
		m.byField[f] = col
		m.pairs = append(m.pairs, Pair{Field: f, Column: col})
	}

	idCol, ok := m.byField[identityField]
	if !ok {
		return nil, &rowsyncerr.ConfigurationError{
			Field:  "source.identity_field",
			Reason: fmt.Sprintf("identity field %q is not among the selected fields", identityField),
		}
	}
	if !strings.EqualFold(idCol, identityColumn) {
		return nil, &rowsyncerr.ConfigurationError{
			Field:  "destination.identity_column",
			Reason: fmt.Sprintf("identity field %q maps to %q, want %q", identityField, idCol, identityColumn),
		}
	}

	return m, nil
}

// Pairs returns the mapping in canonical order.
func (m *Mapping) Pairs() []Pair {
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// SourceFields returns the selected source fields in canonical order.
func (m *Mapping) SourceFields() []string {
	out := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = p.Field
	}
	return out
}

// Columns returns the destination columns in canonical order.
func (m *Mapping) Columns() []string {
	out := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = p.Column
	}
	return out
}

// Column returns the destination column for a source field.
func (m *Mapping) Column(field string) (string, bool) {
	c, ok := m.byField[field]
	return c, ok
}

func (m *Mapping) IdentityField() string  { return m.identityField }
func (m *Mapping) IdentityColumn() string { return m.identityColumn }

// Len returns the number of mapped pairs.
func (m *Mapping) Len() int { return len(m.pairs) }
