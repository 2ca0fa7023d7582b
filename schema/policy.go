package schema

import (
	"strings"

	"github.com/florinutz/rowsync/dialect"
)

// DefaultFlagColumns are the columns typed as small 0/1 integers when no flag
// columns are configured.
var DefaultFlagColumns = []string{"in_out"}

// Rule assigns Type to every column whose lowercased name satisfies Match.
type Rule struct {
	Name  string
	Match func(column string) bool
	Type  dialect.ColumnType
}

// Policy is the ordered rule table that decides destination column types.
// The first matching rule wins; a column that matches nothing is a string.
type Policy struct {
	identity string
	rules    []Rule
}

// NewPolicy returns the column type policy for a table whose identity column
// is identityColumn. Column names are compared case-insensitively.
func NewPolicy(identityColumn string, flagColumns []string) *Policy {
	if flagColumns == nil {
		flagColumns = DefaultFlagColumns
	}
	identity := strings.ToLower(identityColumn)
	flags := make(map[string]bool, len(flagColumns))
	for _, f := range flagColumns {
		flags[strings.ToLower(f)] = true
	}

	return &Policy{
		identity: identity,
		rules: []Rule{
			{
				Name:  "identity",
				Match: func(c string) bool { return c == identity },
				Type:  dialect.TypeIdentity,
			},
			{
				Name:  "date",
				Match: func(c string) bool { return strings.Contains(c, "date") },
				Type:  dialect.TypeDateTime,
			},
			{
				Name:  "id",
				Match: func(c string) bool { return strings.Contains(c, "id") },
				Type:  dialect.TypeInteger,
			},
			{
				Name:  "flag",
				Match: func(c string) bool { return flags[c] },
				Type:  dialect.TypeFlag,
			},
		},
	}
}

// Rules returns the rule table in evaluation order.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// TypeFor returns the type for column and the name of the rule that chose it
// ("default" when no rule matched). When creating is false the column is
// being added to an existing table, and the identity type is downgraded to a
// plain integer: a primary key cannot be added to a populated table.
func (p *Policy) TypeFor(column string, creating bool) (dialect.ColumnType, string) {
	c := strings.ToLower(column)
	for _, r := range p.rules {
		if !r.Match(c) {
			continue
		}
		if r.Type == dialect.TypeIdentity && !creating {
			return dialect.TypeInteger, r.Name
		}
		return r.Type, r.Name
	}
	return dialect.TypeString, "default"
}

// IsIdentity reports whether column is the identity column.
func (p *Policy) IsIdentity(column string) bool {
	return strings.ToLower(column) == p.identity
}
