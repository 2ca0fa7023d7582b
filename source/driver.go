package source

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Driver describes a source database flavour.
type Driver struct {
	// Name is the configuration name.
	Name string
	// SQLDriver is the database/sql driver name.
	SQLDriver string
	// Quote quotes an identifier.
	Quote func(ident string) string
	// DSN builds the connection string from a database file and password,
	// used when no explicit DSN is configured.
	DSN func(path, password string) string
	// Unavailable is set when the driver was compiled out.
	Unavailable error
}

var drivers = map[string]Driver{}

func register(d Driver) {
	drivers[d.Name] = d
}

// LookupDriver returns the source driver registered under name.
func LookupDriver(name string) (Driver, error) {
	d, ok := drivers[strings.ToLower(name)]
	if !ok {
		return Driver{}, fmt.Errorf("unknown source driver %q (expected %s)", name, strings.Join(DriverNames(), ", "))
	}
	if d.Unavailable != nil {
		return Driver{}, d.Unavailable
	}
	return d, nil
}

// DriverNames returns the registered driver names, sorted.
func DriverNames() []string {
	names := make([]string, 0, len(drivers))
	for n := range drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AccessDSN is the ODBC connection string for a Microsoft Access database
// file through the Access ODBC driver.
func AccessDSN(path, password string) string {
	return fmt.Sprintf("Driver={Microsoft Access Driver (*.mdb, *.accdb)};Dbq=%s;PWD=%s;", path, password)
}

// SQLiteDSN opens path read-only, so a missing file is an error instead of
// a freshly created empty database.
func SQLiteDSN(path, _ string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
}

func quoteBrackets(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func quoteDouble(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
