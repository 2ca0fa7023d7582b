//go:build odbc

package source

import (
	_ "github.com/alexbrainman/odbc"
)

func init() {
	register(Driver{
		Name:      "odbc",
		SQLDriver: "odbc",
		Quote:     quoteBrackets,
		DSN:       AccessDSN,
	})
}
