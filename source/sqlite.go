package source

import (
	_ "modernc.org/sqlite"
)

func init() {
	register(Driver{
		Name:      "sqlite",
		SQLDriver: "sqlite",
		Quote:     quoteDouble,
		DSN:       SQLiteDSN,
	})
}
