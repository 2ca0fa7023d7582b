//go:build !odbc

package source

import "fmt"

func init() {
	register(Driver{
		Name:        "odbc",
		Unavailable: fmt.Errorf("odbc source not available (build with -tags odbc)"),
	})
}
