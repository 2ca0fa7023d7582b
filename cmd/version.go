package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags:
//
//	go build -ldflags "-X github.com/florinutz/rowsync/cmd.Version=v1.0.0" ./cmd/rowsync
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rowsync version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "rowsync "+Version)
	},
}
