package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Print the destination's high-water mark",
	Long:  `Prints the highest identity value in the destination table, the id after which the next cycle fetches source rows. An empty table prints 0.`,
	RunE:  runCursor,
}

func runCursor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := buildComponents(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	db, err := c.openDestination(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	lastID, err := c.table.LastID(cmd.Context(), db)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), lastID)
	return err
}
