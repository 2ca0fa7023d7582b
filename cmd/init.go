package cmd

import (
	"embed"
	"fmt"
	"io"
	"log/slog"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/florinutz/rowsync/internal/config"
)

//go:embed templates/rowsync.yaml.tmpl
var configTemplate embed.FS

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Print a starter config file, or the destination table DDL",
	Long: `Without flags, prints a commented rowsync.yaml with the default settings.

With --sql, loads the configuration and prints the CREATE TABLE statement the
daemon would issue for the destination table, with every column typed by the
naming rules (identity, date, id, flag, default).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("sql", false, "print the destination CREATE TABLE for the current config")
}

func runInit(cmd *cobra.Command, args []string) error {
	if asSQL, _ := cmd.Flags().GetBool("sql"); asSQL {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printCreateTable(cmd.OutOrStdout(), cfg)
	}
	return writeConfigTemplate(cmd.OutOrStdout(), config.Default())
}

func writeConfigTemplate(w io.Writer, cfg config.Config) error {
	tmplBytes, err := configTemplate.ReadFile("templates/rowsync.yaml.tmpl")
	if err != nil {
		return fmt.Errorf("read embedded template: %w", err)
	}

	tmpl, err := template.New("config").Parse(string(tmplBytes))
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	if err := tmpl.Execute(w, cfg); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}

func printCreateTable(w io.Writer, cfg config.Config) error {
	c, err := buildComponents(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	_, err = fmt.Fprintf(w, "%s;\n", c.reconciler.CreateTableSQL())
	return err
}
