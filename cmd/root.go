package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/florinutz/rowsync/internal/config"
	"github.com/florinutz/rowsync/internal/logging"
)

var (
	cfgFile   string
	closeLogs = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "rowsync",
	Short: "Copy new rows from a legacy database table into MySQL",
	Long: `rowsync polls a legacy source table (Microsoft Access over ODBC, or SQLite)
for rows with an id above the destination's high-water mark and inserts them
into a MySQL, PostgreSQL or SQLite table, creating or widening that table to
fit the configured field mapping.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLogs()
	},
	SilenceUsage: true,
}

// Execute is called by main.go and is the entry point for the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./rowsync.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error, critical")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json")
	rootCmd.PersistentFlags().String("log-file", "", "append logs to this file instead of stderr")

	mustBindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	mustBindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cursorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("rowsync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	config.SetDefaults(viper.GetViper())
	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Only warn if a config file was explicitly specified but could not be read.
			if cfgFile != "" {
				fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
			}
		}
	}
}

func setupLogger() error {
	w, closeFn, err := logging.Output(viper.GetString("log_file"))
	if err != nil {
		return err
	}
	logger, err := logging.New(w, viper.GetString("log_level"), viper.GetString("log_format"))
	if err != nil {
		_ = closeFn()
		return err
	}
	closeLogs = closeFn
	slog.SetDefault(logger)
	return nil
}

// loadConfig decodes and validates the merged flag, env and file settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("viper.BindPFlag(%q): %v", key, err))
	}
}
