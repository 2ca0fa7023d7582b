package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/florinutz/rowsync/dialect"
	"github.com/florinutz/rowsync/internal/logging"
	"github.com/florinutz/rowsync/rowsyncerr"
	"github.com/florinutz/rowsync/source"
)

var knownExporters = map[string]bool{"": true, "none": true, "stdout": true, "otlp": true}

// Validate performs structural validation on the config. All problems are
// collected into a single *rowsyncerr.ConfigurationError; a missing source
// file additionally makes it match rowsyncerr.ErrSourceFileMissing.
func (c Config) Validate() error {
	var errs []string
	var cause error

	// --- Source ---
	if _, err := source.LookupDriver(c.Source.Driver); err != nil {
		errs = append(errs, fmt.Sprintf("source.driver: %v", err))
	}
	if c.Source.Table == "" {
		errs = append(errs, "source.table is required")
	}
	switch {
	case c.Source.FilePath != "":
		if _, err := os.Stat(c.Source.FilePath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				cause = rowsyncerr.ErrSourceFileMissing
				errs = append(errs, fmt.Sprintf("source.file_path %q does not exist", c.Source.FilePath))
			} else {
				errs = append(errs, fmt.Sprintf("source.file_path: %v", err))
			}
		}
	case c.Source.DSN == "":
		errs = append(errs, "source.file_path or source.dsn is required")
	}

	// --- Destination ---
	if _, err := dialect.ByName(c.Destination.Driver); err != nil {
		errs = append(errs, fmt.Sprintf("destination.driver: %v", err))
	}
	if c.Destination.URL == "" {
		if strings.EqualFold(c.Destination.Driver, "mysql") {
			if c.Destination.Host == "" {
				errs = append(errs, "destination.host is required")
			}
			if c.Destination.Port <= 0 || c.Destination.Port > 65535 {
				errs = append(errs, fmt.Sprintf("destination.port must be 1-65535, got %d", c.Destination.Port))
			}
			if c.Destination.User == "" {
				errs = append(errs, "destination.user is required")
			}
			if c.Destination.Database == "" {
				errs = append(errs, "destination.database is required")
			}
		} else {
			errs = append(errs, fmt.Sprintf("destination.url is required for driver %q", c.Destination.Driver))
		}
	}
	if c.Destination.Table == "" {
		errs = append(errs, "destination.table is required")
	}

	// --- Mapping ---
	if _, err := c.BuildMapping(); err != nil {
		errs = append(errs, err.Error())
	}

	// --- Durations ---
	checkDur := func(path string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be > 0", path))
		}
	}
	checkDur("poll_interval", c.PollInterval)
	checkDur("recovery_backoff", c.RecoveryBackoff)
	checkDur("source.connect_timeout", c.Source.ConnectTimeout)
	checkDur("destination.connect_timeout", c.Destination.ConnectTimeout)
	checkDur("shutdown_timeout", c.ShutdownTimeout)

	// --- Dead letters ---
	switch c.DeadLetter.Type {
	case "", "log", "none":
	case "file":
		if c.DeadLetter.Path == "" {
			errs = append(errs, "dead_letter.path is required for file dead letters")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown dead_letter.type %q (expected log, file, none)", c.DeadLetter.Type))
	}

	// --- Observability ---
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	if f := strings.ToLower(c.LogFormat); f != "" && f != "text" && f != "json" {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (expected text, json)", c.LogFormat))
	}
	if !knownExporters[c.OTel.Exporter] {
		errs = append(errs, fmt.Sprintf("unknown otel.exporter %q (expected none, stdout, otlp)", c.OTel.Exporter))
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("otel.sample_ratio must be within [0, 1], got %g", c.OTel.SampleRatio))
	}

	if len(errs) > 0 {
		return &rowsyncerr.ConfigurationError{
			Field:  "validation",
			Reason: strings.Join(errs, "; "),
			Err:    cause,
		}
	}
	return nil
}
