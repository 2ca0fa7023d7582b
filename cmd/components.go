package cmd

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/florinutz/rowsync/destination"
	"github.com/florinutz/rowsync/dialect"
	"github.com/florinutz/rowsync/dlq"
	"github.com/florinutz/rowsync/internal/config"
	"github.com/florinutz/rowsync/mapping"
	"github.com/florinutz/rowsync/schema"
	"github.com/florinutz/rowsync/source"
)

// components holds everything built from a validated config.
type components struct {
	cfg        config.Config
	dialect    dialect.Dialect
	mapping    *mapping.Mapping
	reconciler *schema.Reconciler
	fetcher    *source.Fetcher
	table      *destination.Table
	deadLetter dlq.DLQ
}

func buildComponents(cfg config.Config, logger *slog.Logger) (*components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d, err := dialect.ByName(cfg.Destination.Driver)
	if err != nil {
		return nil, err
	}
	m, err := cfg.BuildMapping()
	if err != nil {
		return nil, err
	}
	fetcher, err := source.NewFetcher(cfg.SourceSettings(), m, logger)
	if err != nil {
		return nil, err
	}
	deadLetter, err := dlq.New(cfg.DeadLetter.Type, cfg.DeadLetter.Path, logger)
	if err != nil {
		return nil, err
	}

	reconciler := schema.NewReconciler(d, m, cfg.Destination.Table, cfg.Destination.FlagColumns, logger)
	table := destination.NewTable(d, m, cfg.Destination.Table,
		destination.WithDeadLetter(deadLetter),
		destination.WithLogger(logger),
	)
	return &components{
		cfg:        cfg,
		dialect:    d,
		mapping:    m,
		reconciler: reconciler,
		fetcher:    fetcher,
		table:      table,
		deadLetter: deadLetter,
	}, nil
}

func (c *components) openDestination(ctx context.Context) (*sql.DB, error) {
	return destination.Open(ctx, c.dialect, c.cfg.Destination.DSN(), c.cfg.Destination.ConnectTimeout)
}

func (c *components) Close() error {
	return c.deadLetter.Close()
}
