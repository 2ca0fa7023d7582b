// Package rowsync replicates new rows from an append-only source table into
// a destination table. The Daemon polls on a fixed interval, derives its
// cursor from the destination on every cycle and survives either database
// going away.
package rowsync

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/florinutz/rowsync/destination"
	"github.com/florinutz/rowsync/health"
	"github.com/florinutz/rowsync/internal/logging"
	"github.com/florinutz/rowsync/internal/reconnect"
	"github.com/florinutz/rowsync/internal/safegoroutine"
	"github.com/florinutz/rowsync/metrics"
	"github.com/florinutz/rowsync/record"
	"github.com/florinutz/rowsync/rowsyncerr"
	"github.com/florinutz/rowsync/schema"
	"github.com/florinutz/rowsync/source"
	"github.com/florinutz/rowsync/tracing"
)

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultRecoveryBackoff = 5 * time.Second
)

// Health checker component names.
const (
	ComponentSource      = "source"
	ComponentDestination = "destination"
)

// State is the daemon's lifecycle state.
type State int32

const (
	StateStarting State = iota
	StatePolling
	StateRecovering
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// OpenFunc opens a new destination handle.
type OpenFunc func(ctx context.Context) (*sql.DB, error)

// SleepFunc waits for d or until ctx is done. It returns ctx.Err() when
// interrupted.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher reads rows newer than a cursor from the source.
type Fetcher interface {
	Fetch(ctx context.Context, lastID int64) source.Result
}

// Writer reads the cursor from, and applies rows to, the destination table.
type Writer interface {
	LastID(ctx context.Context, q destination.Querier) (int64, error)
	Apply(ctx context.Context, db destination.TxBeginner, rows []record.Row) (destination.ApplyResult, error)
}

// Reconciler brings the destination table in line with the mapping.
type Reconciler interface {
	Ensure(ctx context.Context, db schema.DB) (schema.Result, error)
}

// Daemon runs the sync loop. It owns the destination handle; the source is
// opened by the Fetcher on every cycle.
type Daemon struct {
	open          OpenFunc
	reconciler    Reconciler
	fetcher       Fetcher
	writer        Writer
	identityField string

	db    *sql.DB
	state atomic.Int32

	pollInterval    time.Duration
	recoveryBackoff time.Duration
	sleep           SleepFunc

	health    *health.Checker
	readiness *health.ReadinessChecker
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the logger. If not set, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		d.logger = l
	}
}

// WithPollInterval sets the pause between cycles and between failed
// reconnect attempts. Defaults to DefaultPollInterval.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Daemon) {
		d.pollInterval = interval
	}
}

// WithRecoveryBackoff sets the pause between dropping a failed destination
// handle and opening a new one. Defaults to DefaultRecoveryBackoff.
func WithRecoveryBackoff(backoff time.Duration) Option {
	return func(d *Daemon) {
		d.recoveryBackoff = backoff
	}
}

// WithSleeper replaces the context-aware timer used for every pause.
func WithSleeper(fn SleepFunc) Option {
	return func(d *Daemon) {
		d.sleep = fn
	}
}

// WithHealthChecker sets the health checker. If not set, a new checker is
// created. The source and destination components are registered on it.
func WithHealthChecker(c *health.Checker) Option {
	return func(d *Daemon) {
		d.health = c
	}
}

// WithReadiness sets the readiness checker, which is ready while polling.
func WithReadiness(r *health.ReadinessChecker) Option {
	return func(d *Daemon) {
		d.readiness = r
	}
}

// WithTracerProvider enables cycle spans. If not set, the global provider is
// used, which is a noop unless tracing was set up.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Daemon) {
		d.tracer = tracing.Tracer(tp)
	}
}

// WithIdentityField names the source identity field, used to report the last
// synced id. Defaults to "f_RecID".
func WithIdentityField(field string) Option {
	return func(d *Daemon) {
		d.identityField = field
	}
}

// New creates a Daemon. open is called at startup and on every recovery.
func New(open OpenFunc, reconciler Reconciler, fetcher Fetcher, writer Writer, opts ...Option) *Daemon {
	d := &Daemon{
		open:            open,
		reconciler:      reconciler,
		fetcher:         fetcher,
		writer:          writer,
		identityField:   "f_RecID",
		pollInterval:    DefaultPollInterval,
		recoveryBackoff: DefaultRecoveryBackoff,
		sleep:           reconnect.Sleep,
		logger:          slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.health == nil {
		d.health = health.NewChecker()
	}
	if d.tracer == nil {
		d.tracer = tracing.Tracer(nil)
	}
	d.health.Register(ComponentSource)
	d.health.Register(ComponentDestination)
	d.logger = d.logger.With("component", "daemon")
	d.setState(StateStarting)
	return d
}

// State returns the current lifecycle state.
func (d *Daemon) State() State { return State(d.state.Load()) }

// Health returns the daemon's health checker.
func (d *Daemon) Health() *health.Checker { return d.health }

func (d *Daemon) setState(s State) {
	d.state.Store(int32(s))
	metrics.State.Set(float64(s))
	if d.readiness != nil {
		d.readiness.SetState(s.String(), s == StatePolling)
	}
}

// Start opens the destination and reconciles its schema. Any error is fatal:
// the daemon must not start polling against a table it could not prepare.
func (d *Daemon) Start(ctx context.Context) error {
	d.setState(StateStarting)

	db, err := d.open(ctx)
	if err != nil {
		d.health.SetStatusDetail(ComponentDestination, health.StatusDown, err.Error())
		d.logger.Log(ctx, logging.LevelCritical, "destination connect failed", "error", err)
		return err
	}
	d.db = db

	res, err := d.reconciler.Ensure(ctx, db)
	if err != nil {
		_ = d.Close()
		d.health.SetStatusDetail(ComponentDestination, health.StatusDown, err.Error())
		return err
	}
	if res.Changed() {
		d.logger.Info("destination schema reconciled", "created", res.Created, "added", res.Added)
	}

	d.health.SetStatus(ComponentDestination, health.StatusUp)
	d.setState(StatePolling)
	d.logger.Info("polling started", "poll_interval", d.pollInterval)
	return nil
}

// Run starts the daemon and polls until ctx is cancelled. It returns an error
// only when startup fails; cancellation is a clean stop.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	for {
		if err := d.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			if err := d.recoverDestination(ctx, err); err != nil {
				break
			}
			continue
		}
		if err := d.sleep(ctx, d.pollInterval); err != nil {
			break
		}
	}

	d.logger.Info("stopped")
	return nil
}

// Close releases the destination handle.
func (d *Daemon) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Cycle runs one cursor, fetch and apply pass. An unreachable source is not
// an error. A destination failure or a panic is returned and means the
// destination handle must be replaced.
func (d *Daemon) Cycle(ctx context.Context) error {
	return safegoroutine.Call(d.logger, "cycle", func() error {
		return d.cycle(ctx)
	})
}

func (d *Daemon) cycle(ctx context.Context) (err error) {
	ctx = tracing.WithCycleID(ctx, uuid.NewString())
	ctx, span := d.tracer.Start(ctx, "rowsync.cycle")
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.Cycles.WithLabelValues(outcome).Inc()
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("rowsync.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if d.db == nil {
		return &rowsyncerr.DestinationUnavailableError{Op: "cycle", Err: errors.New("no destination connection")}
	}

	lastID, err := d.readCursor(ctx)
	if err != nil {
		return err
	}

	res := d.fetch(ctx, lastID)
	if !res.OK() {
		outcome = "source_unavailable"
		metrics.SourceUnavailable.Inc()
		d.health.SetStatusDetail(ComponentSource, health.StatusDegraded, res.Unavailable.Error())
		return nil
	}
	d.health.SetStatus(ComponentSource, health.StatusUp)
	metrics.RowsFetched.Add(float64(len(res.Rows)))

	if len(res.Rows) == 0 {
		outcome = "idle"
		d.logger.DebugContext(ctx, "no new rows", "last_id", lastID)
		return nil
	}

	applied, err := d.apply(ctx, res.Rows)
	if err != nil {
		return err
	}
	metrics.RowsInserted.Add(float64(applied.Inserted))
	metrics.RowsDuplicate.Add(float64(applied.Duplicates))
	metrics.RowsFailed.Add(float64(applied.Failed))

	upTo, idErr := res.Rows[len(res.Rows)-1].Int64(d.identityField)
	if idErr != nil {
		d.logger.WarnContext(ctx, "last fetched row has no usable identity", "field", d.identityField, "error", idErr)
	}
	span.SetAttributes(attribute.Int64("rowsync.up_to", upTo))
	switch {
	case applied.Inserted > 0:
		d.logger.InfoContext(ctx, "inserted rows",
			"count", applied.Inserted,
			"up_to", upTo,
			"duplicates", applied.Duplicates,
			"failed", applied.Failed,
		)
	case applied.Failed == 0:
		d.logger.InfoContext(ctx, "rows found but all already present", "count", len(res.Rows))
	default:
		d.logger.WarnContext(ctx, "no rows inserted", "fetched", len(res.Rows), "failed", applied.Failed)
	}
	outcome = "synced"
	return nil
}

func (d *Daemon) readCursor(ctx context.Context) (int64, error) {
	ctx, span := d.tracer.Start(ctx, "rowsync.cursor")
	defer span.End()

	lastID, err := d.writer.LastID(ctx, d.db)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("rowsync.last_id", lastID))
	metrics.Cursor.Set(float64(lastID))
	return lastID, nil
}

func (d *Daemon) fetch(ctx context.Context, lastID int64) source.Result {
	ctx, span := d.tracer.Start(ctx, "rowsync.fetch", trace.WithAttributes(attribute.Int64("rowsync.last_id", lastID)))
	defer span.End()

	res := d.fetcher.Fetch(ctx, lastID)
	if !res.OK() {
		span.RecordError(res.Unavailable)
		span.SetStatus(codes.Error, "source unavailable")
	}
	span.SetAttributes(attribute.Int("rowsync.rows", len(res.Rows)))
	return res
}

func (d *Daemon) apply(ctx context.Context, rows []record.Row) (destination.ApplyResult, error) {
	ctx, span := d.tracer.Start(ctx, "rowsync.apply", trace.WithAttributes(attribute.Int("rowsync.rows", len(rows))))
	defer span.End()

	res, err := d.writer.Apply(ctx, d.db, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(
		attribute.Int64("rowsync.inserted", res.Inserted),
		attribute.Int("rowsync.duplicates", res.Duplicates),
		attribute.Int("rowsync.failed", res.Failed),
	)
	return res, nil
}

// recoverDestination drops the destination handle, waits the recovery
// backoff and opens a new handle, retrying every poll interval until it
// succeeds. It returns a non-nil error only when ctx is cancelled.
func (d *Daemon) recoverDestination(ctx context.Context, cause error) error {
	d.setState(StateRecovering)
	d.health.SetStatusDetail(ComponentDestination, health.StatusDown, cause.Error())
	d.logger.ErrorContext(ctx, "sync cycle failed, reconnecting destination",
		"error", cause,
		"backoff", d.recoveryBackoff,
	)

	_ = d.Close()
	if err := d.sleep(ctx, d.recoveryBackoff); err != nil {
		return err
	}

	err := reconnect.Until(ctx, ComponentDestination, d.pollInterval, d.logger,
		metrics.DestinationReconnectErrors, reconnect.SleepFunc(d.sleep),
		func(ctx context.Context) error {
			db, err := d.open(ctx)
			if err != nil {
				return err
			}
			d.db = db
			return nil
		})
	if err != nil {
		return err
	}

	metrics.DestinationReconnects.Inc()
	d.health.SetStatus(ComponentDestination, health.StatusUp)
	d.setState(StatePolling)
	d.logger.InfoContext(ctx, "destination reconnected")
	return nil
}
