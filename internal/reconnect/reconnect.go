package reconnect

import (
	"context"
	"log/slog"
	"time"

	"github.com/florinutz/rowsync/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// SleepFunc waits for d or until ctx is done, whichever comes first. It
// returns ctx.Err() when interrupted.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Until calls openFn until it succeeds, sleeping a fixed delay between
// attempts. Every failure is logged at critical level and counted on
// errCounter. Until returns nil once openFn succeeds and ctx.Err() when ctx
// is cancelled.
func Until(ctx context.Context, name string, delay time.Duration,
	logger *slog.Logger, errCounter prometheus.Counter, sleep SleepFunc,
	openFn func(ctx context.Context) error,
) error {
	if logger == nil {
		logger = slog.Default()
	}
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; ; attempt++ {
		err := openFn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errCounter != nil {
			errCounter.Inc()
		}
		logger.Log(ctx, logging.LevelCritical, "reconnect failed",
			"target", name,
			"error", err,
			"attempt", attempt,
			"retry_in", delay,
		)

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}
