package safegoroutine

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/florinutz/rowsync/metrics"
	"golang.org/x/sync/errgroup"
)

// Go runs fn in the group through Call, so a panic in fn becomes the group's
// error instead of crashing the process.
func Go(g *errgroup.Group, logger *slog.Logger, name string, fn func() error) {
	g.Go(func() error {
		return Call(logger, name, fn)
	})
}

// Call runs fn on the calling goroutine. If fn panics, the panic is recovered,
// logged with its stack trace, counted in the panics_recovered metric and
// returned as an error.
func Call(logger *slog.Logger, name string, fn func() error) (err error) {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues(name).Inc()
			logger.Error("panic recovered",
				"component", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return fn()
}
