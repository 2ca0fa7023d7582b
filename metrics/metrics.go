package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowsync_cycles_total",
		Help: "Total number of sync cycles, by outcome (synced, idle, source_unavailable, error).",
	}, []string{"outcome"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rowsync_cycle_duration_seconds",
		Help:    "Duration of one cursor, fetch and apply cycle.",
		Buckets: prometheus.DefBuckets,
	})

	RowsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowsync_rows_fetched_total",
		Help: "Total number of rows read from the source.",
	})

	RowsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowsync_rows_inserted_total",
		Help: "Total number of rows written to the destination.",
	})

	RowsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowsync_rows_duplicate_total",
		Help: "Total number of fetched rows that were already present in the destination.",
	})

	RowsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowsync_rows_failed_total",
		Help: "Total number of rows that could not be written.",
	})

	SourceUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowsync_source_unavailable_total",
		Help: "Total number of cycles in which the source could not be read.",
	})

	DestinationReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowsync_destination_reconnects_total",
		Help: "Total number of successful destination reconnects.",
	})

	DestinationReconnectErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowsync_destination_reconnect_errors_total",
		Help: "Total number of failed destination reconnect attempts.",
	})

	Cursor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rowsync_cursor",
		Help: "Highest identity value present in the destination at the start of the last cycle.",
	})

	State = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rowsync_state",
		Help: "Daemon state: 0 starting, 1 polling, 2 recovering.",
	})

	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowsync_dead_letters_total",
		Help: "Total number of rows recorded to the dead letter sink.",
	}, []string{"table"})

	DeadLetterErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowsync_dead_letter_errors_total",
		Help: "Total number of rows that could not be recorded to the dead letter sink.",
	})

	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowsync_panics_recovered_total",
		Help: "Total number of recovered panics, by component.",
	}, []string{"component"})
)
