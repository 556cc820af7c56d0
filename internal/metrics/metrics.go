package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics, labeled by sync mode ("backfill", "daily",
// "dimensions"). Exposed on /metrics in serve mode.
var (
	RowsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crimewatch_rows_fetched_total",
		Help: "Raw rows returned by the data portal",
	}, []string{"mode"})

	RowsCoerced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crimewatch_rows_coerced_total",
		Help: "Rows coerced into the typed schema",
	}, []string{"mode"})

	RowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crimewatch_rows_dropped_total",
		Help: "Rows dropped before load for an unparseable record ID",
	}, []string{"mode"})

	RowsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crimewatch_rows_loaded_total",
		Help: "Rows committed to the database",
	}, []string{"mode"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crimewatch_runs_total",
		Help: "Sync runs by mode and outcome",
	}, []string{"mode", "outcome"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crimewatch_run_duration_seconds",
		Help:    "Wall-clock duration of a sync run",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	CheckpointTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crimewatch_checkpoint_timestamp_seconds",
		Help: "Latest stored incident timestamp as a Unix time",
	})
)

// ObserveRun records the outcome counters for one sync run.
func ObserveRun(mode string, seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	RunsTotal.WithLabelValues(mode, outcome).Inc()
	RunDuration.WithLabelValues(mode).Observe(seconds)
}
