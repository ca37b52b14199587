// Package metrics provides Prometheus metrics for the price engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ObservationsTotal is a counter of observations recorded per source.
	ObservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observations_total",
			Help: "Total number of observations recorded from sources",
		},
		[]string{"source"},
	)

	// OutOfOrderTotal is a counter of observations rejected as out of order.
	OutOfOrderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "out_of_order_observations_total",
			Help: "Total number of observations rejected for arriving out of order",
		},
		[]string{"source"},
	)

	// SourceLiveness is a gauge of source liveness (2=live, 1=stale, 0=down).
	SourceLiveness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_liveness",
			Help: "Liveness state of price sources (2=live, 1=stale, 0=down)",
		},
		[]string{"source"},
	)

	// SourceLastObservation is a gauge of the last observation timestamp per source.
	SourceLastObservation = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_last_observation_timestamp",
			Help: "Unix timestamp of the last observation from a source",
		},
		[]string{"source"},
	)

	// BucketsTotal is a counter of aggregated buckets by result.
	BucketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buckets_total",
			Help: "Total number of aggregated buckets produced",
		},
		[]string{"result"}, // "aggregated" or "filled"
	)

	// AggregationDuration is a histogram of bucket aggregation duration.
	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bucket_aggregation_duration_seconds",
			Help:    "Duration of bucket aggregation operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	// AppendRetriesTotal is a counter of series store append retries.
	AppendRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "store_append_retries_total",
			Help: "Total number of series store append retries",
		},
	)

	// BacklogSize is a gauge of points waiting in the persistence backlog.
	BacklogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_backlog_size",
			Help: "Number of aggregated points buffered awaiting persistence",
		},
	)

	// DroppedPointsTotal is a counter of points dropped from the backlog.
	DroppedPointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "store_dropped_points_total",
			Help: "Total number of aggregated points dropped due to backlog overflow",
		},
	)

	// HistoricalRowsTotal is a counter of historical rows written.
	HistoricalRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "historical_rows_total",
			Help: "Total number of historical points written to the series store",
		},
	)
)

// Init initializes Prometheus metrics registry.
func Init() {
	prometheus.MustRegister(
		ObservationsTotal,
		OutOfOrderTotal,
		SourceLiveness,
		SourceLastObservation,
		BucketsTotal,
		AggregationDuration,
		AppendRetriesTotal,
		BacklogSize,
		DroppedPointsTotal,
		HistoricalRowsTotal,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordObservation records an observation from a source.
func RecordObservation(source string, timestamp time.Time) {
	ObservationsTotal.WithLabelValues(source).Inc()
	SourceLastObservation.WithLabelValues(source).Set(float64(timestamp.Unix()))
}

// RecordOutOfOrder records a rejected out-of-order observation.
func RecordOutOfOrder(source string) {
	OutOfOrderTotal.WithLabelValues(source).Inc()
}

// RecordLiveness records the liveness state of a source.
func RecordLiveness(source string, state int) {
	SourceLiveness.WithLabelValues(source).Set(float64(state))
}

// RecordBucket records a produced bucket.
func RecordBucket(filled bool, duration time.Duration) {
	result := "aggregated"
	if filled {
		result = "filled"
	}
	BucketsTotal.WithLabelValues(result).Inc()
	AggregationDuration.Observe(duration.Seconds())
}

// RecordAppendRetry records a series store append retry.
func RecordAppendRetry() {
	AppendRetriesTotal.Inc()
}

// SetBacklogSize records the current persistence backlog size.
func SetBacklogSize(n int) {
	BacklogSize.Set(float64(n))
}

// RecordDroppedPoints records points dropped from the backlog.
func RecordDroppedPoints(n int) {
	DroppedPointsTotal.Add(float64(n))
}

// RecordHistoricalRows records historical rows written to the store.
func RecordHistoricalRows(n int) {
	HistoricalRowsTotal.Add(float64(n))
}
