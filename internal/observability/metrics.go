// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Discovery metrics
	CyclesTotal       *prometheus.CounterVec
	ListingsFetched   *prometheus.CounterVec
	SourceFetchErrors *prometheus.CounterVec
	ListingsAdmitted  prometheus.Counter
	ListingsInserted  prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	SnapshotsRecorded prometheus.Counter

	// Latency metrics
	CycleDuration prometheus.Histogram

	// Health metrics
	Watermark           prometheus.Gauge
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_radar"
	}

	return &Metrics{
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by outcome",
		}, []string{"status"}),
		ListingsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "listings_fetched_total",
			Help:      "Total number of candidate listings fetched per source",
		}, []string{"source"}),
		SourceFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "source_fetch_errors_total",
			Help:      "Total number of source fetch failures per source",
		}, []string{"source"}),
		ListingsAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "listings_admitted_total",
			Help:      "Total number of listings passing the admission filter",
		}),
		ListingsInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "listings_inserted_total",
			Help:      "Total number of listings newly persisted",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of already-persisted listings skipped",
		}),
		SnapshotsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "snapshots_recorded_total",
			Help:      "Total number of market snapshots recorded",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one full poll cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		Watermark: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "watermark_ms",
			Help:      "Effective recency watermark in Unix milliseconds",
		}),
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last successful poll cycle",
		}),
	}
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
