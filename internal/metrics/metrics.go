// Package metrics defines the gateway's fixed set of Prometheus metrics:
// association counts, cache hit/miss, tracker backlog, and C-MOVE/C-GET
// durations, exposed at /metrics when enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the gateway's Prometheus collectors. Construct with New,
// which registers every collector against the supplied registerer.
type Metrics struct {
	AssociationsActive  prometheus.Gauge
	AssociationsOpened  *prometheus.CounterVec
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	TrackerPending      prometheus.GaugeFunc
	CMoveDuration       prometheus.Histogram
	CGetDuration        prometheus.Histogram
	CFindDuration       prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers the gateway's metrics against reg.
// trackerPending is polled on every /metrics scrape to report the tracker's
// current backlog without the tracker needing to import this package.
func New(reg prometheus.Registerer, trackerPending func() int) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AssociationsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dicom_gateway",
			Name:      "associations_active",
			Help:      "Number of currently open DIMSE associations (inbound SCP + outbound SCU).",
		}),
		AssociationsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dicom_gateway",
			Name:      "associations_opened_total",
			Help:      "Total DIMSE associations opened, labeled by role (scu/scp) and outcome (accepted/rejected).",
		}, []string{"role", "outcome"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dicom_gateway",
			Name:      "cache_hits_total",
			Help:      "Total WADO cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dicom_gateway",
			Name:      "cache_misses_total",
			Help:      "Total WADO cache misses.",
		}),
		TrackerPending: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "dicom_gateway",
			Name:      "tracker_pending",
			Help:      "Number of C-MOVE correlations currently awaiting resolution.",
		}, func() float64 { return float64(trackerPending()) }),
		CMoveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dicom_gateway",
			Name:      "cmove_duration_seconds",
			Help:      "Duration of C-MOVE retrieval operations, from SCU request to tracker resolution.",
			Buckets:   prometheus.DefBuckets,
		}),
		CGetDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dicom_gateway",
			Name:      "cget_duration_seconds",
			Help:      "Duration of C-GET retrieval operations.",
			Buckets:   prometheus.DefBuckets,
		}),
		CFindDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dicom_gateway",
			Name:      "cfind_duration_seconds",
			Help:      "Duration of C-FIND query operations.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dicom_gateway",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests, labeled by route and status class.",
		}, []string{"route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dicom_gateway",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration, labeled by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
