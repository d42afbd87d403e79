// Package metrics exposes Prometheus instrumentation for the scan engine:
// chunk throughput, per-protocol probe outcomes, queue depth, and
// fingerprint confidence.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "netindexer"

const (
	labelService = "service"
	labelStatus  = "status"
)

// Collector holds every metric the engine reports.
type Collector struct {
	ChunksCompleted prometheus.Counter
	ChunksFailed    prometheus.Counter
	ChunksRetried   prometheus.Counter

	ProbesTotal *prometheus.CounterVec

	QueueDepth prometheus.Gauge

	FingerprintConfidence *prometheus.HistogramVec

	ThermalPauses prometheus.Counter
}

// NewCollector creates a Collector and registers it against reg. If reg is
// nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		ChunksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_completed_total",
			Help:      "Total scan chunks completed successfully.",
		}),
		ChunksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_failed_total",
			Help:      "Total scan chunks that exhausted their retry budget.",
		}),
		ChunksRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_retried_total",
			Help:      "Total scan chunks that failed but were requeued for retry.",
		}),
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total probes executed, labeled by service and outcome status.",
		}, []string{labelService, labelStatus}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of scan chunks not yet completed or failed.",
		}),
		FingerprintConfidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fingerprint_confidence",
			Help:      "Confidence score distribution of fingerprint matches, by service type.",
			Buckets:   []float64{10, 30, 50, 70, 90, 100},
		}, []string{labelService}),
		ThermalPauses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thermal_pauses_total",
			Help:      "Total times the engine paused for the thermal governor to clear.",
		}),
	}

	reg.MustRegister(
		c.ChunksCompleted,
		c.ChunksFailed,
		c.ChunksRetried,
		c.ProbesTotal,
		c.QueueDepth,
		c.FingerprintConfidence,
		c.ThermalPauses,
	)

	return c
}

// ObserveProbe records one probe outcome.
func (c *Collector) ObserveProbe(service, status string) {
	c.ProbesTotal.WithLabelValues(service, status).Inc()
}

// ObserveFingerprint records a fingerprint confidence score for service.
func (c *Collector) ObserveFingerprint(service string, confidence int) {
	c.FingerprintConfidence.WithLabelValues(service).Observe(float64(confidence))
}
