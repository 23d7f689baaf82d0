// Package prometheus provides the Prometheus-backed implementations of the
// metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LightningFastRom/mediafs/pkg/metrics"
)

// volumeMetrics is the Prometheus implementation of metrics.VolumeMetrics.
type volumeMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	redactionsTotal   prometheus.Counter
	indexLookupsTotal *prometheus.CounterVec
}

// NewVolumeMetrics creates a Prometheus-backed VolumeMetrics instance, or a
// no-op one when metrics are disabled.
func NewVolumeMetrics() metrics.VolumeMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopVolumeMetrics()
	}

	reg := metrics.GetRegistry()

	return &volumeMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediafs_operations_total",
				Help: "Total mediated filesystem operations by operation and decision",
			},
			[]string{"op", "decision"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediafs_operation_duration_seconds",
				Help:    "Latency of mediated filesystem operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		redactionsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mediafs_redactions_total",
				Help: "Total reads served with redacted metadata",
			},
		),
		indexLookupsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediafs_index_lookups_total",
				Help: "Total content index consultations by result",
			},
			[]string{"result"},
		),
	}
}

func (m *volumeMetrics) ObserveOperation(op, decision string, duration time.Duration) {
	m.operationsTotal.WithLabelValues(op, decision).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *volumeMetrics) RecordRedaction() {
	m.redactionsTotal.Inc()
}

func (m *volumeMetrics) RecordIndexLookup(result string) {
	m.indexLookupsTotal.WithLabelValues(result).Inc()
}
