package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts ingestion pipeline outcomes. All methods are safe
// on a nil receiver so callers can treat metrics as best-effort.
type PipelineMetrics struct {
	recordsProcessed *prometheus.CounterVec
	recordsFailed    *prometheus.CounterVec
	alertsEmitted    *prometheus.CounterVec
	batchDuration    prometheus.Histogram
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the process-wide pipeline metrics, registering them on
// first use.
func Pipeline() *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest clears the singleton between tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &PipelineMetrics{
		recordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tanksync_records_processed_total",
			Help: "Telemetry records successfully persisted, by source.",
		}, []string{"source"}),
		recordsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tanksync_records_failed_total",
			Help: "Telemetry records that failed processing, by source.",
		}, []string{"source"}),
		alertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tanksync_alerts_emitted_total",
			Help: "Alerts inserted by the threshold engine, by alert type.",
		}, []string{"alert_type"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tanksync_batch_duration_seconds",
			Help:    "Wall-clock duration of one ingestion batch.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registerer.MustRegister(m.recordsProcessed, m.recordsFailed, m.alertsEmitted, m.batchDuration)
	return m
}

// IncProcessed counts one persisted record.
func (m *PipelineMetrics) IncProcessed(source string) {
	if m == nil {
		return
	}
	m.recordsProcessed.WithLabelValues(source).Inc()
}

// IncFailed counts one failed record.
func (m *PipelineMetrics) IncFailed(source string) {
	if m == nil {
		return
	}
	m.recordsFailed.WithLabelValues(source).Inc()
}

// IncAlert counts one inserted alert.
func (m *PipelineMetrics) IncAlert(alertType string) {
	if m == nil {
		return
	}
	m.alertsEmitted.WithLabelValues(alertType).Inc()
}

// ObserveBatch records the duration of one ingestion batch in seconds.
func (m *PipelineMetrics) ObserveBatch(seconds float64) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(seconds)
}
