package reporter

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "judgegate"
	metricsSubsystem = "execution"
)

// MetricsSink exports execution logs as Prometheus series.
type MetricsSink struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	memory     *prometheus.HistogramVec
	passRatio  *prometheus.HistogramVec
}

var _ Sink = (*MetricsSink)(nil)

// NewMetricsSink registers the execution collectors on reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "total",
			Help:      "Executions recorded, by endpoint, language and status",
		}, []string{"endpoint", "language", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "duration_seconds",
			Help:      "Backend-reported execution time",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"language"}),
		memory: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "memory_kilobytes",
			Help:      "Backend-reported memory usage",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 10),
		}, []string{"language"}),
		passRatio: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "test_pass_ratio",
			Help:      "Fraction of passed test cases per batch",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"language"}),
	}
	for _, c := range []prometheus.Collector{s.executions, s.duration, s.memory, s.passRatio} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *MetricsSink) Write(_ context.Context, log ExecutionLog) error {
	s.executions.WithLabelValues(log.Endpoint, log.Language, log.Status).Inc()
	if log.Status == StatusError {
		return nil
	}
	s.duration.WithLabelValues(log.Language).Observe(float64(log.ExecutionTimeMs) / 1000)
	s.memory.WithLabelValues(log.Language).Observe(float64(log.MemoryUsageKB))
	if log.TestCasesTotal != nil && *log.TestCasesTotal > 0 && log.TestCasesPassed != nil {
		s.passRatio.WithLabelValues(log.Language).Observe(float64(*log.TestCasesPassed) / float64(*log.TestCasesTotal))
	}
	return nil
}

// Executions exposes the execution counter for inspection.
func (s *MetricsSink) Executions() *prometheus.CounterVec {
	return s.executions
}
