package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Recorder on client_golang
// collectors registered in a private registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry
	tests    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	groups   *prometheus.CounterVec
	programs *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers
// them in a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		tests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cctests_tests_total",
				Help: "Number of tests by outcome",
			},
			[]string{"program", "group", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cctests_test_duration_seconds",
				Help:    "Duration of test bodies",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"program", "group"},
		),
		groups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cctests_groups_total",
				Help: "Number of finished groups by result",
			},
			[]string{"program", "result"},
		),
		programs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cctests_programs_total",
				Help: "Number of finished programs by exit code",
			},
			[]string{"program", "code"},
		),
	}
	m.registry.MustRegister(m.tests, m.duration, m.groups, m.programs)
	return m
}

func (m *PrometheusMetrics) RecordTest(
	program, group, outcome string, duration time.Duration,
) {
	m.tests.WithLabelValues(program, group, outcome).Inc()
	m.duration.WithLabelValues(program, group).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordGroup(
	program, group string, passed, skipped bool,
) {
	result := "failed"
	switch {
	case skipped:
		result = "skipped"
	case passed:
		result = "passed"
	}
	m.groups.WithLabelValues(program, result).Inc()
}

func (m *PrometheusMetrics) RecordProgram(program string, exitCode int) {
	m.programs.WithLabelValues(program, strconv.Itoa(exitCode)).Inc()
}

// Registry returns the registry holding the collectors.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus
// exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
