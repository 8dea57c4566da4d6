package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Accept outcome labels.
const (
	AcceptOutcomeWon             = "won"
	AcceptOutcomeAlreadyEnrolled = "already_enrolled"
	AcceptOutcomeVanished        = "vanished"
	AcceptOutcomeError           = "error"
)

// MetricsService exposes Prometheus instrumentation for the enrollment
// engine. All recording methods are nil-safe so services can run without it.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	acceptTotal    *prometheus.CounterVec
	cascadeDeleted prometheus.Counter
	sweepDeleted   prometheus.Counter
	sweepDuration  prometheus.Histogram
}

// NewMetricsService registers the engine's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	acceptTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_accept_total",
		Help: "Acceptance attempts by outcome",
	}, []string{"outcome"})

	cascadeDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_cascade_deleted_applications_total",
		Help: "Applications removed by the acceptance cascade",
	})

	sweepDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registration_sweep_deleted_total",
		Help: "Reviewed registrations removed by the reaper",
	})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "registration_sweep_duration_seconds",
		Help:    "Duration of reaper sweeps",
		Buckets: prometheus.DefBuckets,
	})

	registry.MustRegister(acceptTotal, cascadeDeleted, sweepDeleted, sweepDuration)

	return &MetricsService{
		registry:       registry,
		handler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		acceptTotal:    acceptTotal,
		cascadeDeleted: cascadeDeleted,
		sweepDeleted:   sweepDeleted,
		sweepDuration:  sweepDuration,
	}
}

// Handler returns the /metrics HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// RecordAccept counts one acceptance attempt by outcome.
func (m *MetricsService) RecordAccept(outcome string) {
	if m == nil {
		return
	}
	m.acceptTotal.WithLabelValues(outcome).Inc()
}

// RecordCascade counts applications removed by the acceptance cascade.
func (m *MetricsService) RecordCascade(deleted int64) {
	if m == nil || deleted <= 0 {
		return
	}
	m.cascadeDeleted.Add(float64(deleted))
}

// RecordSweep counts a reaper sweep's deletions and duration.
func (m *MetricsService) RecordSweep(deleted int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	if deleted > 0 {
		m.sweepDeleted.Add(float64(deleted))
	}
	m.sweepDuration.Observe(elapsed.Seconds())
}
