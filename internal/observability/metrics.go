package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	ticketOps       *prometheus.CounterVec
	numberConflicts prometheus.Counter
	jobs            *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "service_ticket_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"path", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "service_ticket_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "service_ticket_http_errors_total",
				Help: "HTTP error responses by route, method and error code",
			},
			[]string{"path", "method", "code"},
		),
		ticketOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "service_ticket_operations_total",
				Help: "Ticket service operations by name and outcome",
			},
			[]string{"operation", "outcome"},
		),
		numberConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "service_ticket_number_conflicts_total",
				Help: "Ticket number collisions that forced a retry",
			},
		),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "service_ticket_jobs_total",
				Help: "Background jobs by type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}

	registry.MustRegister(m.requests, m.requestDuration, m.errors, m.ticketOps, m.numberConflicts, m.jobs)
	return m
}

// RecordRequest counts one served request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError counts one error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordTicketOperation counts a ticket service call. outcome is "ok" or an error code.
func (m *Metrics) RecordTicketOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.ticketOps.WithLabelValues(operation, outcome).Inc()
}

// RecordNumberConflict counts one ticket number collision.
func (m *Metrics) RecordNumberConflict() {
	if m == nil {
		return
	}
	m.numberConflicts.Inc()
}

// RecordJob counts one processed background job.
func (m *Metrics) RecordJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(jobType, outcome).Inc()
}

// Registry exposes the underlying registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
