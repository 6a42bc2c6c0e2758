// Package metrics registers the Prometheus instruments for the visit
// workflow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	VisitTransitions  *prometheus.CounterVec
	GeofenceOutcomes  *prometheus.CounterVec
	RequestsCreated   prometheus.Counter
	RequestsReconcile *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		VisitTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kutumb_visit_transitions_total",
			Help: "Visit lifecycle transitions by resulting status",
		}, []string{"status"}),
		GeofenceOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kutumb_geofence_checks_total",
			Help: "Geofence evaluations by outcome",
		}, []string{"outcome"}),
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kutumb_visit_requests_created_total",
			Help: "Visit requests accepted by intake",
		}),
		RequestsReconcile: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kutumb_visit_request_reconciliations_total",
			Help: "Request-to-visit reconciliation results",
		}, []string{"result"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kutumb_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveVisitTransition records a lifecycle transition into the given status.
func (m *Metrics) ObserveVisitTransition(status string) {
	m.VisitTransitions.WithLabelValues(status).Inc()
}

// ObserveGeofence records one geofence evaluation outcome.
func (m *Metrics) ObserveGeofence(outcome string) {
	m.GeofenceOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveReconciliation records the result of a reconciliation attempt.
func (m *Metrics) ObserveReconciliation(result string) {
	m.RequestsReconcile.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, status string, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
}
