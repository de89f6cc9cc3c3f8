/*
metrics.go - Prometheus metrics

PURPOSE:
  Counts sessions and submissions and times collaborator calls. Metrics
  live in their own registry so tests can build as many as they like.

METRICS:
  workforce_hub_sessions_active                  gauge
  workforce_hub_sessions_created_total{form}     counter
  workforce_hub_sessions_expired_total           counter
  workforce_hub_submissions_total{form,outcome}  counter
  workforce_hub_submission_duration_seconds{form} histogram

OUTCOMES:
  succeeded, rejected, transport_error

SEE ALSO:
  - server.go: GET /metrics
  - registry.go, sweeper.go: Session counters
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/workforce-hub/form"
)

const _namespace = "workforce_hub"

const (
	OutcomeSucceeded      = "succeeded"
	OutcomeRejected       = "rejected"
	OutcomeTransportError = "transport_error"
)

type Metrics struct {
	registry *prometheus.Registry

	sessionsActive     prometheus.Gauge
	sessionsCreated    *prometheus.CounterVec
	sessionsExpired    prometheus.Counter
	submissions        *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: _namespace,
			Name:      "sessions_active",
			Help:      "Form sessions currently held in memory.",
		}),
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: _namespace,
			Name:      "sessions_created_total",
			Help:      "Form sessions created, by form.",
		}, []string{"form"}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: _namespace,
			Name:      "sessions_expired_total",
			Help:      "Idle form sessions closed by the sweeper.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: _namespace,
			Name:      "submissions_total",
			Help:      "Collaborator calls, by form and outcome.",
		}, []string{"form", "outcome"}),
		submissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: _namespace,
			Name:      "submission_duration_seconds",
			Help:      "Collaborator call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"form"}),
	}

	m.registry.MustRegister(
		m.sessionsActive,
		m.sessionsCreated,
		m.sessionsExpired,
		m.submissions,
		m.submissionDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The methods below are nil-safe so components work without metrics.

func (m *Metrics) sessionOpened(formID string) {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsCreated.WithLabelValues(formID).Inc()
}

func (m *Metrics) sessionClosed(expired bool) {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	if expired {
		m.sessionsExpired.Inc()
	}
}

// Instrument wraps a collaborator so every call is counted and timed.
func (m *Metrics) Instrument(next form.Collaborator) form.Collaborator {
	if m == nil {
		return next
	}
	return form.CollaboratorFunc(func(ctx context.Context, sub form.Submission) (form.Reply, error) {
		start := time.Now()
		reply, err := next.SubmitRequest(ctx, sub)
		m.submissionDuration.WithLabelValues(sub.Form).Observe(time.Since(start).Seconds())

		outcome := OutcomeSucceeded
		switch {
		case err != nil:
			outcome = OutcomeTransportError
		case !reply.Successful:
			outcome = OutcomeRejected
		}
		m.submissions.WithLabelValues(sub.Form, outcome).Inc()
		return reply, err
	})
}
