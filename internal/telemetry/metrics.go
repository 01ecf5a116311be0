package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	EventsGenerated  = prometheus.NewCounter(prometheus.CounterOpts{Name: "compliance_events_generated_total", Help: "Compliance events inserted by the generator"})
	LateTransitions  = prometheus.NewCounter(prometheus.CounterOpts{Name: "compliance_events_late_total", Help: "Events swept from Due to Late"})
	Submissions      = prometheus.NewCounter(prometheus.CounterOpts{Name: "compliance_events_submitted_total", Help: "Events marked Submitted"})
	CloseoutsStarted = prometheus.NewCounter(prometheus.CounterOpts{Name: "closeouts_initialized_total", Help: "Grants whose closeout tasks were initialized"})
	RemindersSent    = prometheus.NewCounter(prometheus.CounterOpts{Name: "reminders_dispatched_total", Help: "Due-soon reminders pushed to the outbox"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "generate_rate_limit_rejects_total", Help: "Generation requests rejected by the rate limiter"})
	OutboxDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{Name: "notify_outbox_depth", Help: "Pending reminders in the Redis outbox"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			EventsGenerated,
			LateTransitions,
			Submissions,
			CloseoutsStarted,
			RemindersSent,
			RateLimitRejects,
			OutboxDepthGauge,
		)
	})
	return promhttp.Handler()
}
