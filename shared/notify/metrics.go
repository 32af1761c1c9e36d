package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for outgoing notifications.
type Metrics struct {
	// SentTotal counts delivery attempts by final status.
	SentTotal *prometheus.CounterVec

	// SendDuration is the time to deliver one notification, retries included.
	SendDuration prometheus.Histogram

	// Retries is the total number of retry attempts.
	Retries prometheus.Counter

	// RateLimitWaits counts 429 responses that made us back off.
	RateLimitWaits prometheus.Counter
}

// NewMetrics creates notification metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of waiting-list notifications by status",
			},
			[]string{"status"},
		),

		SendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_send_duration_seconds",
				Help:      "Time to send a notification",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5},
			},
		),

		Retries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_retries_total",
				Help:      "Total number of retry attempts",
			},
		),

		RateLimitWaits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_rate_limit_waits_total",
				Help:      "Total number of rate limit waits",
			},
		),
	}
}

func (m *Metrics) incSent(status string) {
	if m == nil {
		return
	}
	m.SentTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) observe(seconds float64) {
	if m == nil {
		return
	}
	m.SendDuration.Observe(seconds)
}

func (m *Metrics) incRetries() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

func (m *Metrics) incRateLimitWaits() {
	if m == nil {
		return
	}
	m.RateLimitWaits.Inc()
}
