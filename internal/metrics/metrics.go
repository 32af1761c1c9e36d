package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	slotQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "slot_queries_total",
			Help:      "Count of availability queries by kind.",
		},
		[]string{"kind"},
	)

	dragOutcome = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "drag_outcome_total",
			Help:      "Count of finished drag gestures by outcome.",
		},
		[]string{"outcome"},
	)

	rescheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "reschedule_total",
			Help:      "Count of reschedule writes by result.",
		},
		[]string{"result"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	waitlistMatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "waitlist_entries_total",
			Help:      "Count of waiting-list entries processed on freed intervals by result.",
		},
		[]string{"result"},
	)

	freedMinutes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bookcal",
			Name:      "freed_interval_minutes",
			Help:      "Length of freed intervals handed to the waiting-list matcher.",
			Buckets:   []float64{15, 30, 45, 60, 90, 120, 240, 480},
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(slotQueries, dragOutcome, rescheduled, bookingCancelled, waitlistMatch, freedMinutes, httpRequests)
	})
}

func IncSlotQuery(kind string) {
	slotQueries.WithLabelValues(kind).Inc()
}

func IncDragOutcome(outcome string) {
	dragOutcome.WithLabelValues(outcome).Inc()
}

func IncReschedule(result string) {
	rescheduled.WithLabelValues(result).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

// AddWaitlistResult records one matcher run.
func AddWaitlistResult(notified, skipped int) {
	waitlistMatch.WithLabelValues("notified").Add(float64(notified))
	waitlistMatch.WithLabelValues("skipped").Add(float64(skipped))
}

func ObserveFreedInterval(minutes int) {
	freedMinutes.Observe(float64(minutes))
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
