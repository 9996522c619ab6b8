package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agendafacil"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of bookings created by initial status.",
		},
		[]string{"status"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejected_total",
			Help:      "Count of booking submissions rejected by reason.",
		},
		[]string{"reason"},
	)

	statusChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_changed_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"status"},
	)

	slotListDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_list_duration_seconds",
			Help:      "Time spent computing available slots.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	hoursCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "working_hours_cache_total",
			Help:      "Working hours cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingRejected, statusChanged, slotListDuration, hoursCache)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncStatusChanged(status string) {
	statusChanged.WithLabelValues(status).Inc()
}

func ObserveSlotList(started time.Time) {
	slotListDuration.Observe(time.Since(started).Seconds())
}

// IncHoursCache records a cache lookup; result is "hit", "miss" or "error".
func IncHoursCache(result string) {
	hoursCache.WithLabelValues(result).Inc()
}
