package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pcbooking"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	reservationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_operations_total",
			Help:      "Reservation lifecycle operations by outcome.",
		},
		[]string{"op", "result"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_conflicts_total",
			Help:      "Rejected create or extend requests by resource.",
		},
		[]string{"resource"},
	)

	sweepDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_deleted_total",
			Help:      "Reservations removed by the housekeeping sweep.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservationOps, conflicts, sweepDeleted)
	})
}

// IncHTTP counts a request; status is the response class such as "2xx".
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

func IncReservationOp(op, result string) {
	reservationOps.WithLabelValues(op, result).Inc()
}

func IncConflict(resource string) {
	conflicts.WithLabelValues(resource).Inc()
}

func AddSweepDeleted(n int64) {
	if n > 0 {
		sweepDeleted.Add(float64(n))
	}
}
