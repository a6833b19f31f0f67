// Package metrics exposes prometheus counters for the reconciliation
// engine's state transitions.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campus_parking",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created.",
		},
	)

	reservationCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campus_parking",
			Name:      "reservation_cancelled_total",
			Help:      "Count of reservations cancelled, by cause.",
		},
		[]string{"cause"},
	)

	reservationFinished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campus_parking",
			Name:      "reservation_finished_total",
			Help:      "Count of reservations finalized by the expiry sweep.",
		},
	)

	occupancyToggled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campus_parking",
			Name:      "occupancy_toggle_total",
			Help:      "Count of spot occupancy transitions, by direction.",
		},
		[]string{"direction"},
	)
)

// Register registers all engine metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationCreated, reservationCancelled, reservationFinished, occupancyToggled)
	})
}

func IncReservationCreated() {
	reservationCreated.Inc()
}

// IncReservationCancelled records a cancellation; cause is "user",
// "admin" or "no_show".
func IncReservationCancelled(cause string) {
	reservationCancelled.WithLabelValues(cause).Inc()
}

func AddReservationsFinished(n int) {
	reservationFinished.Add(float64(n))
}

// IncOccupancyToggled records an occupancy transition; direction is
// "occupy" or "release".
func IncOccupancyToggled(direction string) {
	occupancyToggled.WithLabelValues(direction).Inc()
}
