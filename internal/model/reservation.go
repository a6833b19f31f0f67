package model

import "time"

// Reservation statuses.  Active is the only status considered by overlap
// and occupancy checks; cancelled and finished are terminal.
const (
	ReservationActive    = "active"
	ReservationCancelled = "cancelled"
	ReservationFinished  = "finished"
)

// Reservation records one user's claim on one spot for a time interval.
// Intervals are half-open [StartTime, EndTime): two reservations whose
// endpoints touch do not overlap.
//
// Lifecycle: created active; transitions to finished when the engine
// observes EndTime <= now, or to cancelled by explicit cancellation or
// the no-show sweep.  Terminal statuses never transition again.
type Reservation struct {
	ID        uint64    // reservations.id
	UserID    uint64    // reservations.user_id
	SpotID    uint64    // reservations.spot_id
	StartTime time.Time // reservations.start_time (UTC)
	EndTime   time.Time // reservations.end_time (UTC)
	Status    string    // reservations.status
	CreatedAt time.Time // reservations.created_at
}

// Covers reports whether the reservation interval contains the instant.
func (r Reservation) Covers(t time.Time) bool {
	return !r.StartTime.After(t) && r.EndTime.After(t)
}

// Overlaps reports whether the reservation overlaps [start, end) using
// the half-open overlap test end_time > start AND start_time < end.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.EndTime.After(start) && r.StartTime.Before(end)
}
