// Package queue defines the message payloads exchanged over the broker
// and the background consumer that turns them into an audit log.
package queue

// ReservationConfirmedEvent is published when a reservation is created.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	UserEmail     string `json:"user_email"`
	SpotID        uint64 `json:"spot_id"`
	SpotNumber    string `json:"spot_number"`
	LotID         uint64 `json:"lot_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	CreatedAt     string `json:"created_at"`
}
