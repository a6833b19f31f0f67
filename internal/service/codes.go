// Package service implements the reservation/occupancy reconciliation
// engine: reservation creation and cancellation, the cached window
// refresh, the opportunistic expiry and no-show sweeps, the spot
// occupancy state machine and the read-only statistics layer.  Every
// entry point runs its sweep-then-mutate sequence inside a single
// database transaction and reports failures as named, stable codes that
// the HTTP layer maps onto fixed status codes.
package service

import (
	"fmt"

	"github.com/parkupb/campus-parking/internal/model"
)

// Code identifies a domain failure.  Codes are the interface contract
// with callers; they never change once published.
type Code string

const (
	CodeInvalidDatetime        Code = "INVALID_DATETIME"
	CodeInvalidTimeframe       Code = "INVALID_TIMEFRAME"
	CodeSpotNotFound           Code = "SPOT_NOT_FOUND"
	CodeSpotOccupied           Code = "SPOT_OCCUPIED"
	CodeSpotOverlap            Code = "SPOT_OVERLAP"
	CodeUserOverlap            Code = "EXISTING_RESERVATION_OVERLAP"
	CodeNotFound               Code = "NOT_FOUND"
	CodeForbidden              Code = "FORBIDDEN"
	CodeReservationNotActive   Code = "RESERVATION_NOT_ACTIVE"
	CodeReservedForAnotherUser Code = "RESERVED_FOR_ANOTHER_USER"
	CodeSpotAlreadyOccupied    Code = "SPOT_ALREADY_OCCUPIED"
	CodeInternal               Code = "INTERNAL"
)

// Error is the failure type returned by every engine operation.  Domain
// failures carry one of the codes above; unexpected storage errors are
// wrapped under CodeInternal so callers can still distinguish "your
// request is invalid" from "the system is broken".
type Error struct {
	Code Code
	Err  error // underlying cause, nil for pure domain failures

	// Conflict carries the blocking reservation for
	// RESERVED_FOR_ANOTHER_USER failures so the caller can show the
	// occupant when the window frees up again.
	Conflict *model.Reservation
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// fail builds a pure domain failure.
func fail(code Code) *Error { return &Error{Code: code} }

// internalErr wraps an unexpected storage error.
func internalErr(err error) *Error { return &Error{Code: CodeInternal, Err: err} }
