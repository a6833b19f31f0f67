package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/parkupb/campus-parking/internal/metrics"
	"github.com/parkupb/campus-parking/internal/model"
)

// UpcomingWarning is attached to a successful occupy when someone else
// holds an upcoming reservation on the spot, so the parker knows when
// they have to be gone.
type UpcomingWarning struct {
	Type            string    `json:"type"`
	MustLeaveBefore time.Time `json:"must_leave_before"`
}

// ToggleResult is the outcome of a successful occupancy toggle.
type ToggleResult struct {
	Spot    model.ParkingSpot
	Warning *UpcomingWarning
}

// Toggle flips the occupancy of a spot on behalf of the actor.
//
// A free spot becomes occupied by the actor unless the actor already
// occupies some other spot (SPOT_ALREADY_OCCUPIED) or another user's
// reservation covers the current moment (RESERVED_FOR_ANOTHER_USER,
// carrying the blocking reservation).  An occupied spot is released by
// its occupant or by an admin; anyone else gets FORBIDDEN.
//
// Occupying a spot the actor has reserved for right now is what spares
// the reservation from the no-show sweep.
func (e *Engine) Toggle(ctx context.Context, actor Actor, spotID uint64) (*ToggleResult, error) {
	now := e.now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, internalErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, _, err := e.sweepTx(ctx, tx, now); err != nil {
		return nil, internalErr(err)
	}

	spot, err := e.Spots.GetByIDTx(ctx, tx, spotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fail(CodeSpotNotFound)
		}
		return nil, internalErr(err)
	}

	if spot.IsOccupied {
		if spot.OccupiedBy != nil && *spot.OccupiedBy != actor.ID && !actor.isAdmin() {
			return nil, fail(CodeForbidden)
		}
		if err := e.Spots.SetFreeTx(ctx, tx, spotID); err != nil {
			return nil, internalErr(err)
		}
		spot.IsOccupied = false
		spot.OccupiedBy = nil
		if err := tx.Commit(); err != nil {
			return nil, internalErr(err)
		}
		committed = true
		metrics.IncOccupancyToggled("release")
		return &ToggleResult{Spot: spot}, nil
	}

	// One physical car per user: a second occupy is a client bug.
	if _, err := e.Spots.OccupiedByUserTx(ctx, tx, actor.ID); err == nil {
		return nil, fail(CodeSpotAlreadyOccupied)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalErr(err)
	}

	current, err := e.Reservations.CurrentActiveTx(ctx, tx, spotID, now)
	switch {
	case err == nil:
		// admins may park over someone else's window
		if current.UserID != actor.ID && !actor.isAdmin() {
			domErr := fail(CodeReservedForAnotherUser)
			domErr.Conflict = &current
			return nil, domErr
		}
	case errors.Is(err, sql.ErrNoRows):
		// no covering reservation, walk-up parking is fine
	default:
		return nil, internalErr(err)
	}

	if err := e.Spots.SetOccupiedTx(ctx, tx, spotID, actor.ID); err != nil {
		return nil, internalErr(err)
	}
	uid := actor.ID
	spot.IsOccupied = true
	spot.OccupiedBy = &uid

	var warning *UpcomingWarning
	next, err := e.Reservations.NextUpcomingTx(ctx, tx, spotID, now)
	switch {
	case err == nil:
		if next.UserID != actor.ID {
			warning = &UpcomingWarning{
				Type:            "UPCOMING_RESERVATION",
				MustLeaveBefore: next.StartTime,
			}
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, internalErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, internalErr(err)
	}
	committed = true
	metrics.IncOccupancyToggled("occupy")
	return &ToggleResult{Spot: spot, Warning: warning}, nil
}
