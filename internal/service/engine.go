package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/parkupb/campus-parking/internal/metrics"
	"github.com/parkupb/campus-parking/internal/model"
	"github.com/parkupb/campus-parking/internal/repository"
)

// DefaultGrace is how long after a reservation's start the reserving
// user may arrive before the no-show sweep cancels the reservation.
const DefaultGrace = 15 * time.Minute

// timeLayouts are the accepted client representations for reservation
// boundaries.  RFC3339 is preferred; the bare layouts cover the values
// the map frontend posts.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Actor is the authenticated principal on whose behalf an operation
// runs, as supplied by the session layer.
type Actor struct {
	ID    uint64
	Email string
	Role  string
}

func (a Actor) isAdmin() bool { return a.Role == model.RoleAdmin }

// Engine is the reservation/occupancy reconciliation engine.  There is
// no background scheduler: the expiry and no-show sweeps run at the
// start of every entry point that reads or mutates reservation state,
// inside the same transaction as the operation itself, so state
// self-corrects as long as requests keep arriving.
//
// Now supplies the clock and defaults to time.Now; tests inject a fixed
// clock through it.
type Engine struct {
	DB           *sql.DB
	Spots        *repository.SpotRepo
	Reservations *repository.ReservationRepo
	Now          func() time.Time
	Grace        time.Duration
}

// NewEngine constructs an Engine with the default clock and grace
// period.  All dependencies must be non-nil.
func NewEngine(db *sql.DB, spots *repository.SpotRepo, reservations *repository.ReservationRepo) *Engine {
	if db == nil || spots == nil || reservations == nil {
		panic("nil dependency passed to NewEngine")
	}
	return &Engine{
		DB:           db,
		Spots:        spots,
		Reservations: reservations,
		Now:          time.Now,
		Grace:        DefaultGrace,
	}
}

func (e *Engine) now() time.Time { return e.Now().UTC().Truncate(time.Second) }

// ParseTime parses a client-supplied timestamp into UTC.
func ParseTime(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// IsValidTimeframe reports whether start strictly precedes end.
func IsValidTimeframe(start, end time.Time) bool { return start.Before(end) }

// Create validates and inserts a reservation for the actor on the given
// spot.  The checks run in a fixed order, each short-circuiting with its
// own code: INVALID_DATETIME, INVALID_TIMEFRAME, SPOT_NOT_FOUND,
// SPOT_OCCUPIED (spot held by someone else right now), SPOT_OVERLAP
// (another active reservation on the spot), EXISTING_RESERVATION_OVERLAP
// (the actor already reserved an overlapping interval anywhere).  The
// sweeps, the checks, the insert and the window refresh form one atomic
// unit; no partial reservation can be observed.
func (e *Engine) Create(ctx context.Context, actor Actor, spotID uint64, startRaw, endRaw string) (*model.Reservation, error) {
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

	start, err := ParseTime(startRaw)
	if err != nil {
		return nil, fail(CodeInvalidDatetime)
	}
	end, err := ParseTime(endRaw)
	if err != nil {
		return nil, fail(CodeInvalidDatetime)
	}
	if !IsValidTimeframe(start, end) {
		return nil, fail(CodeInvalidTimeframe)
	}

	spot, err := e.Spots.GetByIDTx(ctx, tx, spotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fail(CodeSpotNotFound)
		}
		return nil, internalErr(err)
	}
	if spot.IsOccupied && (spot.OccupiedBy == nil || *spot.OccupiedBy != actor.ID) {
		return nil, fail(CodeSpotOccupied)
	}

	overlap, err := e.Reservations.SpotOverlapExistsTx(ctx, tx, spotID, start, end)
	if err != nil {
		return nil, internalErr(err)
	}
	if overlap {
		return nil, fail(CodeSpotOverlap)
	}
	overlap, err = e.Reservations.UserOverlapExistsTx(ctx, tx, actor.ID, start, end)
	if err != nil {
		return nil, internalErr(err)
	}
	if overlap {
		return nil, fail(CodeUserOverlap)
	}

	res := &model.Reservation{
		UserID:    actor.ID,
		SpotID:    spotID,
		StartTime: start,
		EndTime:   end,
		Status:    model.ReservationActive,
	}
	if err := e.Reservations.CreateTx(ctx, tx, res); err != nil {
		return nil, internalErr(err)
	}
	if err := e.refreshWindowTx(ctx, tx, spotID, now); err != nil {
		return nil, internalErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, internalErr(err)
	}
	committed = true
	metrics.IncReservationCreated()
	return res, nil
}

// Cancel transitions an active reservation to cancelled.  Only the
// owner or an admin may cancel; cancelling a finished or already
// cancelled reservation is rejected with RESERVATION_NOT_ACTIVE so that
// terminal statuses stay final.
func (e *Engine) Cancel(ctx context.Context, actor Actor, reservationID uint64) (*model.Reservation, error) {
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

	res, err := e.Reservations.GetByIDTx(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fail(CodeNotFound)
		}
		return nil, internalErr(err)
	}
	if res.UserID != actor.ID && !actor.isAdmin() {
		return nil, fail(CodeForbidden)
	}
	if res.Status != model.ReservationActive {
		return nil, fail(CodeReservationNotActive)
	}

	if err := e.Reservations.SetStatusTx(ctx, tx, res.ID, model.ReservationCancelled); err != nil {
		return nil, internalErr(err)
	}
	res.Status = model.ReservationCancelled
	if err := e.refreshWindowTx(ctx, tx, res.SpotID, now); err != nil {
		return nil, internalErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, internalErr(err)
	}
	committed = true
	if actor.isAdmin() && res.UserID != actor.ID {
		metrics.IncReservationCancelled("admin")
	} else {
		metrics.IncReservationCancelled("user")
	}
	return &res, nil
}

// FinalizeExpired runs the expiry sweep in its own transaction and
// returns how many reservations were finished.
func (e *Engine) FinalizeExpired(ctx context.Context) (int, error) {
	now := e.now()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, internalErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	n, err := e.finalizeExpiredTx(ctx, tx, now)
	if err != nil {
		return 0, internalErr(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, internalErr(err)
	}
	committed = true
	return n, nil
}

// CancelNoShows runs the no-show sweep in its own transaction and
// returns how many reservations were cancelled.
func (e *Engine) CancelNoShows(ctx context.Context) (int, error) {
	now := e.now()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, internalErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	n, err := e.cancelNoShowsTx(ctx, tx, now)
	if err != nil {
		return 0, internalErr(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, internalErr(err)
	}
	committed = true
	return n, nil
}

// Sweep runs both reconciliation passes in one transaction.  Read-only
// entry points (listings, stats) call this before querying so the state
// they expose is current.
func (e *Engine) Sweep(ctx context.Context) (finished, noShows int, err error) {
	now := e.now()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, internalErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	finished, noShows, err = e.sweepTx(ctx, tx, now)
	if err != nil {
		return 0, 0, internalErr(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, internalErr(err)
	}
	committed = true
	return finished, noShows, nil
}

// sweepTx runs the expiry sweep followed by the no-show sweep.  Expiry
// first: a reservation that already ended must finish rather than count
// as a no-show.
func (e *Engine) sweepTx(ctx context.Context, tx *sql.Tx, now time.Time) (finished, noShows int, err error) {
	if finished, err = e.finalizeExpiredTx(ctx, tx, now); err != nil {
		return 0, 0, err
	}
	if noShows, err = e.cancelNoShowsTx(ctx, tx, now); err != nil {
		return 0, 0, err
	}
	return finished, noShows, nil
}

// finalizeExpiredTx transitions every active reservation with
// end <= now to finished in one batch and refreshes the window of every
// touched spot.  Re-running finds nothing new to do.
func (e *Engine) finalizeExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time) (int, error) {
	n, err := e.Reservations.FinishDueCountTx(ctx, tx, now)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	spotIDs, err := e.Reservations.FinishDueTx(ctx, tx, now)
	if err != nil {
		return 0, err
	}
	for _, sid := range spotIDs {
		if err := e.refreshWindowTx(ctx, tx, sid, now); err != nil {
			return 0, err
		}
	}
	metrics.AddReservationsFinished(n)
	return n, nil
}

// cancelNoShowsTx cancels every active reservation whose start passed
// more than the grace period ago unless the reserving user occupies the
// reserved spot itself.  Occupying a different spot does not count as
// showing up.
func (e *Engine) cancelNoShowsTx(ctx context.Context, tx *sql.Tx, now time.Time) (int, error) {
	cutoff := now.Add(-e.Grace)
	candidates, err := e.Reservations.NoShowCandidatesTx(ctx, tx, cutoff)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	touched := make(map[uint64]struct{})
	for _, res := range candidates {
		spot, err := e.Spots.GetByIDTx(ctx, tx, res.SpotID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue // spot deleted underneath; reservation is unservable anyway
			}
			return 0, err
		}
		if spot.IsOccupied && spot.OccupiedBy != nil && *spot.OccupiedBy == res.UserID {
			continue // the user is parked; reservation stands
		}
		if err := e.Reservations.SetStatusTx(ctx, tx, res.ID, model.ReservationCancelled); err != nil {
			return 0, err
		}
		cancelled++
		touched[res.SpotID] = struct{}{}
		metrics.IncReservationCancelled("no_show")
	}
	for sid := range touched {
		if err := e.refreshWindowTx(ctx, tx, sid, now); err != nil {
			return 0, err
		}
	}
	return cancelled, nil
}

// refreshWindowTx recomputes the spot's cached reservation window from
// the reservations table: the active reservation covering now if any,
// else the earliest upcoming one, else cleared.  It is a pure function
// of table state at call time and never mutates reservation rows, so it
// is always safe to re-run.
func (e *Engine) refreshWindowTx(ctx context.Context, tx *sql.Tx, spotID uint64, now time.Time) error {
	res, err := e.Reservations.CurrentActiveTx(ctx, tx, spotID, now)
	if errors.Is(err, sql.ErrNoRows) {
		res, err = e.Reservations.NextUpcomingTx(ctx, tx, spotID, now)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return e.Spots.ClearWindowTx(ctx, tx, spotID)
	}
	if err != nil {
		return err
	}
	return e.Spots.SetWindowTx(ctx, tx, spotID, res.StartTime, res.EndTime)
}

// ListUserReservations returns the actor's full reservation history,
// sweeping first so expired rows show as finished.
func (e *Engine) ListUserReservations(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	if _, _, err := e.Sweep(ctx); err != nil {
		return nil, err
	}
	out, err := e.Reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalErr(err)
	}
	return out, nil
}

// ListSpotReservations returns a spot's full reservation history.
func (e *Engine) ListSpotReservations(ctx context.Context, spotID uint64) ([]model.Reservation, error) {
	if _, _, err := e.Sweep(ctx); err != nil {
		return nil, err
	}
	if _, err := e.Spots.GetByID(ctx, spotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fail(CodeSpotNotFound)
		}
		return nil, internalErr(err)
	}
	out, err := e.Reservations.ListBySpot(ctx, spotID)
	if err != nil {
		return nil, internalErr(err)
	}
	return out, nil
}
