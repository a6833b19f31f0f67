package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	var svcErr *Error
	require.True(t, errors.As(err, &svcErr), "expected *service.Error, got %v", err)
	assert.Equal(t, code, svcErr.Code)
}

func TestCreateReservation(t *testing.T) {
	now := ts(t, "2026-08-30 09:00:00")
	eng, db := newTestEngine(t, now)
	user := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	actor := Actor{ID: user, Role: "student"}

	res, err := eng.Create(testCtx(), actor, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00")
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
	assert.Equal(t, "active", res.Status)

	// upcoming reservation becomes the spot's cached window
	from, until := spotWindow(t, db, spot)
	require.NotNil(t, from)
	require.NotNil(t, until)
	assert.Equal(t, "2026-08-30 10:00:00", *from)
	assert.Equal(t, "2026-08-30 12:00:00", *until)
}

func TestCreateValidation(t *testing.T) {
	now := ts(t, "2026-08-30 09:00:00")
	eng, db := newTestEngine(t, now)
	user := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	actor := Actor{ID: user, Role: "student"}

	_, err := eng.Create(testCtx(), actor, spot, "not-a-time", "2026-08-30 12:00:00")
	requireCode(t, err, CodeInvalidDatetime)

	_, err = eng.Create(testCtx(), actor, spot, "2026-08-30 12:00:00", "2026-08-30 10:00:00")
	requireCode(t, err, CodeInvalidTimeframe)

	_, err = eng.Create(testCtx(), actor, spot, "2026-08-30 12:00:00", "2026-08-30 12:00:00")
	requireCode(t, err, CodeInvalidTimeframe)

	_, err = eng.Create(testCtx(), actor, 999, "2026-08-30 10:00:00", "2026-08-30 12:00:00")
	requireCode(t, err, CodeSpotNotFound)
}

func TestCreateOccupiedSpot(t *testing.T) {
	now := ts(t, "2026-08-30 09:00:00")
	eng, db := newTestEngine(t, now)
	ana := seedUser(t, db, "ana@stud.upb.ro")
	bob := seedUser(t, db, "bob@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	occupySpot(t, db, spot, bob)

	// occupied by someone else blocks
	_, err := eng.Create(testCtx(), Actor{ID: ana, Role: "student"}, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00")
	requireCode(t, err, CodeSpotOccupied)

	// the occupant may still reserve their own spot
	_, err = eng.Create(testCtx(), Actor{ID: bob, Role: "student"}, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00")
	require.NoError(t, err)
}

func TestCreateOverlaps(t *testing.T) {
	now := ts(t, "2026-08-30 09:00:00")
	eng, db := newTestEngine(t, now)
	ana := seedUser(t, db, "ana@stud.upb.ro")
	bob := seedUser(t, db, "bob@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot1 := seedSpot(t, db, lot, "1")
	spot2 := seedSpot(t, db, lot, "2")
	seedReservation(t, db, bob, spot1, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")

	// another user's active reservation on the same spot blocks
	_, err := eng.Create(testCtx(), Actor{ID: ana, Role: "student"}, spot1, "2026-08-30 11:00:00", "2026-08-30 13:00:00")
	requireCode(t, err, CodeSpotOverlap)

	// touching endpoints never conflict: [12:00, 13:00) after [10:00, 12:00)
	_, err = eng.Create(testCtx(), Actor{ID: ana, Role: "student"}, spot1, "2026-08-30 12:00:00", "2026-08-30 13:00:00")
	require.NoError(t, err)

	// the user's own reservation elsewhere blocks an overlapping one
	_, err = eng.Create(testCtx(), Actor{ID: bob, Role: "student"}, spot2, "2026-08-30 11:00:00", "2026-08-30 13:00:00")
	requireCode(t, err, CodeUserOverlap)

	// cancelled reservations do not count
	seedReservation(t, db, bob, spot2, "2026-08-30 14:00:00", "2026-08-30 15:00:00", "cancelled")
	_, err = eng.Create(testCtx(), Actor{ID: ana, Role: "student"}, spot2, "2026-08-30 14:00:00", "2026-08-30 15:00:00")
	require.NoError(t, err)
}

func TestCancel(t *testing.T) {
	now := ts(t, "2026-08-30 09:00:00")
	eng, db := newTestEngine(t, now)
	ana := seedUser(t, db, "ana@stud.upb.ro")
	bob := seedUser(t, db, "bob@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	resID := seedReservation(t, db, ana, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")

	_, err := eng.Cancel(testCtx(), Actor{ID: bob, Role: "student"}, resID)
	requireCode(t, err, CodeForbidden)

	_, err = eng.Cancel(testCtx(), Actor{ID: ana, Role: "student"}, 999)
	requireCode(t, err, CodeNotFound)

	res, err := eng.Cancel(testCtx(), Actor{ID: ana, Role: "student"}, resID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", res.Status)

	// terminal statuses are final
	_, err = eng.Cancel(testCtx(), Actor{ID: ana, Role: "student"}, resID)
	requireCode(t, err, CodeReservationNotActive)

	// window cleared once no active reservation remains
	from, until := spotWindow(t, db, spot)
	assert.Nil(t, from)
	assert.Nil(t, until)
}

func TestCancelByAdmin(t *testing.T) {
	now := ts(t, "2026-08-30 09:00:00")
	eng, db := newTestEngine(t, now)
	ana := seedUser(t, db, "ana@stud.upb.ro")
	admin := seedUser(t, db, "admin@upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	resID := seedReservation(t, db, ana, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")

	res, err := eng.Cancel(testCtx(), Actor{ID: admin, Role: "admin"}, resID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", res.Status)
}

func TestExpirySweep(t *testing.T) {
	now := ts(t, "2026-08-30 12:00:00")
	eng, db := newTestEngine(t, now)
	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")

	// ended exactly at now -> finished (end <= now)
	done := seedReservation(t, db, ana, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")
	// still running -> untouched
	live := seedReservation(t, db, ana, spot, "2026-08-30 12:00:00", "2026-08-30 14:00:00", "active")

	n, err := eng.FinalizeExpired(testCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "finished", reservationStatus(t, db, done))
	assert.Equal(t, "active", reservationStatus(t, db, live))

	// window now reflects the covering reservation
	from, until := spotWindow(t, db, spot)
	require.NotNil(t, from)
	assert.Equal(t, "2026-08-30 12:00:00", *from)
	assert.Equal(t, "2026-08-30 14:00:00", *until)

	// re-running finds nothing new
	n, err = eng.FinalizeExpired(testCtx())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNoShowSweep(t *testing.T) {
	eng, db := newTestEngine(t, ts(t, "2026-08-30 10:14:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	resID := seedReservation(t, db, ana, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")
	_, err := db.Exec(`UPDATE parking_spots SET reserved_from=?, reserved_until=? WHERE id=?`,
		"2026-08-30 10:00:00", "2026-08-30 12:00:00", spot)
	require.NoError(t, err)

	// inside the grace period: untouched
	n, err := eng.CancelNoShows(testCtx())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "active", reservationStatus(t, db, resID))

	// past the grace period with nobody parked: cancelled
	eng.Now = func() time.Time { return ts(t, "2026-08-30 10:16:00") }
	n, err = eng.CancelNoShows(testCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "cancelled", reservationStatus(t, db, resID))

	// the cancelled reservation no longer backs the cached window
	from, until := spotWindow(t, db, spot)
	assert.Nil(t, from)
	assert.Nil(t, until)
}

func TestNoShowSparedWhenParked(t *testing.T) {
	eng, db := newTestEngine(t, ts(t, "2026-08-30 10:16:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	bob := seedUser(t, db, "bob@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot1 := seedSpot(t, db, lot, "1")
	spot2 := seedSpot(t, db, lot, "2")
	spot3 := seedSpot(t, db, lot, "3")
	kept := seedReservation(t, db, ana, spot1, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")
	lost := seedReservation(t, db, bob, spot2, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")

	// ana is parked on her reserved spot; bob is parked on spot3, not
	// his reserved spot2, which does not count as showing up
	occupySpot(t, db, spot1, ana)
	occupySpot(t, db, spot3, bob)

	n, err := eng.CancelNoShows(testCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "active", reservationStatus(t, db, kept))
	assert.Equal(t, "cancelled", reservationStatus(t, db, lost))
}

func TestSweepOrderExpiryBeforeNoShow(t *testing.T) {
	// a reservation that already ended must finish, not count as no-show
	eng, db := newTestEngine(t, ts(t, "2026-08-30 13:00:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	resID := seedReservation(t, db, ana, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")

	finished, noShows, err := eng.Sweep(testCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, finished)
	assert.Equal(t, 0, noShows)
	assert.Equal(t, "finished", reservationStatus(t, db, resID))
}

func TestSweepIdempotent(t *testing.T) {
	eng, db := newTestEngine(t, ts(t, "2026-08-30 13:00:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	seedReservation(t, db, ana, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")
	seedReservation(t, db, ana, spot, "2026-08-30 12:30:00", "2026-08-30 14:00:00", "active")

	_, _, err := eng.Sweep(testCtx())
	require.NoError(t, err)
	finished, noShows, err := eng.Sweep(testCtx())
	require.NoError(t, err)
	assert.Zero(t, finished)
	assert.Zero(t, noShows)
}

func TestToggleOccupyAndRelease(t *testing.T) {
	eng, db := newTestEngine(t, ts(t, "2026-08-30 09:00:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	bob := seedUser(t, db, "bob@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")

	result, err := eng.Toggle(testCtx(), Actor{ID: ana, Role: "student"}, spot)
	require.NoError(t, err)
	assert.True(t, result.Spot.IsOccupied)
	require.NotNil(t, result.Spot.OccupiedBy)
	assert.Equal(t, ana, *result.Spot.OccupiedBy)
	assert.Nil(t, result.Warning)

	// someone else cannot release
	_, err = eng.Toggle(testCtx(), Actor{ID: bob, Role: "student"}, spot)
	requireCode(t, err, CodeForbidden)

	// the occupant releases
	result, err = eng.Toggle(testCtx(), Actor{ID: ana, Role: "student"}, spot)
	require.NoError(t, err)
	assert.False(t, result.Spot.IsOccupied)
	assert.Nil(t, result.Spot.OccupiedBy)
}

func TestToggleAdminRelease(t *testing.T) {
	eng, db := newTestEngine(t, ts(t, "2026-08-30 09:00:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	admin := seedUser(t, db, "admin@upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	occupySpot(t, db, spot, ana)

	result, err := eng.Toggle(testCtx(), Actor{ID: admin, Role: "admin"}, spot)
	require.NoError(t, err)
	assert.False(t, result.Spot.IsOccupied)
}

func TestToggleReservedForAnotherUser(t *testing.T) {
	// 10:10 is inside ana's grace period, so her reservation still
	// stands even though she has not parked yet
	eng, db := newTestEngine(t, ts(t, "2026-08-30 10:10:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	bob := seedUser(t, db, "bob@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	resID := seedReservation(t, db, ana, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")

	_, err := eng.Toggle(testCtx(), Actor{ID: bob, Role: "student"}, spot)
	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, CodeReservedForAnotherUser, svcErr.Code)
	require.NotNil(t, svcErr.Conflict)
	assert.Equal(t, resID, svcErr.Conflict.ID)
	assert.Equal(t, ana, svcErr.Conflict.UserID)
}

func TestToggleOwnReservationAndReturn(t *testing.T) {
	eng, db := newTestEngine(t, ts(t, "2026-08-30 10:05:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	seedReservation(t, db, ana, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")

	// the reserving user occupies during their own window
	result, err := eng.Toggle(testCtx(), Actor{ID: ana, Role: "student"}, spot)
	require.NoError(t, err)
	assert.True(t, result.Spot.IsOccupied)
	assert.Nil(t, result.Warning)
}

func TestToggleSecondOccupyRejected(t *testing.T) {
	eng, db := newTestEngine(t, ts(t, "2026-08-30 09:00:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot1 := seedSpot(t, db, lot, "1")
	spot2 := seedSpot(t, db, lot, "2")
	occupySpot(t, db, spot1, ana)

	_, err := eng.Toggle(testCtx(), Actor{ID: ana, Role: "student"}, spot2)
	requireCode(t, err, CodeSpotAlreadyOccupied)
}

func TestToggleUpcomingWarning(t *testing.T) {
	eng, db := newTestEngine(t, ts(t, "2026-08-30 09:00:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	bob := seedUser(t, db, "bob@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	seedReservation(t, db, bob, spot, "2026-08-30 11:00:00", "2026-08-30 12:00:00", "active")

	result, err := eng.Toggle(testCtx(), Actor{ID: ana, Role: "student"}, spot)
	require.NoError(t, err)
	require.NotNil(t, result.Warning)
	assert.Equal(t, "UPCOMING_RESERVATION", result.Warning.Type)
	assert.Equal(t, ts(t, "2026-08-30 11:00:00"), result.Warning.MustLeaveBefore)
}

func TestListUserReservationsSweepsFirst(t *testing.T) {
	eng, db := newTestEngine(t, ts(t, "2026-08-30 13:00:00"))
	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	seedReservation(t, db, ana, spot, "2026-08-30 10:00:00", "2026-08-30 12:00:00", "active")

	reservations, err := eng.ListUserReservations(testCtx(), ana)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, "finished", reservations[0].Status)
}

func TestParseTimeLayouts(t *testing.T) {
	for _, raw := range []string{
		"2026-08-30T10:00:00Z",
		"2026-08-30T10:00:00",
		"2026-08-30 10:00:00",
	} {
		parsed, err := ParseTime(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, ts(t, "2026-08-30 10:00:00"), parsed, raw)
	}
	_, err := ParseTime("30/08/2026")
	assert.Error(t, err)
}
