package service

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkupb/campus-parking/internal/repository"
)

func TestStatsSummary(t *testing.T) {
	now := ts(t, "2026-08-30 11:00:00")
	eng, db := newTestEngine(t, now)
	stats := NewStatsService(eng, repository.NewLotRepo(db))

	ana := seedUser(t, db, "ana@stud.upb.ro")
	bob := seedUser(t, db, "bob@stud.upb.ro")
	cara := seedUser(t, db, "cara@stud.upb.ro")
	dan := seedUser(t, db, "dan@stud.upb.ro")
	eva := seedUser(t, db, "eva@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")

	// ten spots: three occupied, two reserved right now, five free
	var spots []uint64
	for i := 0; i < 10; i++ {
		spots = append(spots, seedSpot(t, db, lot, strconv.Itoa(i+1)))
	}
	occupySpot(t, db, spots[0], ana)
	occupySpot(t, db, spots[1], bob)
	occupySpot(t, db, spots[2], cara)
	// started 10 minutes ago, still inside the grace period, so the
	// no-show sweep leaves them alone and the cached windows cover now
	for i, uid := range []uint64{dan, eva} {
		_, err := eng.Create(testCtx(), Actor{ID: uid, Role: "student"}, spots[3+i],
			"2026-08-30 10:50:00", "2026-08-30 12:00:00")
		require.NoError(t, err)
	}

	out, err := stats.Stats(testCtx(), &lot)
	require.NoError(t, err)
	assert.Equal(t, 10, out.TotalSpots)
	assert.Equal(t, 3, out.Occupied)
	assert.Equal(t, 2, out.Reserved)
	assert.Equal(t, 5, out.Free)
	assert.InDelta(t, 50.0, out.AvailabilityPercent, 0.001)
	assert.Equal(t, now, out.UpdatedAt)
}

func TestStatsUnknownLot(t *testing.T) {
	now := ts(t, "2026-08-30 11:00:00")
	eng, db := newTestEngine(t, now)
	stats := NewStatsService(eng, repository.NewLotRepo(db))

	_, err := stats.Stats(testCtx(), ptr(uint64(42)))
	requireCode(t, err, CodeNotFound)
}

func TestStatsEmptyCampus(t *testing.T) {
	now := ts(t, "2026-08-30 11:00:00")
	eng, db := newTestEngine(t, now)
	stats := NewStatsService(eng, repository.NewLotRepo(db))

	out, err := stats.Stats(testCtx(), nil)
	require.NoError(t, err)
	assert.Zero(t, out.TotalSpots)
	assert.Zero(t, out.AvailabilityPercent)
}

func TestHourlyOccupancySingleSpot(t *testing.T) {
	now := ts(t, "2026-08-30 12:00:00")
	eng, db := newTestEngine(t, now)
	stats := NewStatsService(eng, repository.NewLotRepo(db))

	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")

	// finished reservation fully covering 08:00-10:00 today
	seedReservation(t, db, ana, spot, "2026-08-30 08:00:00", "2026-08-30 10:00:00", "finished")

	hist, err := stats.HourlyOccupancy(testCtx(), &lot, 1)
	require.NoError(t, err)
	require.Len(t, hist, 24)

	// one spot, one day: those two hours are fully booked
	assert.InDelta(t, 1.0, hist[8].Probability, 1e-9)
	assert.InDelta(t, 100.0, hist[8].Percent, 1e-9)
	assert.InDelta(t, 1.0, hist[9].Probability, 1e-9)
	assert.Zero(t, hist[7].Probability)
	assert.Zero(t, hist[10].Probability)
}

func TestHourlyOccupancyClampsAndSkipsCancelled(t *testing.T) {
	now := ts(t, "2026-08-30 12:00:00")
	eng, db := newTestEngine(t, now)
	stats := NewStatsService(eng, repository.NewLotRepo(db))

	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")

	// started before the 1-day window; only the in-window part counts
	seedReservation(t, db, ana, spot, "2026-08-29 10:00:00", "2026-08-29 13:00:00", "finished")
	// cancelled reservations contribute nothing
	seedReservation(t, db, ana, spot, "2026-08-30 09:00:00", "2026-08-30 10:00:00", "cancelled")

	hist, err := stats.HourlyOccupancy(testCtx(), &lot, 1)
	require.NoError(t, err)

	// window starts 2026-08-29 12:00; hours 10 and 11 of the 29th are
	// clipped away, hour 12 remains
	assert.Zero(t, hist[10].Probability)
	assert.Zero(t, hist[11].Probability)
	assert.InDelta(t, 1.0, hist[12].Probability, 1e-9)
	assert.Zero(t, hist[9].Probability)
}

func TestHourlyOccupancyHalfHour(t *testing.T) {
	now := ts(t, "2026-08-30 12:00:00")
	eng, db := newTestEngine(t, now)
	stats := NewStatsService(eng, repository.NewLotRepo(db))

	ana := seedUser(t, db, "ana@stud.upb.ro")
	lot := seedLot(t, db, "Rectorat")
	spot := seedSpot(t, db, lot, "1")
	seedSpot(t, db, lot, "2")

	// 30 minutes on one of two spots over one day: 30/(2*60*1)
	seedReservation(t, db, ana, spot, "2026-08-30 08:00:00", "2026-08-30 08:30:00", "finished")

	hist, err := stats.HourlyOccupancy(testCtx(), &lot, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, hist[8].Probability, 1e-9)
	assert.InDelta(t, 25.0, hist[8].Percent, 1e-9)
}

func ptr[T any](v T) *T { return &v }
