package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/parkupb/campus-parking/internal/repository"
)

// LotStats is a point-in-time occupancy summary, campus-wide or for a
// single lot.  A spot counts as free only when nobody is parked on it
// and no reservation window covers the current moment.
type LotStats struct {
	TotalSpots          int       `json:"total_spots"`
	Free                int       `json:"free"`
	Occupied            int       `json:"occupied"`
	Reserved            int       `json:"reserved"`
	AvailabilityPercent float64   `json:"availability_percent"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HourlyOccupancy is one bucket of the 24-hour occupancy histogram.
// Probability is the fraction of spot-minutes in that hour of day that
// were covered by a non-cancelled reservation over the lookback window.
type HourlyOccupancy struct {
	Hour        int     `json:"hour"`
	Probability float64 `json:"probability"`
	Percent     float64 `json:"percent"`
}

// StatsService computes read-only aggregates on top of the engine's
// state.  It sweeps through the engine first so the numbers reflect
// reconciled state, never stale rows.
type StatsService struct {
	Engine *Engine
	Lots   *repository.LotRepo
}

func NewStatsService(engine *Engine, lots *repository.LotRepo) *StatsService {
	return &StatsService{Engine: engine, Lots: lots}
}

// Stats returns the current occupancy summary.  A nil lotID aggregates
// the whole campus; an unknown lot fails with NOT_FOUND.
func (s *StatsService) Stats(ctx context.Context, lotID *uint64) (*LotStats, error) {
	if _, _, err := s.Engine.Sweep(ctx); err != nil {
		return nil, err
	}
	if lotID != nil {
		if _, err := s.Lots.GetByID(ctx, *lotID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fail(CodeNotFound)
			}
			return nil, internalErr(err)
		}
	}

	now := s.Engine.now()
	spots, err := s.Engine.Spots.List(ctx, lotID)
	if err != nil {
		return nil, internalErr(err)
	}

	out := &LotStats{TotalSpots: len(spots), UpdatedAt: now}
	for _, spot := range spots {
		switch {
		case spot.IsOccupied:
			out.Occupied++
		case spot.ReservedAt(now):
			out.Reserved++
		default:
			out.Free++
		}
	}
	if out.TotalSpots > 0 {
		out.AvailabilityPercent = roundTo(float64(out.Free)/float64(out.TotalSpots)*100, 1)
	}
	return out, nil
}

// HourlyOccupancy builds the 24-bucket histogram over the past days
// full days.  Each non-cancelled reservation contributes the minutes it
// covers, clamped to the lookback window, to the hour-of-day buckets it
// spans; the denominator is spots x 60 minutes x days.
func (s *StatsService) HourlyOccupancy(ctx context.Context, lotID *uint64, days int) ([]HourlyOccupancy, error) {
	if days <= 0 {
		days = 7
	}
	if _, _, err := s.Engine.Sweep(ctx); err != nil {
		return nil, err
	}
	if lotID != nil {
		if _, err := s.Lots.GetByID(ctx, *lotID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fail(CodeNotFound)
			}
			return nil, internalErr(err)
		}
	}

	now := s.Engine.now()
	from := now.Add(-time.Duration(days) * 24 * time.Hour)

	spotIDs, err := s.Engine.Spots.IDsByLot(ctx, lotID)
	if err != nil {
		return nil, internalErr(err)
	}
	reservations, err := s.Engine.Reservations.ListInWindow(ctx, lotID, from, now)
	if err != nil {
		return nil, internalErr(err)
	}

	var minutes [24]float64
	for _, res := range reservations {
		start, end := res.StartTime, res.EndTime
		if start.Before(from) {
			start = from
		}
		if end.After(now) {
			end = now
		}
		for t := start; t.Before(end); {
			hourEnd := t.Truncate(time.Hour).Add(time.Hour)
			if hourEnd.After(end) {
				hourEnd = end
			}
			minutes[t.Hour()] += hourEnd.Sub(t).Minutes()
			t = hourEnd
		}
	}

	denom := float64(len(spotIDs) * 60 * days)
	out := make([]HourlyOccupancy, 24)
	for h := 0; h < 24; h++ {
		out[h].Hour = h
		if denom > 0 {
			p := minutes[h] / denom
			out[h].Probability = roundTo(p, 6)
			out[h].Percent = roundTo(p*100, 2)
		}
	}
	return out, nil
}

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
