package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkupb/campus-parking/internal/service"
)

// StatsHandler serves the occupancy summary and the hourly histogram.
type StatsHandler struct {
	Stats *service.StatsService
}

func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	if stats == nil {
		panic("nil dependency passed to NewStatsHandler")
	}
	return &StatsHandler{Stats: stats}
}

func optionalLotID(c echo.Context) (*uint64, error) {
	raw := c.QueryParam("lot_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Summary returns current totals, campus-wide or per lot.
func (h *StatsHandler) Summary(c echo.Context) error {
	lotID, err := optionalLotID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot_id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	stats, err := h.Stats.Stats(ctx, lotID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Hourly returns the 24-bucket occupancy histogram over the lookback
// window given by ?days (default 7).
func (h *StatsHandler) Hourly(c echo.Context) error {
	lotID, err := optionalLotID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot_id"})
	}
	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 90 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "days must be between 1 and 90"})
		}
		days = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	hist, err := h.Stats.HourlyOccupancy(ctx, lotID, days)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"days": days, "hours": hist})
}
