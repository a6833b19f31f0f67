package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkupb/campus-parking/internal/geo"
	"github.com/parkupb/campus-parking/internal/model"
	"github.com/parkupb/campus-parking/internal/repository"
)

// LotHandler implements the admin lot management endpoints and the
// public lot listing.  Creating or re-laying a lot generates its spot
// grid from the four corners in one transaction.
type LotHandler struct {
	DB    *sql.DB
	Lots  *repository.LotRepo
	Spots *repository.SpotRepo
}

func NewLotHandler(db *sql.DB, lots *repository.LotRepo, spots *repository.SpotRepo) *LotHandler {
	if db == nil || lots == nil || spots == nil {
		panic("nil dependency passed to NewLotHandler")
	}
	return &LotHandler{DB: db, Lots: lots, Spots: spots}
}

type lotReq struct {
	Name       string       `json:"name"`
	CampusZone string       `json:"campus_zone"`
	Corners    []geo.Corner `json:"corners"`
	TotalSpots int          `json:"total_spots"`
	Columns    int          `json:"columns"`
}

func lotJSON(l model.ParkingLot) echo.Map {
	return echo.Map{
		"id":              l.ID,
		"name":            l.Name,
		"campus_zone":     l.CampusZone,
		"lat_center":      l.LatCenter,
		"lng_center":      l.LngCenter,
		"total_spots":     l.TotalSpots,
		"grid_columns":    l.GridColumns,
		"polygon_geojson": l.PolygonGeoJSON,
	}
}

// Create builds a lot from four corners and generates its spot grid.
func (h *LotHandler) Create(c echo.Context) error {
	var req lotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	if req.Columns == 0 {
		req.Columns = 1
	}
	layout, err := geo.BuildGrid(req.Corners, req.TotalSpots, req.Columns)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lot := model.ParkingLot{
		Name:           req.Name,
		CampusZone:     strings.TrimSpace(req.CampusZone),
		LatCenter:      layout.LatCenter,
		LngCenter:      layout.LngCenter,
		TotalSpots:     req.TotalSpots,
		GridColumns:    req.Columns,
		PolygonGeoJSON: layout.PolygonGeoJSON,
	}
	if err := h.Lots.CreateTx(ctx, tx, &lot); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create lot failed"})
	}
	if err := h.Spots.CreateBulkTx(ctx, tx, placementsToSpots(lot.ID, layout)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create spots failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{
		"lot":           lotJSON(lot),
		"created_spots": len(layout.Spots),
	})
}

// Update rewrites lot metadata.  When corners and total_spots are
// supplied the grid is regenerated: existing spots and their
// reservations are replaced wholesale.
func (h *LotHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}
	var req lotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	lot, err := h.Lots.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		lot.Name = name
	}
	if zone := strings.TrimSpace(req.CampusZone); zone != "" {
		lot.CampusZone = zone
	}

	regen := len(req.Corners) > 0 || req.TotalSpots > 0
	var layout *geo.Layout
	if regen {
		if len(req.Corners) < 4 || req.TotalSpots <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "corners and total_spots required to regenerate"})
		}
		cols := req.Columns
		if cols == 0 {
			cols = lot.GridColumns
		}
		layout, err = geo.BuildGrid(req.Corners, req.TotalSpots, cols)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		lot.LatCenter = layout.LatCenter
		lot.LngCenter = layout.LngCenter
		lot.TotalSpots = req.TotalSpots
		lot.GridColumns = cols
		lot.PolygonGeoJSON = layout.PolygonGeoJSON
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Lots.UpdateTx(ctx, tx, &lot); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update lot failed"})
	}
	if regen {
		if err := h.Spots.DeleteByLotTx(ctx, tx, lot.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "replace spots failed"})
		}
		if err := h.Spots.CreateBulkTx(ctx, tx, placementsToSpots(lot.ID, layout)); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "replace spots failed"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	return c.JSON(http.StatusOK, lotJSON(lot))
}

// Delete removes a lot with its spots and reservations.
func (h *LotHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, err := h.Lots.GetByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Lots.DeleteTx(ctx, tx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	return c.NoContent(http.StatusNoContent)
}

// List returns all lots for the map.
func (h *LotHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	lots, err := h.Lots.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]echo.Map, 0, len(lots))
	for _, l := range lots {
		out = append(out, lotJSON(l))
	}
	return c.JSON(http.StatusOK, echo.Map{"lots": out})
}

// Get returns one lot with its spots.
func (h *LotHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	lot, err := h.Lots.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	spots, err := h.Spots.List(ctx, &id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	spotsOut := make([]echo.Map, 0, len(spots))
	for _, s := range spots {
		spotsOut = append(spotsOut, spotJSON(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"lot": lotJSON(lot), "spots": spotsOut})
}

func placementsToSpots(lotID uint64, layout *geo.Layout) []model.ParkingSpot {
	spots := make([]model.ParkingSpot, 0, len(layout.Spots))
	for _, p := range layout.Spots {
		spots = append(spots, model.ParkingSpot{
			LotID:          lotID,
			SpotNumber:     p.SpotNumber,
			Latitude:       p.Latitude,
			Longitude:      p.Longitude,
			PolygonGeoJSON: p.PolygonGeoJSON,
		})
	}
	return spots
}
