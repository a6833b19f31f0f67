package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkupb/campus-parking/internal/model"
	"github.com/parkupb/campus-parking/internal/repository"
	"github.com/parkupb/campus-parking/internal/service"
)

// SpotHandler serves the spot map endpoints and the occupancy toggle.
// Reads sweep through the engine first so a spot whose reservation
// expired a minute ago already shows as free.
type SpotHandler struct {
	Engine *service.Engine
	Spots  *repository.SpotRepo
}

func NewSpotHandler(engine *service.Engine, spots *repository.SpotRepo) *SpotHandler {
	if engine == nil || spots == nil {
		panic("nil dependency passed to NewSpotHandler")
	}
	return &SpotHandler{Engine: engine, Spots: spots}
}

// List returns spots for the map, optionally filtered by lot_id and by
// state (free, occupied or reserved, evaluated at request time).
func (h *SpotHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, _, err := h.Engine.Sweep(ctx); err != nil {
		return respondErr(c, err)
	}

	var lotID *uint64
	if raw := c.QueryParam("lot_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot_id"})
		}
		lotID = &id
	}
	state := strings.ToLower(c.QueryParam("state"))
	switch state {
	case "", "free", "occupied", "reserved":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "state must be free, occupied or reserved"})
	}

	spots, err := h.Spots.List(ctx, lotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	now := h.Engine.Now().UTC()
	out := make([]echo.Map, 0, len(spots))
	for _, s := range spots {
		if state != "" && spotState(s, now) != state {
			continue
		}
		out = append(out, spotJSON(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"spots": out})
}

func spotState(s model.ParkingSpot, now time.Time) string {
	switch {
	case s.IsOccupied:
		return "occupied"
	case s.ReservedAt(now):
		return "reserved"
	default:
		return "free"
	}
}

// Get returns one spot.
func (h *SpotHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid spot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, _, err := h.Engine.Sweep(ctx); err != nil {
		return respondErr(c, err)
	}
	spot, err := h.Spots.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": string(service.CodeSpotNotFound)})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, spotJSON(spot))
}

// Toggle flips the spot's occupancy for the authenticated user.
func (h *SpotHandler) Toggle(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid spot id"})
	}
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	result, err := h.Engine.Toggle(ctx, actor, id)
	if err != nil {
		return respondErr(c, err)
	}
	body := echo.Map{"spot": spotJSON(result.Spot)}
	if result.Warning != nil {
		body["warning"] = result.Warning
	}
	return c.JSON(http.StatusOK, body)
}

// History lists a spot's reservations (admin view).
func (h *SpotHandler) History(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid spot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	reservations, err := h.Engine.ListSpotReservations(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	out := make([]echo.Map, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, reservationJSON(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Create adds a single spot to a lot, outside the generated grid.  Used
// for the odd spot that the four-corner layout cannot place.
func (h *SpotHandler) Create(c echo.Context) error {
	var req struct {
		LotID          uint64  `json:"lot_id"`
		SpotNumber     string  `json:"spot_number"`
		Latitude       float64 `json:"latitude"`
		Longitude      float64 `json:"longitude"`
		PolygonGeoJSON string  `json:"polygon_geojson"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.SpotNumber = strings.TrimSpace(req.SpotNumber)
	if req.LotID == 0 || req.SpotNumber == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lot_id and spot_number required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	spot := model.ParkingSpot{
		LotID:          req.LotID,
		SpotNumber:     req.SpotNumber,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		PolygonGeoJSON: req.PolygonGeoJSON,
	}
	if err := h.Spots.CreateTx(ctx, tx, &spot); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create spot failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	return c.JSON(http.StatusCreated, spotJSON(spot))
}

// Update rewrites a spot's administrative fields.
func (h *SpotHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid spot id"})
	}
	var req struct {
		SpotNumber     string   `json:"spot_number"`
		Latitude       *float64 `json:"latitude"`
		Longitude      *float64 `json:"longitude"`
		PolygonGeoJSON string   `json:"polygon_geojson"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	spot, err := h.Spots.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": string(service.CodeSpotNotFound)})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if n := strings.TrimSpace(req.SpotNumber); n != "" {
		spot.SpotNumber = n
	}
	if req.Latitude != nil {
		spot.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		spot.Longitude = *req.Longitude
	}
	if req.PolygonGeoJSON != "" {
		spot.PolygonGeoJSON = req.PolygonGeoJSON
	}
	if err := h.Spots.Update(ctx, &spot); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, spotJSON(spot))
}

// Delete removes a spot and its reservations.
func (h *SpotHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid spot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, err := h.Spots.GetByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": string(service.CodeSpotNotFound)})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	tx, err := h.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Spots.DeleteTx(ctx, tx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	return c.NoContent(http.StatusNoContent)
}
