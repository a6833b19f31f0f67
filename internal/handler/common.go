// Package handler defines the HTTP handlers.  Handlers stay thin:
// they bind and validate the request shape, call into the engine or a
// repository, and translate engine failure codes onto HTTP statuses.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/parkupb/campus-parking/internal/model"
	"github.com/parkupb/campus-parking/internal/service"
)

// getUserID extracts the user_id stored in the context by the JWT
// middleware and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getActor builds the engine principal from the authenticated context.
func getActor(c echo.Context) (service.Actor, error) {
	uid, err := getUserID(c)
	if err != nil {
		return service.Actor{}, err
	}
	role, _ := c.Get("role").(string)
	return service.Actor{ID: uid, Role: role}, nil
}

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// statusFor maps engine failure codes onto their fixed HTTP statuses.
func statusFor(code service.Code) int {
	switch code {
	case service.CodeInvalidDatetime, service.CodeInvalidTimeframe:
		return http.StatusBadRequest
	case service.CodeSpotNotFound, service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeForbidden, service.CodeReservedForAnotherUser:
		return http.StatusForbidden
	case service.CodeSpotOccupied, service.CodeSpotOverlap, service.CodeUserOverlap,
		service.CodeReservationNotActive, service.CodeSpotAlreadyOccupied:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes an engine failure as JSON.  The body always carries
// the stable code under "error"; RESERVED_FOR_ANOTHER_USER additionally
// includes the blocking reservation so clients can show when the spot
// frees up.
func respondErr(c echo.Context, err error) error {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": string(service.CodeInternal)})
	}
	if svcErr.Code == service.CodeInternal {
		c.Logger().Errorf("internal error: %v", svcErr.Err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": string(service.CodeInternal)})
	}
	body := echo.Map{"error": string(svcErr.Code)}
	if svcErr.Conflict != nil {
		body["reservation"] = reservationJSON(*svcErr.Conflict)
	}
	return c.JSON(statusFor(svcErr.Code), body)
}

// reservationJSON is the wire shape of a reservation.
func reservationJSON(r model.Reservation) echo.Map {
	return echo.Map{
		"id":         r.ID,
		"user_id":    r.UserID,
		"spot_id":    r.SpotID,
		"start_time": r.StartTime,
		"end_time":   r.EndTime,
		"status":     r.Status,
		"created_at": r.CreatedAt,
	}
}

// spotJSON is the wire shape of a spot, cached window included.
func spotJSON(s model.ParkingSpot) echo.Map {
	return echo.Map{
		"id":              s.ID,
		"lot_id":          s.LotID,
		"spot_number":     s.SpotNumber,
		"is_occupied":     s.IsOccupied,
		"occupied_by":     s.OccupiedBy,
		"reserved_from":   s.ReservedFrom,
		"reserved_until":  s.ReservedUntil,
		"latitude":        s.Latitude,
		"longitude":       s.Longitude,
		"polygon_geojson": s.PolygonGeoJSON,
	}
}
