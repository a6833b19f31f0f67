package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkupb/campus-parking/internal/model"
	"github.com/parkupb/campus-parking/internal/queue"
	"github.com/parkupb/campus-parking/internal/repository"
	"github.com/parkupb/campus-parking/internal/service"
)

// ReservationHandler serves reservation creation, cancellation and the
// user's own history.
type ReservationHandler struct {
	Engine *service.Engine
	Users  *repository.UserRepo
	Spots  *repository.SpotRepo
}

func NewReservationHandler(engine *service.Engine, users *repository.UserRepo, spots *repository.SpotRepo) *ReservationHandler {
	if engine == nil || users == nil || spots == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Engine: engine, Users: users, Spots: spots}
}

type createReservationReq struct {
	SpotID    uint64 `json:"spot_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Create reserves a spot for the authenticated user.  On success a
// reservation.confirmed event is published best-effort; a broker outage
// never fails the request.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SpotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "spot_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.Create(ctx, actor, req.SpotID, req.StartTime, req.EndTime)
	if err != nil {
		return respondErr(c, err)
	}

	go h.publishConfirmed(*res)

	return c.JSON(http.StatusCreated, reservationJSON(*res))
}

// publishConfirmed enriches the reservation with user and spot details
// and publishes it to the broker.
func (h *ReservationHandler) publishConfirmed(res model.Reservation) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ev := queue.ReservationConfirmedEvent{
		ReservationID: res.ID,
		UserID:        res.UserID,
		SpotID:        res.SpotID,
		StartTime:     res.StartTime.UTC().Format(time.RFC3339),
		EndTime:       res.EndTime.UTC().Format(time.RFC3339),
		CreatedAt:     res.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u, err := h.Users.GetByID(ctx, res.UserID); err == nil {
		ev.UserEmail = u.Email
	}
	if s, err := h.Spots.GetByID(ctx, res.SpotID); err == nil {
		ev.SpotNumber = s.SpotNumber
		ev.LotID = s.LotID
	}
	_ = queue.PublishReservationConfirmed(ctx, ev)
}

// Cancel cancels an active reservation owned by the actor (admins may
// cancel anyone's).
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.Cancel(ctx, actor, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, reservationJSON(*res))
}

// My returns the authenticated user's reservation history.
func (h *ReservationHandler) My(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	reservations, err := h.Engine.ListUserReservations(ctx, uid)
	if err != nil {
		return respondErr(c, err)
	}
	out := make([]echo.Map, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, reservationJSON(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}
