// Package router wires HTTP routes to handlers and applies the
// middleware stack for each route group.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/parkupb/campus-parking/internal/config"
	"github.com/parkupb/campus-parking/internal/handler"
	"github.com/parkupb/campus-parking/internal/middleware"
	"github.com/parkupb/campus-parking/internal/model"
)

// Handlers collects every handler the router needs.
type Handlers struct {
	Auth        *handler.AuthHandler
	Lot         *handler.LotHandler
	Spot        *handler.SpotHandler
	Reservation *handler.ReservationHandler
	Stats       *handler.StatsHandler
}

// Register registers all routes.
//
// Route groups:
//
//	/healthz, /metrics        – unauthenticated operational endpoints
//	/v1/auth/*                – register/login/refresh/logout
//	/v1/*                     – authenticated (student or admin)
//	/v1/admin/*               – admin only
//
// Public map reads sit behind the Redis response cache; the whole
// authenticated surface sits behind the token-bucket rate limiter.
// Both degrade to pass-through when Redis is unavailable.
func Register(e *echo.Echo, cfg config.Config, h Handlers, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/refresh-access", h.Auth.RefreshAccess)
	auth.POST("/logout", h.Auth.Logout)

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(cfg.JWTSecret))
	v1.Use(middleware.RequireRole(model.RoleStudent, model.RoleAdmin))
	v1.Use(limiter)

	v1.GET("/me", h.Auth.Me)

	v1.GET("/lots", h.Lot.List, cache)
	v1.GET("/lots/:id", h.Lot.Get, cache)
	v1.GET("/spots", h.Spot.List, cache)
	v1.GET("/spots/:id", h.Spot.Get)
	v1.POST("/spots/:id/toggle", h.Spot.Toggle)

	v1.POST("/reservations", h.Reservation.Create)
	v1.POST("/reservations/:id/cancel", h.Reservation.Cancel)
	v1.GET("/reservations/my", h.Reservation.My)

	v1.GET("/stats", h.Stats.Summary, cache)
	v1.GET("/stats/hourly", h.Stats.Hourly, cache)

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/lots", h.Lot.Create)
	admin.PUT("/lots/:id", h.Lot.Update)
	admin.DELETE("/lots/:id", h.Lot.Delete)
	admin.POST("/spots", h.Spot.Create)
	admin.PUT("/spots/:id", h.Spot.Update)
	admin.DELETE("/spots/:id", h.Spot.Delete)
	admin.GET("/spots/:id/reservations", h.Spot.History)
}
