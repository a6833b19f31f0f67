package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/parkupb/campus-parking/internal/config"
	"github.com/parkupb/campus-parking/internal/database"
	"github.com/parkupb/campus-parking/internal/handler"
	"github.com/parkupb/campus-parking/internal/metrics"
	"github.com/parkupb/campus-parking/internal/queue"
	"github.com/parkupb/campus-parking/internal/repository"
	"github.com/parkupb/campus-parking/internal/router"
	"github.com/parkupb/campus-parking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; response cache and rate limiting disabled")
	}

	metrics.Register()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	lots := repository.NewLotRepo(db)
	spots := repository.NewSpotRepo(db)
	reservations := repository.NewReservationRepo(db)

	engine := service.NewEngine(db, spots, reservations)
	engine.Grace = time.Duration(cfg.GraceMinutes) * time.Minute
	stats := service.NewStatsService(engine, lots)

	h := router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, users, tokens),
		Lot:         handler.NewLotHandler(db, lots, spots),
		Spot:        handler.NewSpotHandler(engine, spots),
		Reservation: handler.NewReservationHandler(engine, users, spots),
		Stats:       handler.NewStatsHandler(stats),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	router.Register(e, cfg, h, rdb)

	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
