package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bellapacxx/bingo75-backend/claims"
	"github.com/bellapacxx/bingo75-backend/config"
	"github.com/bellapacxx/bingo75-backend/controllers"
	"github.com/bellapacxx/bingo75-backend/events"
	"github.com/bellapacxx/bingo75-backend/lock"
	"github.com/bellapacxx/bingo75-backend/monitor"
	"github.com/bellapacxx/bingo75-backend/routes"
	"github.com/bellapacxx/bingo75-backend/scheduler"
	"github.com/bellapacxx/bingo75-backend/services"
	"github.com/bellapacxx/bingo75-backend/store"
	"github.com/bellapacxx/bingo75-backend/utils/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[FATAL] configuration: %v", err)
	}

	db, err := config.SetupDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[FATAL] database: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("[FATAL] redis url: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("[FATAL] redis: %v", err)
	}

	metrics := monitor.NewMetrics("bingo")
	st := store.New(db)
	bus := events.NewBus(rdb, logger.Named("events"))
	locker := lock.New(rdb)

	coordinator := claims.New(st, bus, locker, claims.Config{
		HouseRate:        cfg.HouseRate,
		WinnerRate:       cfg.WinnerRate,
		JackpotRate:      cfg.JackpotRate,
		JackpotThreshold: cfg.JackpotThreshold,
		LockLease:        cfg.LockLease,
	}, logger.Named("claims"), metrics)

	sched := scheduler.New(st, bus, locker, scheduler.Config{
		PollInterval: cfg.PollInterval,
		CallInterval: cfg.NumberCallInterval,
		LockLease:    cfg.LockLease,
		JackpotRate:  cfg.JackpotRate,
	}, logger.Named("scheduler"), metrics)

	hub := services.NewHub(bus, st, coordinator, logger.Named("ws"), metrics)
	api := controllers.New(st, coordinator, logger.Named("api"))

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	routes.SetupRoutes(router, api, hub)

	sched.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	sched.Stop()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
}
