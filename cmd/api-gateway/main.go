package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dashboarder/enrollment-api/internal/handler"
	"github.com/dashboarder/enrollment-api/internal/repository"
	"github.com/dashboarder/enrollment-api/internal/service"
	"github.com/dashboarder/enrollment-api/pkg/cache"
	"github.com/dashboarder/enrollment-api/pkg/config"
	"github.com/dashboarder/enrollment-api/pkg/database"
	"github.com/dashboarder/enrollment-api/pkg/jobs"
	"github.com/dashboarder/enrollment-api/pkg/logger"
	corsmiddleware "github.com/dashboarder/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dashboarder/enrollment-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := database.Migrate(ctx, db, cfg.Database.MigrationsDir); err != nil {
			cancel()
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
		cancel()
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	applicationRepo := repository.NewApplicationRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()
	applicationSvc := service.NewApplicationService(applicationRepo, enrollmentRepo, userRepo, cacheRepo, nil, logr)
	acceptanceSvc := service.NewAcceptanceService(db, applicationRepo, enrollmentRepo, userRepo, userRepo, cacheRepo, metrics, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, userRepo, nil, logr)
	registrationSvc := service.NewRegistrationService(db, registrationRepo, userRepo, cfg.Reaper.Retention, nil, metrics, nil, logr)

	var reaper *jobs.Periodic
	if cfg.Reaper.Enabled {
		reaper = jobs.NewPeriodic("registration-reaper", registrationSvc.SweepTask(), jobs.PeriodicConfig{
			Interval:   cfg.Reaper.Interval,
			RunOnStart: true,
			Logger:     logr,
		})
		reaper.Start(context.Background())
		defer reaper.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	handler.RegisterRoutes(r,
		handler.NewApplicationHandler(applicationSvc, acceptanceSvc),
		handler.NewEnrollmentHandler(enrollmentSvc),
		handler.NewRegistrationHandler(registrationSvc),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
