package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/rahmanfadhil/deadline-radar/api/swagger"
	"github.com/rahmanfadhil/deadline-radar/internal/canvas"
	"github.com/rahmanfadhil/deadline-radar/internal/handler"
	internalmiddleware "github.com/rahmanfadhil/deadline-radar/internal/middleware"
	"github.com/rahmanfadhil/deadline-radar/internal/repository"
	"github.com/rahmanfadhil/deadline-radar/internal/service"
	"github.com/rahmanfadhil/deadline-radar/pkg/config"
	"github.com/rahmanfadhil/deadline-radar/pkg/database"
	"github.com/rahmanfadhil/deadline-radar/pkg/jobs"
	"github.com/rahmanfadhil/deadline-radar/pkg/logger"
	corsmiddleware "github.com/rahmanfadhil/deadline-radar/pkg/middleware/cors"
	reqidmiddleware "github.com/rahmanfadhil/deadline-radar/pkg/middleware/requestid"
)

// @title Deadline Radar API
// @version 0.1.0
// @description Aggregates upcoming coursework deadlines from a Canvas-compatible LMS into a weekly schedule
// @BasePath /
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	runRepo := repository.NewRunRepository(db, metrics)

	lms := canvas.NewClient(cfg.Canvas, metrics, logr)
	scheduleSvc := service.NewScheduleService(lms, logr)

	runSvc := service.NewRunService(runRepo, nil, nil, logr, service.RunServiceConfig{
		DefaultTimezone: cfg.Canvas.DefaultTimezone,
		HistoryLimit:    cfg.Runs.HistoryLimit,
		ResultTTL:       cfg.Runs.ResultTTL,
	})
	worker := service.NewRunWorker(runRepo, scheduleSvc, runSvc, metrics, logr)

	// A single worker serializes runs so the LMS only ever sees one
	// sequential fetch sequence at a time.
	queue := jobs.NewQueue("schedule_sync", worker.Handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Runs.QueueBuffer,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	runSvc.AttachQueue(queue)

	runSvc.RecoverInterrupted(ctx)

	runHandler := handler.NewRunHandler(runSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

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

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/runs", runHandler.Create)
		api.GET("/runs", runHandler.List)
		api.GET("/runs/:id", runHandler.Get)
		api.GET("/runs/:id/schedule", runHandler.Schedule)
		api.GET("/runs/:id/export", runHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
