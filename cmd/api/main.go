package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/api/handlers"
	"github.com/hebrew-ms/backend/internal/app"
	"github.com/hebrew-ms/backend/internal/metrics"
	"github.com/hebrew-ms/backend/internal/middleware/ratelimit"
	"github.com/hebrew-ms/backend/internal/middleware/security"
	"github.com/hebrew-ms/backend/internal/middleware/validation"
	"github.com/hebrew-ms/backend/internal/query"
	"github.com/hebrew-ms/backend/pkg/config"
	appLogger "github.com/hebrew-ms/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.InitWithRotation(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath, appLogger.Rotation{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting manuscript extraction API server")
	metrics.Init()

	ctx := context.Background()
	components, err := app.Build(ctx, cfg, app.Options{Logger: appLogger.GetLogger()})
	if err != nil {
		appLogger.Fatal("Failed to build components", zap.Error(err))
	}
	defer components.Close()

	if components.SQLite == nil {
		appLogger.Fatal("SQLite must be enabled for the API server")
	}

	var graph query.Graph
	if components.Neo4j != nil {
		graph = components.Neo4j
	}
	queryEngine := query.NewEngine(components.SQLite, graph)

	limiter, err := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimit,
		Logger:               appLogger.GetLogger(),
	})
	if err != nil {
		appLogger.Fatal("Failed to create rate limiter", zap.Error(err))
	}

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + ratelimit.ClientHeader,
		AllowMethods: "GET, POST, OPTIONS",
	}))
	fiberApp.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	extractHandler := handlers.NewExtractHandler(components.Pipeline)
	queryHandler := handlers.NewQueryHandler(queryEngine)
	gazetteerHandler := handlers.NewGazetteerHandler(components.Index)
	wsHandler := handlers.NewWebSocketHandler(components.Pipeline, cfg.Server.BatchLimit)

	fiberApp.Get("/metrics", metrics.MetricsHandler())

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	fiberApp.Get("/ready", func(c *fiber.Ctx) error {
		checks := fiber.Map{}
		ready := true
		if err := components.SQLite.Ping(c.UserContext()); err != nil {
			checks["sqlite"] = err.Error()
			ready = false
		} else {
			checks["sqlite"] = "ok"
		}
		if components.Neo4j != nil {
			if err := components.Neo4j.Ping(c.UserContext()); err != nil {
				checks["neo4j"] = err.Error()
				ready = false
			} else {
				checks["neo4j"] = "ok"
			}
		}
		if components.Redis != nil {
			if err := components.Redis.Ping(c.UserContext()); err != nil {
				checks["redis"] = err.Error()
			} else {
				checks["redis"] = "ok"
			}
		}

		status := fiber.StatusOK
		state := "ready"
		if !ready {
			status = fiber.StatusServiceUnavailable
			state = "not_ready"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":     state,
			"checks":     checks,
			"ai_enabled": components.Arbiter.AIEnabled(),
			"mode":       components.Arbiter.Mode(),
		})
	})

	api := fiberApp.Group("/api/v1", limiter.Middleware(), validation.Middleware(validation.Config{
		MaxBatchSize: cfg.Server.BatchLimit,
		Logger:       appLogger.GetLogger(),
	}))

	api.Post("/extract", extractHandler.Extract)
	api.Post("/extract/batch", extractHandler.ExtractBatch)

	api.Get("/manuscripts/:id", queryHandler.GetManuscript)
	api.Get("/places/:name/manuscripts", queryHandler.ManuscriptsAtPlace)
	api.Get("/persons/:name/manuscripts", queryHandler.ManuscriptsByPerson)
	api.Get("/runs", queryHandler.RecentRuns)

	api.Get("/gazetteer/stats", gazetteerHandler.Stats)
	api.Get("/gazetteer/lookup", gazetteerHandler.Lookup)

	fiberApp.Use("/ws", handlers.Upgrade)
	fiberApp.Get("/ws/extract", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := fiberApp.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := fiberApp.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
