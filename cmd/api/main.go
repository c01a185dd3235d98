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
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/api/handlers"
	"github.com/reviewlens/backend/internal/cache/redis"
	"github.com/reviewlens/backend/internal/embedding"
	"github.com/reviewlens/backend/internal/issues"
	"github.com/reviewlens/backend/internal/metrics"
	"github.com/reviewlens/backend/internal/middleware/ratelimit"
	"github.com/reviewlens/backend/internal/middleware/security"
	"github.com/reviewlens/backend/internal/middleware/validation"
	"github.com/reviewlens/backend/internal/provider"
	"github.com/reviewlens/backend/internal/search"
	"github.com/reviewlens/backend/internal/storage/sqlite"
	"github.com/reviewlens/backend/pkg/config"
	appLogger "github.com/reviewlens/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ReviewLens API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var embeddingCache provider.EmbeddingCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			embeddingCache = redisClient
		}
	}

	providerClient := provider.NewClient(cfg.Provider, embeddingCache)

	backfiller := embedding.NewBackfiller(sqliteClient, providerClient, cfg.Backfill, cfg.Provider.MinInputChars)
	searchService := search.NewService(sqliteClient, providerClient, cfg.Search, cfg.Provider.MinInputChars)
	issuesEngine := issues.NewEngine(sqliteClient, providerClient, providerClient, cfg.Issues, cfg.Provider.MinInputChars)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Issues.CronSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if _, err := issuesEngine.AnalyzeAll(ctx); err != nil {
			appLogger.Error("Scheduled issue analysis failed", zap.Error(err))
		}
	})
	if err != nil {
		appLogger.Fatal("Failed to schedule issue analysis", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))
	app.Use(ratelimit.New(cfg.Server.RatePerMinute).Handle())
	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	reviewHandler := handlers.NewReviewHandler(sqliteClient)
	searchHandler := handlers.NewSearchHandler(searchService)
	backfillHandler := handlers.NewBackfillHandler(backfiller)
	issuesHandler := handlers.NewIssuesHandler(issuesEngine, sqliteClient)
	agentHandler := handlers.NewAgentHandler(sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(backfiller)

	api := app.Group("/api/v1")

	api.Post("/reviews", reviewHandler.CreateReview)
	api.Get("/reviews/:id", reviewHandler.GetReview)
	api.Put("/reviews/:id", reviewHandler.UpdateReview)

	api.Post("/search/similar", searchHandler.FindSimilar)

	api.Post("/embeddings/backfill", backfillHandler.RunBackfill)

	api.Post("/issues/analyze", issuesHandler.Analyze)
	api.Get("/issues", issuesHandler.List)

	api.Put("/agents/:id", agentHandler.UpsertAgent)
	api.Get("/agents", agentHandler.ListAgents)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/backfill", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
