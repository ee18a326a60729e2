package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/benam/api/internal/bootstrap"
	"github.com/benam/api/internal/client"
	"github.com/benam/api/internal/config"
	"github.com/benam/api/internal/handler"
	"github.com/benam/api/internal/logging"
	"github.com/benam/api/internal/middleware"
	"github.com/benam/api/internal/service"
	"github.com/benam/api/internal/store"
	ws "github.com/benam/api/internal/websocket"
	"github.com/benam/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger, err := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	slog.SetDefault(slogger)

	// Initialize Redis client
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	artifacts, err := client.NewArtifactStore(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}

	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	jobs := store.NewRedisStore(redisClient, store.DefaultTTL)

	orchestrator, err := bootstrap.NewOrchestrator(cfg, jobs, artifacts, hub, validate, slogger)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}

	queueOpts := service.QueueOptions{
		Queue:    cfg.Worker.Queue,
		MaxRetry: cfg.Worker.MaxRetry,
		Timeout:  cfg.Worker.Timeout,
	}
	songService := service.NewSongService(jobs, artifacts, asynqClient, inspector, queueOpts, cfg.Media.MaxDurationSeconds)
	songHandler := handler.NewSongHandler(songService, validate)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    20 * 1024 * 1024, // recorded DJ messages arrive as base64
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	songs := api.Group("/songs")
	songs.Post("/", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), songHandler.Submit)
	songs.Get("/:dateKey", songHandler.Status)
	songs.Delete("/:dateKey", songHandler.Cancel)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:dateKey", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("dateKey"))
	}))

	songWorker := worker.NewSongWorker(orchestrator, jobs, hub)
	srv := newWorkerServer(cfg, redisOpt, songWorker)
	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(service.TaskTypeSongProcess, songWorker.ProcessTask)
		if err := srv.Run(mux); err != nil {
			log.Printf("Asynq worker error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		srv.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, songWorker *worker.SongWorker) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    cfg.Worker.Concurrency,
		Queues:         map[string]int{cfg.Worker.Queue: 1},
		LogLevel:       logging.AsynqLevel(cfg.Server.LogLevel),
		ErrorHandler:   asynq.ErrorHandlerFunc(songWorker.HandleError),
		RetryDelayFunc: linearRetryDelay,
	})
}

func linearRetryDelay(n int, err error, t *asynq.Task) time.Duration {
	return time.Duration(n+1) * 30 * time.Second
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
