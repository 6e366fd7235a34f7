package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Jusabaoth/NutriScan/internal/config"
	"github.com/Jusabaoth/NutriScan/internal/gemini"
	"github.com/Jusabaoth/NutriScan/internal/handler"
	"github.com/Jusabaoth/NutriScan/internal/middleware"
	"github.com/Jusabaoth/NutriScan/internal/proxy"
	"github.com/Jusabaoth/NutriScan/internal/service"
	"github.com/Jusabaoth/NutriScan/internal/store"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize Zap logger
	var logger *zap.Logger
	if cfg.Server.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.Int("api_keys", len(cfg.Proxy.Keys)),
	)

	// Select the persistence backend. Without a database URL the client
	// keeps plans and profiles in memory only.
	var kv store.Store
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = pgxpool.New(context.Background(), cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(context.Background()); err != nil {
			logger.Fatal("Failed to ping database", zap.Error(err))
		}

		pg := store.NewPostgres(pool, logger)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			logger.Fatal("Failed to prepare database schema", zap.Error(err))
		}
		kv = pg
		logger.Info("Successfully connected to database")
	} else {
		kv = store.NewMemory()
		logger.Warn("No DATABASE_URL configured, using in-memory store")
	}

	// Initialize the credential rotator for the proxy routes.
	rotator, err := proxy.NewRotator(cfg.Proxy.UpstreamEndpoint, cfg.Proxy.Keys, logger)
	if err != nil {
		logger.Fatal("Failed to initialize key rotator", zap.Error(err))
	}

	// Initialize the model gateway client, the assemblers and the
	// generation controller.
	gateway := gemini.NewClient(cfg.Gateway.Endpoint, cfg.Gateway.APIKey, cfg.Gateway.Local, logger)

	assembler := service.NewAssembler(gateway, kv, logger,
		service.WithInterDayDelay(cfg.Generation.InterDayDelay),
		service.WithRetryDelay(cfg.Generation.RetryDelay),
	)
	scanner := service.NewScanner(gateway, logger)
	controller := service.NewController(assembler, logger,
		service.WithWatchdogInterval(cfg.Generation.WatchdogInterval),
	)

	apiHandler := handler.New(scanner, controller, assembler, rotator, kv, logger)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Configure appropriately for production
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add request ID middleware
	r.Use(middleware.RequestIDMiddleware())

	// Add identity middleware
	r.Use(middleware.IdentityMiddleware())

	// Add request logging middleware
	r.Use(middleware.RequestLoggingMiddleware(logger))

	apiHandler.Register(r)

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
