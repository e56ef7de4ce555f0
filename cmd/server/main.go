package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/worthit/ingest-service/config"
	"github.com/worthit/ingest-service/internal/adapters/registry"
	"github.com/worthit/ingest-service/internal/database"
	"github.com/worthit/ingest-service/internal/handlers"
	"github.com/worthit/ingest-service/internal/middleware"
	"github.com/worthit/ingest-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting ingest service")

	ctx := context.Background()

	telemetryCleanup, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer telemetryCleanup(ctx)

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	if cfg.Ingest.EnsureSchema {
		if err := database.EnsureSchema(ctx, database.Pool()); err != nil {
			logger.Fatal().Err(err).Msg("Failed to ensure schema")
		}
	}

	store := database.NewStore(database.Pool())

	// Runs left behind by a previous process crash stay "running" forever
	// otherwise.
	sweepStaleRuns(ctx, store, cfg.Ingest.StaleRunMaxAge, logger)
	sweeperCtx, stopSweeper := context.WithCancel(ctx)
	go runStaleSweeper(sweeperCtx, store, cfg.Ingest, logger)

	reg := registry.New(registry.Options{
		Mode:        registry.Mode(cfg.Ingest.Mode),
		FixturesDir: cfg.Ingest.FixturesDir,
		ArchiveDir:  cfg.Ingest.ArchiveDir,
		Logger:      *logger,
	})
	defer reg.Close()
	handlers.SetRegistry(reg)

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", middleware.RateLimitByIP(5, 10), handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuth(os.Getenv("INTERNAL_API_KEY")))
	internal.Use(middleware.RateLimit(50, 100))
	{
		internal.GET("/health", handlers.HealthCheck)
		internal.GET("/retailers", handlers.ListRetailers)

		admin := internal.Group("/admin")
		{
			admin.POST("/ingest/:retailer", handlers.IngestRetailer)
			admin.POST("/overrides", handlers.CreateOverride)
		}

		ingestion := internal.Group("/ingestion")
		{
			ingestion.GET("/runs", handlers.ListRuns)
			ingestion.GET("/runs/:runId", handlers.GetRun)
			ingestion.GET("/stats", handlers.GetStats)
		}

		products := internal.Group("/products")
		{
			products.GET("/search", handlers.SearchProducts)
			products.GET("/:productId", handlers.GetProduct)
		}

		listings := internal.Group("/listings")
		{
			listings.GET("/:listingId/prices", handlers.GetPriceHistory)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func runStaleSweeper(ctx context.Context, store *database.Store, cfg config.IngestConfig, logger *zerolog.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepStaleRuns(ctx, store, cfg.StaleRunMaxAge, logger)
		}
	}
}

func sweepStaleRuns(ctx context.Context, store *database.Store, maxAge time.Duration, logger *zerolog.Logger) {
	swept, err := store.FailStaleRuns(ctx, maxAge)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to sweep stale runs")
		return
	}
	if swept > 0 {
		logger.Info().Int64("count", swept).Msg("Marked stale runs as failed")
	}
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "ingest-service").Logger()
	return &logger
}

