package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/visibility/config"
	"example.com/backstage/services/visibility/internal/api"
	"example.com/backstage/services/visibility/internal/cache"
	"example.com/backstage/services/visibility/internal/database"
	"example.com/backstage/services/visibility/internal/metrics"
	"example.com/backstage/services/visibility/internal/models"
	"example.com/backstage/services/visibility/internal/search"
	"example.com/backstage/services/visibility/internal/services"
	"example.com/backstage/services/visibility/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server exposing filtering, analytics, alerting and export endpoints`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connections
	db, readOnlyDB, err := initDatabases(cfg)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache, _ = cache.NewRedisCache(config.RedisConfig{Enabled: false})
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without alert indexing")
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize the visibility service. The API process does not publish
	// alert notifications; that is the worker's job.
	visibilityService := services.NewVisibilityService(
		db, readOnlyDB, redisCache, elasticClient, nil,
		tracer, metricsCollector, rulesFromConfig(cfg), cfg.Export.RowCap,
	)
	if err := visibilityService.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial snapshot load failed, continuing with empty state")
	}

	// Initialize and start the server
	server := api.NewServer(cfg, visibilityService, metricsCollector, tracer)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

func initDatabases(cfg config.Config) (*gorm.DB, *gorm.DB, error) {
	// Initialize write database
	writeConn, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}
	db, err := writeConn.DB()
	if err != nil {
		return nil, nil, err
	}

	// Initialize read-only database
	roCfg := cfg.DB
	roCfg.DSN = cfg.DB.ReadOnlyDSN
	readConn, err := database.Connect(roCfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}
	readOnlyDB, err := readConn.DB()
	if err != nil {
		return nil, nil, err
	}

	// Auto-migrate only the write database
	if err := models.SetupModels(db); err != nil {
		return nil, nil, errors.Wrap(err, "failed to run migrations")
	}

	return db, readOnlyDB, nil
}
