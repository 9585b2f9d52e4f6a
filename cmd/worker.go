package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/visibility/config"
	"example.com/backstage/services/visibility/internal/alerting"
	"example.com/backstage/services/visibility/internal/cache"
	"example.com/backstage/services/visibility/internal/loader"
	"example.com/backstage/services/visibility/internal/messaging"
	"example.com/backstage/services/visibility/internal/metrics"
	"example.com/backstage/services/visibility/internal/search"
	"example.com/backstage/services/visibility/internal/services"
	"example.com/backstage/services/visibility/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that refreshes the dataset snapshot and evaluates alert rules on a schedule`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connections
	db, readOnlyDB, err := initDatabasesForWorker(cfg)
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

	// Initialize Azure Service Bus client for alert notifications
	var serviceBus messaging.ServiceBusClient
	if cfg.Azure.QueueConnStr != "" {
		serviceBus, err = messaging.NewServiceBusClient(cfg.Azure, "visibility-worker")
		if err != nil {
			return err
		}
		defer serviceBus.Close()
	} else {
		log.Warn().Msg("Azure Service Bus not configured, alert notifications disabled")
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize the visibility service
	visibilityService := services.NewVisibilityService(
		db, readOnlyDB, redisCache, elasticClient, serviceBus,
		tracer, metricsCollector, rulesFromConfig(cfg), cfg.Export.RowCap,
	)

	// Seed the database from CSV files when configured
	if cfg.Refresh.Source == "csv" {
		csvLoader := loader.NewCSVLoader(cfg.Refresh.CSVDir)
		data, err := csvLoader.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load CSV dataset")
		}
		if err := visibilityService.ImportSnapshot(ctx, data); err != nil {
			return errors.Wrap(err, "failed to import CSV dataset")
		}
		log.Info().Str("dir", cfg.Refresh.CSVDir).Msg("CSV dataset imported")
	}

	if err := visibilityService.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial snapshot load failed, will retry on schedule")
	}

	// Run the refresh and evaluation cycle on a schedule
	g.Go(func() error {
		log.Info().Dur("interval", cfg.Refresh.Interval).Msg("Starting snapshot refresh and alert evaluation schedule")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Refresh.Interval),
			gocron.NewTask(func() {
				if _, err := visibilityService.RefreshSnapshot(ctx); err != nil {
					log.Error().Err(err).Msg("Scheduled snapshot refresh failed")
					return
				}
				if err := visibilityService.RecordInventoryLevels(ctx); err != nil {
					log.Warn().Err(err).Msg("Failed to record inventory levels")
				}
				if _, _, err := visibilityService.EvaluateAlerts(ctx); err != nil {
					log.Error().Err(err).Msg("Scheduled alert evaluation failed")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

func initDatabasesForWorker(cfg config.Config) (*gorm.DB, *gorm.DB, error) {
	db, readOnlyDB, err := initDatabases(cfg)
	if err != nil {
		return nil, nil, err
	}

	// Higher limits for the read-only pool, it serves the snapshot loads
	readSqlDB, err := readOnlyDB.DB()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get underlying read-only DB connection")
	}
	readSqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns * 2)
	readSqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns * 2)
	readSqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return db, readOnlyDB, nil
}

// rulesFromConfig maps the configured thresholds onto alerting rules
func rulesFromConfig(cfg config.Config) alerting.Rules {
	rules := alerting.DefaultRules()
	if cfg.Alerting.DelayThresholdHours > 0 {
		rules.DelayThresholdHours = cfg.Alerting.DelayThresholdHours
	}
	if cfg.Alerting.LowStockThreshold > 0 {
		rules.LowStockThreshold = cfg.Alerting.LowStockThreshold
	}
	if cfg.Alerting.SupplierPerformanceThreshold > 0 {
		rules.SupplierPerformanceThreshold = cfg.Alerting.SupplierPerformanceThreshold
	}
	return rules
}
