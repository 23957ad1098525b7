package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/batch-sync/internal/api/handler"
	"github.com/cuongbtq/batch-sync/internal/api/router"
	"github.com/cuongbtq/batch-sync/internal/config"
	"github.com/cuongbtq/batch-sync/internal/metrics"
	"github.com/cuongbtq/batch-sync/internal/runner"
	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/cuongbtq/batch-sync/shared/database"
	"github.com/cuongbtq/batch-sync/shared/logger"
	"github.com/cuongbtq/batch-sync/shared/mailer"
	"github.com/cuongbtq/batch-sync/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("SYNC_RUNNER_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/sync-runner/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	runOnce := flag.String("run", "", "Run the named job once and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateRunnerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting sync runner",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	location := time.Local
	if cfg.Scheduler.Timezone != "" {
		location, err = time.LoadLocation(cfg.Scheduler.Timezone)
		if err != nil {
			return fmt.Errorf("failed to load timezone: %w", err)
		}
	}

	provider := database.NewProvider(map[domain.Role]database.Endpoint{
		domain.RoleSource: endpoint(cfg.Databases.Source),
		domain.RoleTarget: endpoint(cfg.Databases.Target),
	}, appLogger.Logger)

	deps := runner.Dependencies{
		Opener: provider,
		Logger: appLogger.Logger,
	}

	if cfg.SMTP.Host != "" {
		notifier, err := initNotifier(&cfg.SMTP, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize mail notifier: %w", err)
		}
		deps.Notifier = notifier
	}

	jobs, err := runner.NewJobs(cfg.Jobs, deps)
	if err != nil {
		return fmt.Errorf("failed to build jobs: %w", err)
	}

	schedule, err := runner.ParseSchedule(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("failed to parse schedule: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	jobMetrics := metrics.NewJobMetrics(registry)

	observers := []runner.Observer{
		runner.ObserverFunc(func(_ context.Context, result domain.RunResult) {
			jobMetrics.Observe(result)
		}),
	}

	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		appLogger.Info("RabbitMQ connection established")
		observers = append(observers, runner.NewEventPublisher(rabbitClient, appLogger.Logger))
	}

	jobRunner, err := runner.NewRunner(&runner.Config{
		Logger:       appLogger.Logger,
		Jobs:         jobs,
		Schedule:     schedule,
		PollInterval: cfg.Scheduler.PollInterval,
		JobTimeout:   cfg.Scheduler.JobTimeout,
		Location:     location,
		QueueSize:    cfg.Scheduler.QueueSize,
		Observers:    observers,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runOnce != "" {
		result, err := jobRunner.RunNow(ctx, *runOnce)
		if err != nil {
			return err
		}
		if result.Status != domain.RunStatusSucceeded {
			return fmt.Errorf("job %s failed: %s", result.Job, result.Error)
		}
		return nil
	}

	var srv *http.Server
	if cfg.Server.Enabled {
		srv = startServer(&cfg.Server, jobRunner, registry, appLogger.Logger)
	}

	// Start runner in a goroutine
	done := make(chan struct{})
	go func() {
		defer close(done)
		jobRunner.Start(ctx)
	}()

	appLogger.Info("Sync runner started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	// Stop the loop; a job in flight finishes first
	cancel()
	<-done

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Server forced to shutdown",
				slog.Any("error", err),
			)
			return err
		}
	}

	appLogger.Info("Sync runner shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

func endpoint(cfg config.DatabaseConfig) database.Endpoint {
	return database.Endpoint{
		Dialect:  cfg.Dialect,
		Driver:   cfg.Driver,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Service:  cfg.Service,
		User:     cfg.User,
		Password: cfg.Password,
		SSLMode:  cfg.SSLMode,
		DSN:      cfg.DSN,
	}
}

// initNotifier initializes the SMTP notifier used by report jobs
func initNotifier(cfg *config.SMTPConfig, logger *slog.Logger) (*mailer.Notifier, error) {
	return mailer.NewNotifier(&mailer.Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Sender:    cfg.Sender,
		Password:  cfg.Password,
		Recipient: cfg.Recipient,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client that publishes run events
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// startServer serves the admin API in the background
func startServer(cfg *config.ServerConfig, jobRunner *runner.Runner, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	r := router.SetupRouter(&handler.Dependencies{
		Logger: logger,
		Runner: jobRunner,
	}, registry)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	logger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.ReadTimeout),
		slog.Duration("write_timeout", cfg.WriteTimeout),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to start",
				slog.Any("error", err),
			)
		}
	}()

	return srv
}
