package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/leadflowhq/leadflow/internal/collaborator"
	"github.com/leadflowhq/leadflow/internal/config"
	"github.com/leadflowhq/leadflow/internal/store"
	"github.com/leadflowhq/leadflow/internal/trigger"
	"github.com/leadflowhq/leadflow/internal/worker"
	"github.com/leadflowhq/leadflow/shared/logger"
	"github.com/leadflowhq/leadflow/shared/postgresql"
	"github.com/leadflowhq/leadflow/shared/rabbitmq"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Worker-side mutations (created leads, status changes) run the
	// trigger rules too, chaining the pipeline forward.
	engine := trigger.NewEngine(trigger.Config{
		LowSupplyThreshold: cfg.Engine.LowSupplyThreshold,
		ResearchJobCap:     cfg.Engine.ResearchJobCap,
		ResearchCooldown:   cfg.Engine.ResearchCooldown,
		DiscoveryCooldown:  cfg.Engine.DiscoveryCooldown,
	}, appLogger.Logger)

	notifier := store.NewBusNotifier(rabbitClient, appLogger.Logger)
	st := store.NewStore(dbClient, engine, notifier, appLogger.Logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = st.InitSchema(initCtx)
	initCancel()
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	registry, err := initExecutors(cfg, st, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize executors: %w", err)
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:           appLogger.Logger,
		Store:            st,
		Bus:              rabbitClient,
		Registry:         registry,
		Concurrency:      cfg.Worker.Concurrency,
		PollInterval:     cfg.Worker.PollInterval,
		JobTimeout:       cfg.Worker.JobTimeout,
		HeartbeatEvery:   cfg.Worker.HeartbeatEvery,
		RetryBackoffBase: cfg.Engine.RetryBackoffBase,
		RetryBackoffCap:  cfg.Engine.RetryBackoffCap,
		ProcessingLease:  cfg.Engine.ProcessingLease,
		PrefetchCount:    cfg.RabbitMQ.Consumer.PrefetchCount,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initExecutors wires the provider clients and the slot planner into
// the executor registry.
func initExecutors(cfg *config.Config, st *store.Store, logger *slog.Logger) (*worker.Registry, error) {
	location, err := time.LoadLocation(cfg.Engine.SchedulingTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduling timezone %q: %w", cfg.Engine.SchedulingTimezone, err)
	}

	planner := &worker.SlotPlanner{
		Location:      location,
		StartHour:     cfg.Engine.BusinessHourStart,
		EndHour:       cfg.Engine.BusinessHourEnd,
		MinGap:        cfg.Engine.SlotMinGap,
		LookaheadDays: cfg.Engine.SlotLookaheadDays,
	}

	searcher := collaborator.NewHTTPSearcher(cfg.Collaborators.Search, logger)
	enricher := collaborator.NewHTTPEnricher(cfg.Collaborators.Enrichment, logger)
	researcher := collaborator.NewHTTPResearcher(cfg.Collaborators.Research, logger)
	composer := collaborator.NewHTTPComposer(cfg.Collaborators.Compose, logger)
	mailer := collaborator.NewHTTPMailer(cfg.Collaborators.Email, logger)

	return worker.NewRegistry(
		worker.NewDiscoveryExecutor(st, searcher, logger),
		worker.NewEnrichmentExecutor(st, enricher, logger),
		worker.NewResearchExecutor(st, researcher, logger),
		worker.NewOutreachExecutor(st, composer, planner, logger),
		worker.NewEmailSendExecutor(st, mailer, logger),
	), nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.Logging) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.Database, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the job-notice bus client
func initRabbitMQ(cfg *config.RabbitMQ, logger *slog.Logger) (*rabbitmq.Client, error) {
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
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
