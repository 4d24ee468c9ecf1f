package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phishguard/internal/broker"
	"phishguard/internal/cache"
	"phishguard/internal/config"
	"phishguard/internal/constants"
	"phishguard/internal/database"
	"phishguard/internal/metrics"
	"phishguard/internal/models"
	"phishguard/internal/retry"
	"phishguard/internal/service"
	"phishguard/internal/tracing"
	"phishguard/internal/urlextract"
	"phishguard/pkg/webrisk"
	"phishguard/pkg/webrisk/types"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	analysisHandlerTimeout  = 25 * time.Second
	deadLetterMaxRetryDelay = 10 * time.Minute
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to an optional JSON configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("PhishGuard %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting PhishGuard")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogLevel(logger, cfg.LogLevel, *verbose)

	registry := metrics.GetRegistry()

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	brokerClient, err := broker.Connect(cfg.Broker, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer brokerClient.Close()

	if err := brokerClient.EnsureStream(ctx); err != nil {
		return fmt.Errorf("failed to provision stream: %w", err)
	}

	threshold, err := types.ParseConfidenceLevel(cfg.Oracle.ConfidenceThreshold)
	if err != nil {
		return fmt.Errorf("invalid confidence threshold: %w", err)
	}
	oracle := webrisk.NewEvaluator(webrisk.NewClient(cfg.Oracle, nil, logger, registry), threshold)

	var l1 service.VerdictCache
	if cfg.Cache.L1Size > 0 {
		l1 = cache.NewVerdictCache(cfg.Cache.L1Size, time.Duration(cfg.Cache.L1TTLMin)*time.Minute)
	}

	ledger := service.NewMessageLedger(db, logger)
	subscriptions := service.NewSubscriptionService(db, cfg.Subscription, logger, registry)
	router := service.NewCommandRouter(ledger, subscriptions, logger)
	outbox := service.NewOutboxPublisher(db, cfg.Broker.AnalysisTopic, logger)
	urlCache := service.NewURLReputationCache(l1, db, oracle, logger, registry)
	policy := service.NewMessagePolicy(subscriptions, urlextract.Extractor{}, urlCache, logger)
	worker := service.NewAnalysisWorker(ledger, policy, logger, registry)
	processing := service.NewSMSProcessingService(cfg.ServicePhoneNumber, ledger, router, outbox, logger, registry)

	relay := broker.NewRelay(db, brokerClient,
		time.Duration(cfg.Broker.RelayIntervalMs)*time.Millisecond, cfg.Broker.RelayBatchSize, logger, registry)

	retryDelay := time.Duration(cfg.Retry.DelayMs) * time.Millisecond
	analysisConsumer := broker.NewConsumer(brokerClient, broker.ConsumerOptions{
		Name:              cfg.Broker.ConsumerName,
		Subject:           cfg.Broker.AnalysisTopic,
		MaxDeliveries:     cfg.Retry.Attempts,
		RetryDelay:        retryDelay,
		RetryMultiplier:   cfg.Retry.Multiplier,
		DeadLetterSubject: cfg.Broker.DeadLetterTopic,
		HandlerTimeout:    analysisHandlerTimeout,
	}, worker.Handle, logger, registry)

	deadLetterConsumer := broker.NewConsumer(brokerClient, broker.ConsumerOptions{
		Name:            cfg.Broker.ConsumerName + "-dlt",
		Subject:         cfg.Broker.DeadLetterTopic,
		RetryDelay:      retryDelay,
		RetryMultiplier: cfg.Retry.Multiplier,
		MaxRetryDelay:   deadLetterMaxRetryDelay,
	}, worker.HandleDeadLetter, logger, registry)

	scheduler := service.NewScheduler(db, cfg.Retention, logger, registry)
	server := NewServer(cfg, processing, db, brokerClient, logger, registry)

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return relay.Start(groupCtx)
	})
	g.Go(func() error {
		return analysisConsumer.Run(groupCtx)
	})
	g.Go(func() error {
		return deadLetterConsumer.Run(groupCtx)
	})
	g.Go(func() error {
		scheduler.Start(groupCtx)
		return nil
	})

	logger.WithFields(logrus.Fields{
		"service_number": cfg.ServicePhoneNumber != "",
		"analysis_topic": cfg.Broker.AnalysisTopic,
		"dlt_topic":      cfg.Broker.DeadLetterTopic,
		"retry_attempts": cfg.Retry.Attempts,
	}).Info("PhishGuard pipeline started")

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Pipeline stopped with error")
		return err
	}

	logger.Info("Shutdown completed")
	return nil
}

// configureLogLevel applies the configured level; verbose always wins
func configureLogLevel(logger *logrus.Logger, level string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}
	if level == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", level)
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}

// openDatabase opens the store, retrying with exponential backoff
func openDatabase(ctx context.Context, cfg models.DatabaseConfig, logger *logrus.Logger) (*database.Database, error) {
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: constants.DefaultRetryBackoffMs * time.Millisecond,
		MaxDelay:     constants.DefaultMaxBackoffMs * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	var db *database.Database
	err := backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	return db, nil
}
