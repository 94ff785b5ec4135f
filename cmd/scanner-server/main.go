// cmd/scanner-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tender-scanner/internal/alerts"
	"tender-scanner/internal/anthropic"
	"tender-scanner/internal/common/auth"
	"tender-scanner/internal/common/aws"
	"tender-scanner/internal/common/config"
	"tender-scanner/internal/common/database"
	"tender-scanner/internal/common/logger"
	"tender-scanner/internal/common/observability"
	"tender-scanner/internal/runlock"
	"tender-scanner/internal/scoring"
	"tender-scanner/internal/server"
	"tender-scanner/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting scanner server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	db := pg.GetDB()

	// --- Stores ---
	scannerStore := store.NewScannerStore(db)
	scoreStore := store.NewScoreStore(db)
	entityStore := store.NewEntityStore(db)
	profileStore := store.NewProfileStore(db)
	alertStore := store.NewAlertStore(db)

	// --- Scoring pipeline ---
	provider := anthropic.NewClient(cfg.Anthropic)
	scorer := scoring.NewScorer(provider, log)
	engine := scoring.NewEngine(scorer, cfg.Scoring.Concurrency, log)
	lock := runlock.New(redis.Client, time.Duration(cfg.Scoring.RunLockTTL)*time.Second)

	// --- Alerts (optional) ---
	var notifier server.Notifier
	if cfg.Alerts.Enabled {
		var publisher aws.Publisher
		snsClient, err := aws.NewSNSClient(ctx, cfg.Alerts.Region)
		if err != nil {
			zapLog.Warn("sns client init failed, alerts degrade to cards only", zap.Error(err))
		} else {
			publisher = snsClient
		}
		notifier = alerts.New(alertStore, publisher, cfg.Alerts.TopicARN, log)
	}

	srv := server.New(server.Options{
		Scanners: scannerStore,
		Scores:   scoreStore,
		Entities: entityStore,
		Profiles: profileStore,
		Engine:   engine,
		Lock:     lock,
		Indexer:  esClient,
		Notifier: notifier,
		Verifier: auth.NewStaticVerifier(cfg.Auth.Tokens),
		Obs:      obs,
		Logger:   log,
	})

	httpServer := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     srv,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// No write timeout: scoring runs stream for as long as they take.
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	zapLog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}
