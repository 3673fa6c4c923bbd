// cmd/testgen-gateway/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rtl-testgen/internal/common/config"
	"rtl-testgen/internal/common/database"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/common/observability"
	"rtl-testgen/internal/gateway"
	"rtl-testgen/internal/llm"
	"rtl-testgen/internal/prompt"
	"rtl-testgen/pkg/registry"

	staticanalysis "rtl-testgen/internal/services/analysis/static-analysis"
	datacollector "rtl-testgen/internal/services/collection/data-collector"
	streamgenerator "rtl-testgen/internal/services/synthesis/stream-generator"
	testsynthesizer "rtl-testgen/internal/services/synthesis/test-synthesizer"
	testvalidator "rtl-testgen/internal/services/synthesis/test-validator"
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

type pingCloser interface {
	Ping(ctx context.Context) error
	Close() error
}

// connect keeps the client returned by open only if it answers a ping.
func connect[T pingCloser](ctx context.Context, open func() (T, error)) (T, error) {
	var zero T
	client, err := open()
	if err != nil {
		return zero, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return zero, err
	}
	return client, nil
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

	zapLog.Info("Starting test generation gateway...",
		zap.String("environment", cfg.App.Environment),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model()),
	)

	obs := observability.New(gateway.ServiceName, log)
	ctx := context.Background()

	reg, err := registry.LoadRegistry(cfg.Prompts.RegistryPath)
	if err != nil {
		zapLog.Fatal("prompt registry load failed", zap.Error(err))
	}

	backend, err := llm.New(cfg.LLM, log)
	if err != nil {
		zapLog.Fatal("llm backend init failed", zap.Error(err))
	}
	// The backend may still be loading its model; requests retry on their own.
	if err := retryWithBackoff(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return backend.Ping(pingCtx)
	}, 3, 2*time.Second, zapLog, "LLM backend ping"); err != nil {
		zapLog.Warn("LLM backend not reachable at startup", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	if cfg.Database.Redis.Enabled() {
		err = retryWithBackoff(func() error {
			client, err := connect(ctx, func() (*database.RedisClient, error) {
				return database.NewRedis(cfg.Database.Redis)
			})
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, daily stats disabled", zap.Error(err))
		}
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled() {
		err = retryWithBackoff(func() error {
			client, err := connect(ctx, func() (*database.PostgresClient, error) {
				return database.NewPostgres(cfg.Database.Postgres)
			})
			if err != nil {
				return err
			}
			pg = client
			return nil
		}, 5, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Warn("postgres unavailable, generation records disabled", zap.Error(err))
		}
	}

	var collector *datacollector.Collector
	if cfg.Collector.Enabled {
		collector = datacollector.NewCollector(cfg.Collector, redisClient, pg, log)
		if err := collector.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("generation_records schema failed", zap.Error(err))
		}
	}

	prompts := prompt.NewBuilder(reg)
	server := gateway.NewServer(gateway.Deps{
		Version:         cfg.App.Version,
		AnalysisEnabled: cfg.Analysis.Enabled,
		Backend:         backend,
		Analyzer:        staticanalysis.New(log),
		Synthesizer:     testsynthesizer.NewHandler(backend, prompts, log),
		Validator:       testvalidator.NewHandler(backend, prompts, log),
		Streamer:        streamgenerator.NewHandler(backend, prompts, log),
		Collector:       collector,
		Redis:           redisClient,
		Postgres:        pg,
		Observability:   obs,
		Logger:          log,
	})

	// No write timeout: /generate_test holds the response open while the model streams.
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.Handler(),
		ReadHeaderTimeout: config.GetDuration(cfg.Server.ReadTimeout),
	}

	go func() {
		zapLog.Info("Gateway listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("gateway server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if pg != nil {
		pg.Close()
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down meter provider", zap.Error(err))
	}

	zapLog.Info("Gateway stopped gracefully")
}
