// cmd/placement-manager/main.go
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

	"placement-engine/internal/catalog"
	"placement-engine/internal/common/camunda"
	"placement-engine/internal/common/config"
	"placement-engine/internal/common/database"
	"placement-engine/internal/common/logger"
	"placement-engine/internal/common/metrics"
	"placement-engine/internal/common/observability"
	"placement-engine/internal/common/validation"
	"placement-engine/internal/lock"
	"placement-engine/internal/placement"
	"placement-engine/internal/storage"
	"placement-engine/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	da "placement-engine/internal/workers/application/decide-application"
	sa "placement-engine/internal/workers/application/submit-application"
	ao "placement-engine/internal/workers/opportunity/approve-opportunity"
	co "placement-engine/internal/workers/opportunity/create-opportunity"
	ap "placement-engine/internal/workers/placement/accept-placement"
	dw "placement-engine/internal/workers/withdrawal/decide-withdrawal"
	rw "placement-engine/internal/workers/withdrawal/request-withdrawal"
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

	zapLog, err := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting placement manager...",
		zap.String("version", cfg.App.Version),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("locking", cfg.Locking.Backend),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.Tracing, cfg.App.Name, cfg.App.Version)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()

	// --- Record stores ---
	stores := storage.NewMemoryStores()
	var audit storage.AuditLog = storage.NewMemoryAuditLog()
	if cfg.Storage.Backend == config.StoragePostgres {
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

		if err := pg.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("postgres schema setup failed", zap.Error(err))
		}
		stores = storage.NewPostgresStores(pg.DB)
		audit = storage.NewPostgresAuditLog(pg.DB)
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Per-student leases ---
	var locker lock.Locker = lock.NewLocalLocker(config.GetDuration(cfg.Locking.Wait))
	if cfg.Locking.Backend == config.LockRedis {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()

		locker = lock.NewRedisLocker(rdb.Client, cfg.Locking.Prefix,
			config.GetDuration(cfg.Locking.TTL), config.GetDuration(cfg.Locking.Wait))
		zapLog.Info("Redis connected successfully")
	}

	// --- Opportunity catalog ---
	var indexer catalog.Indexer = catalog.NopIndexer{}
	var searcher catalogSearcher
	if cfg.Catalog.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		es := catalog.NewESIndexer(esClient.Client, cfg.Catalog.Index)
		indexer, searcher = es, es
		zapLog.Info("Elasticsearch connected successfully")
	}

	svc, err := placement.NewService(placement.Deps{
		Stores:        stores,
		Locker:        locker,
		Audit:         audit,
		Catalog:       indexer,
		Metrics:       metrics.PrometheusRecorder{},
		Observability: obs,
		Tracer:        tracing.Tracer(),
		Policy:        placement.PolicyFromConfig(cfg.Placement),
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("placement service init failed", zap.Error(err))
	}

	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}
	deps := camunda.JobDeps{
		Validator:     validation.NewJobValidator(reg),
		Observability: obs,
		Logger:        log,
	}

	// --- Zeebe ---
	zeebe, err := camunda.Connect(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	handlers := []struct {
		taskType string
		handle   func(worker.JobClient, entities.Job)
	}{
		{sa.TaskType, sa.NewHandler(&sa.Config{Timeout: jobTimeout(cfg, sa.TaskType)}, svc, deps).Handle},
		{da.TaskType, da.NewHandler(&da.Config{Timeout: jobTimeout(cfg, da.TaskType)}, svc, deps).Handle},
		{ap.TaskType, ap.NewHandler(&ap.Config{Timeout: jobTimeout(cfg, ap.TaskType)}, svc, deps).Handle},
		{rw.TaskType, rw.NewHandler(&rw.Config{Timeout: jobTimeout(cfg, rw.TaskType)}, svc, deps).Handle},
		{dw.TaskType, dw.NewHandler(&dw.Config{Timeout: jobTimeout(cfg, dw.TaskType)}, svc, deps).Handle},
		{ao.TaskType, ao.NewHandler(&ao.Config{Timeout: jobTimeout(cfg, ao.TaskType)}, svc, deps).Handle},
		{co.TaskType, co.NewHandler(&co.Config{Timeout: jobTimeout(cfg, co.TaskType)}, svc, deps).Handle},
	}

	var workers []worker.JobWorker
	for _, h := range handlers {
		if jw := camunda.OpenWorker(zeebe.Zeebe(), h.taskType, config.GetWorkerConfig(cfg, h.taskType), h.handle, log); jw != nil {
			workers = append(workers, jw)
		}
	}
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newServeMux(zeebe.HealthCheck, searcher, func() time.Time { return time.Now().UTC() }, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Placement manager stopped gracefully")
}

// jobTimeout is the configured Zeebe job timeout for a task type.
func jobTimeout(cfg *config.Config, taskType string) time.Duration {
	return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
}
