/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the incentive engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, config.yaml, environment), then flags
  2. Build the zap logger
  3. Open the store selected by STORE_DRIVER
  4. Pick the backfill lock (Redis when REDIS_ADDR is set)
  5. Create API handler, router and daily sync scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/incentives.db"

  # Run against MongoDB with a shared Redis lock
  STORE_DRIVER=mongo MONGO_URI=mongodb://localhost:27017 REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - config/config.go: All configuration keys
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/generic"
	memstore "github.com/warp/incentive-engine/generic/store"
	"github.com/warp/incentive-engine/lock"
	"github.com/warp/incentive-engine/salon"
	mongostore "github.com/warp/incentive-engine/store/mongo"
	"github.com/warp/incentive-engine/store/sqlite"
)

type closableStore interface {
	api.Store
	io.Closer
}

type nopCloser struct{ *memstore.Memory }

func (nopCloser) Close() error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.String("port", cfg.AppPort, "HTTP server port")
	dbPath := flag.String("db", cfg.SQLitePath, "SQLite database path")
	flag.Parse()
	cfg.AppPort = *port
	cfg.SQLitePath = *dbPath

	logger, err := config.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	// Initialize store
	store, err := openStore(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer store.Close()

	locker, redisClient := newLocker(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	policy, err := salon.PolicyByName(cfg.TierPolicy, cfg.DoubleAt(), cfg.TierRequireTarget)
	if err != nil {
		logger.Fatal("Invalid tier policy", zap.Error(err))
	}

	// Initialize handler
	handler := api.NewHandler(store, api.Options{
		Locker:          locker,
		TierPolicy:      policy,
		DefaultBaseline: cfg.TargetBaseline(),
	}, logger)

	// Create router
	router, err := api.NewRouter(handler, api.RouterOptions{BackfillRate: cfg.BackfillRate})
	if err != nil {
		logger.Fatal("Failed to build router", zap.Error(err))
	}

	// Daily sync
	var tenants []generic.TenantID
	for _, t := range cfg.Tenants() {
		tenants = append(tenants, generic.TenantID(t))
	}
	scheduler := api.NewDailySyncScheduler(handler.Orchestrator, store, tenants, logger.Named("sync"))
	scheduler.Enabled = cfg.SyncEnabled
	scheduler.CheckInterval = cfg.SyncInterval
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			zap.String("addr", "http://localhost:"+cfg.AppPort),
			zap.String("store", cfg.StoreDriver),
			zap.String("tierPolicy", policy.Name()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (closableStore, error) {
	switch cfg.StoreDriver {
	case "mongo":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "memory":
		return nopCloser{memstore.NewMemory()}, nil
	default:
		return sqlite.New(cfg.SQLitePath)
	}
}

// newLocker returns a Redis lock when REDIS_ADDR is set so several
// replicas share one backfill lock per tenant.
func newLocker(cfg *config.Config, logger *zap.Logger) (generic.Locker, *redis.Client) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return lock.NewRedis(client, cfg.LockTTL, logger.Named("lock")), client
}
