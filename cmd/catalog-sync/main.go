// Command catalog-sync keeps the shared catalog snapshot fresh for a fleet of
// storefront instances running with sync.worker=false.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/grpcserver"
	httpapi "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/provider"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zlog = zlog.Named("catalog-sync")
	zap.ReplaceGlobals(zlog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("catalog-sync exited with error", zap.Error(err))
	}
	zlog.Info("catalog-sync stopped")
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	m := metrics.New()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	providerClient, err := provider.New(cfg.Provider, zlog)
	if err != nil {
		return err
	}

	store := catalog.NewStore(catalog.NewRedisSnapshotCache(redisClient), zlog)
	store.Warm(ctx)

	grpcSrv := grpcserver.New(cfg.GRPC, zlog)

	bus := events.NewBus(cfg.Kafka, zlog)
	defer func() {
		if err := bus.Close(); err != nil {
			zlog.Warn("error closing event bus", zap.Error(err))
		}
	}()
	if bus.Local() {
		zlog.Warn("kafka is not configured; storefront sync requests will not reach this process")
	}

	syncer := catalog.NewSyncer(providerClient, store, bus.Publisher(), m, cfg.Sync.SyncConfig, zlog)
	worker := catalog.NewWorker(syncer, cfg.Sync.Interval, grpcSrv, zlog)
	bus.Subscribe(domain.TopicSyncRequested, "catalog-sync", worker.HandleSyncRequested)

	httpSrv := httpapi.NewServer(cfg.HTTP, httpapi.NewAdminRouter(cfg.HTTP, store, syncer, m, zlog))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info("HTTP server starting", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(grpcSrv.ListenAndServe)
	g.Go(func() error {
		worker.Run(ctx)
		return nil
	})
	g.Go(func() error {
		bus.Run(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		zlog.Info("shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			zlog.Error("server forced to shutdown", zap.Error(err))
		}
		grpcSrv.GracefulStop()
		return nil
	})

	return g.Wait()
}
