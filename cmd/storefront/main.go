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

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/grpcserver"
	httpapi "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/provider"
	"github.com/fjod/storefront/internal/reconcile"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/google/uuid"
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
	zap.ReplaceGlobals(zlog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("storefront exited with error", zap.Error(err))
	}
	zlog.Info("storefront stopped")
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	m := metrics.New()

	// Redis: cart cache and catalog snapshot
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	// MongoDB: carts
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())
	cartRepo := cart.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		return err
	}
	zlog.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	// SQL: checkout attempt log
	attempts, err := checkout.NewSQLRepository(ctx, cfg.SQL)
	if err != nil {
		return err
	}
	defer attempts.Close()
	if err := attempts.RunMigrations(); err != nil {
		return err
	}

	providerClient, err := provider.New(cfg.Provider, zlog)
	if err != nil {
		return err
	}

	store := catalog.NewStore(catalog.NewRedisSnapshotCache(redisClient), zlog)
	store.Warm(ctx)

	grpcSrv := grpcserver.New(cfg.GRPC, zlog)
	if _, err := store.Snapshot(); err == nil {
		grpcSrv.SetReady(true)
	}

	cartSvc := cart.NewService(cartRepo, cart.NewRedisCache(redisClient), cfg.Checkout.PerItemLimit, m, zlog)
	completions := cart.NewCompletionHandler(cartSvc, zlog)

	bus := events.NewBus(cfg.Kafka, zlog)
	defer func() {
		if err := bus.Close(); err != nil {
			zlog.Warn("error closing event bus", zap.Error(err))
		}
	}()

	syncer := catalog.NewSyncer(providerClient, store, bus.Publisher(), m, cfg.Sync.SyncConfig, zlog)

	var worker *catalog.Worker
	if cfg.Sync.Worker {
		worker = catalog.NewWorker(syncer, cfg.Sync.Interval, grpcSrv, zlog)
	}
	trigger := wireSync(bus, worker, store, grpcSrv)
	bus.Subscribe(domain.TopicCheckoutCompleted, "cart", completions.Handle)

	reconciler := reconcile.NewReconciler(providerClient, trigger, cfg.Checkout, zlog)
	checkoutSvc := checkout.NewService(cartSvc, store, reconciler, attempts, cfg.Checkout.Currency, m, zlog)

	deps := httpapi.Deps{
		Carts:    cartSvc,
		Checkout: checkoutSvc,
		Catalog:  store,
		Trigger:  trigger,
		Currency: cfg.Checkout.Currency,
		Metrics:  m,
		Log:      zlog,
	}
	if worker != nil {
		deps.Syncer = syncer
	}
	httpSrv := httpapi.NewServer(cfg.HTTP, httpapi.NewRouter(cfg.HTTP, deps))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info("HTTP server starting", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(grpcSrv.ListenAndServe)

	if worker != nil {
		g.Go(func() error {
			worker.Run(ctx)
			return nil
		})
	}
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

// wireSync returns the reconciler's sync trigger and, with Kafka, subscribes
// the worker and the snapshot follower. worker is nil when another process
// syncs the catalog.
func wireSync(bus *events.Bus, worker *catalog.Worker, store *catalog.Store, ready catalog.ReadinessReporter) reconcile.SyncTrigger {
	if bus.Local() {
		if worker == nil {
			// Rejected by config validation; nothing could serve the request.
			return events.NewSyncTrigger(bus.Publisher())
		}
		return worker
	}

	trigger := events.NewSyncTrigger(bus.Publisher())
	if worker != nil {
		// The published request may land on another instance; refresh here too.
		trigger = trigger.WithLocal(worker)
		bus.Subscribe(domain.TopicSyncRequested, "catalog-sync", worker.HandleSyncRequested)
	}
	// Adopt snapshots stored by whichever process synced last.
	bus.Subscribe(domain.TopicSnapshotUpdated, "snapshot-"+uuid.NewString(),
		func(ctx context.Context, msg events.Message) error {
			if err := store.HandleSnapshotUpdated(ctx, msg); err != nil {
				return err
			}
			ready.SetReady(true)
			return nil
		})
	return trigger
}
