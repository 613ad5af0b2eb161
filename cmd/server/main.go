package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/servicecrm/backend/api/handler"
	"github.com/servicecrm/backend/eventstore"
	esBolt "github.com/servicecrm/backend/eventstore/bolt"
	esPostgres "github.com/servicecrm/backend/eventstore/postgres"
	"github.com/servicecrm/backend/eventstore/snapshot"
	"github.com/servicecrm/backend/internal/config"
	"github.com/servicecrm/backend/internal/infrastructure/monitor"
	pgInfra "github.com/servicecrm/backend/internal/infrastructure/postgres"
	redisInfra "github.com/servicecrm/backend/internal/infrastructure/redis"
	"github.com/servicecrm/backend/internal/middleware"
	"github.com/servicecrm/backend/internal/router"
	"github.com/servicecrm/backend/internal/services"
	"github.com/servicecrm/backend/internal/services/lifecycle"
	"github.com/servicecrm/backend/pkg/httpcontext"
	"github.com/servicecrm/backend/pkg/logger"
	"github.com/servicecrm/backend/projection"
	projMemory "github.com/servicecrm/backend/projection/memory"
	projPostgres "github.com/servicecrm/backend/projection/postgres"
	"github.com/servicecrm/backend/repository"
	repoMemory "github.com/servicecrm/backend/repository/memory"
	repoPostgres "github.com/servicecrm/backend/repository/postgres"
	repoRedis "github.com/servicecrm/backend/repository/redis"
	customerUC "github.com/servicecrm/backend/usecase/customer"
	productUC "github.com/servicecrm/backend/usecase/product"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	var snapshots *snapshot.BoltStore
	if cfg.Snapshot.Enabled {
		snapshots, err = snapshot.OpenBolt(cfg.Snapshot.Path)
		if err != nil {
			zapLogger.Fatal("failed to open snapshot store", zap.Error(err))
		}
		manager.Register("snapshots", func(ctx context.Context) error {
			return snapshots.Close()
		})
	}

	var (
		store          eventstore.Store
		customerReader repository.CustomerReader
		productReader  repository.ProductReader
		mon            *monitor.Monitor
	)

	if cfg.EventStore.Embedded() {
		store, customerReader, productReader = buildEmbedded(appCtx, cfg, manager, zapLogger)
		mon = monitor.NewEmbedded(snapshots, 10*time.Second, zapLogger)
	} else {
		store, customerReader, productReader, mon = buildPostgres(appCtx, cfg, manager, snapshots, zapLogger)
	}

	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	var snapshotStore snapshot.Store
	if snapshots != nil {
		snapshotStore = snapshots
	}

	customerUseCase := customerUC.New(store, snapshotStore, customerReader, zapLogger)
	productUseCase := productUC.New(store, snapshotStore, productReader, zapLogger)

	if snapshots != nil {
		snapshotter := services.NewSnapshotter(store, snapshots, zapLogger, services.SnapshotterConfig{
			Threshold: cfg.Snapshot.Threshold,
			Schedule:  cfg.Snapshot.Schedule,
		})
		snapshotter.Start()
		manager.Register("snapshotter", func(ctx context.Context) error {
			return snapshotter.Stop(ctx)
		})
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Customer: apiHandler.NewCustomerHandler(customerUseCase, ctxAdapter, zapLogger),
		Product:  apiHandler.NewProductHandler(productUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	r := router.New(handlers)
	handler := middleware.RequestLogging(zapLogger)(r.Handler)

	server := &fasthttp.Server{
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()), zap.String("event_store", cfg.EventStore.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// buildPostgres wires the standard deployment: Postgres event log and read
// model, Redis detail cache on the query path.
func buildPostgres(
	ctx context.Context,
	cfg *config.Config,
	manager *lifecycle.Manager,
	snapshots *snapshot.BoltStore,
	zapLogger *zap.Logger,
) (eventstore.Store, repository.CustomerReader, repository.ProductReader, *monitor.Monitor) {
	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	var detailCache *repoRedis.DetailCache
	var invalidator projection.Invalidator
	if cfg.Cache.Enabled {
		detailCache = repoRedis.NewDetailCache(redisClient, cfg.Cache.TTL, zapLogger)
		invalidator = detailCache
	}

	engine := projection.NewEngine(zapLogger, invalidator)
	fold := func(ctx context.Context, tx pgx.Tx, records []eventstore.Record) error {
		return engine.Fold(ctx, projPostgres.New(tx), records)
	}
	store := esPostgres.New(pool, fold, zapLogger)

	var customerReader repository.CustomerReader = repoPostgres.NewCustomerReader(pool)
	var productReader repository.ProductReader = repoPostgres.NewProductReader(pool)
	if detailCache != nil {
		customerReader = repoRedis.NewCachedCustomerReader(customerReader, detailCache)
		productReader = repoRedis.NewCachedProductReader(productReader, detailCache)
	}

	mon := monitor.New(pool, redisClient, snapshots, 10*time.Second, zapLogger)
	return store, customerReader, productReader, mon
}

// buildEmbedded wires the single-binary deployment: bolt event log and an
// in-process read model rebuilt from the log at boot.
func buildEmbedded(
	ctx context.Context,
	cfg *config.Config,
	manager *lifecycle.Manager,
	zapLogger *zap.Logger,
) (eventstore.Store, repository.CustomerReader, repository.ProductReader) {
	projStore := projMemory.New()
	engine := projection.NewEngine(zapLogger, nil)

	store, err := esBolt.Open(cfg.EventStore.Path, func(ctx context.Context, records []eventstore.Record) error {
		return engine.Fold(ctx, projStore, records)
	})
	if err != nil {
		zapLogger.Fatal("failed to open event store", zap.Error(err))
	}
	manager.Register("eventstore", func(ctx context.Context) error {
		return store.Close()
	})

	if err := rebuildReadModel(ctx, store, engine, projStore, zapLogger); err != nil {
		zapLogger.Fatal("read model rebuild failed", zap.Error(err))
	}

	return store, repoMemory.NewCustomerReader(projStore), repoMemory.NewProductReader(projStore)
}

// rebuildReadModel refolds every stream into the volatile in-process read
// model. Stream order does not matter: link writes are idempotent and each
// stream starts with its creation event.
func rebuildReadModel(ctx context.Context, store eventstore.Store, engine *projection.Engine, proj projection.Store, zapLogger *zap.Logger) error {
	started := time.Now()
	heads, err := store.Heads(ctx)
	if err != nil {
		return err
	}
	for _, head := range heads {
		records, err := store.Load(ctx, head.Kind, head.StreamID)
		if err != nil {
			return err
		}
		if err := engine.Fold(ctx, proj, records); err != nil {
			return err
		}
	}
	zapLogger.Info("read model rebuilt",
		zap.Int("streams", len(heads)), zap.Duration("took", time.Since(started)))
	return nil
}
