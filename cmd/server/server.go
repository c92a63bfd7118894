package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/config"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/engine"
	"github.com/septivank/city-signals/internal/httpapi"
	"github.com/septivank/city-signals/internal/mq"
	"github.com/septivank/city-signals/internal/nearby"
	"github.com/septivank/city-signals/internal/repository"
	"github.com/septivank/city-signals/internal/service"
	"github.com/septivank/city-signals/internal/store"
	"github.com/septivank/city-signals/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideStore selects the document store. The repository result is nil
// for the in-memory driver.
func ProvideStore(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (store.Store, *repository.Repository, error) {
	if cfg.Store.Driver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil, nil
	}

	pool, err := db.NewPool(lc, logger, db.PoolConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		AutoMigrate: cfg.Database.AutoMigrate,
	})
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewRepository(pool)
	return repo, repo, nil
}

// ProvideSearcher builds the configured nearby strategy, optionally behind redis
func ProvideSearcher(lc fx.Lifecycle, st store.Store, repo *repository.Repository, cfg *config.Config, logger *zap.Logger) nearby.Searcher {
	var searcher nearby.Searcher
	if cfg.Nearby.Strategy == nearby.StrategyNative && repo != nil {
		searcher = nearby.NewNative(repo)
	} else {
		searcher = nearby.NewInProcess(st, cfg.Nearby.BatchSize)
	}
	logger.Info("nearby search configured", zap.String("strategy", cfg.Nearby.Strategy))

	if !cfg.Redis.Enabled() {
		return searcher
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// an unreachable cache only costs latency
			if err := rc.Ping(ctx).Err(); err != nil {
				logger.Warn("redis not reachable, nearby searches will bypass the cache", zap.Error(err))
				return nil
			}
			logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rc.Close()
		},
	})
	return nearby.NewCached(searcher, rc, cfg.Redis.NearbyTTL, logger)
}

// ProvideMQConnection connects to RabbitMQ. The connection is nil when no
// broker is configured.
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	if !cfg.RabbitMQ.Enabled() {
		logger.Info("RABBITMQ_URL not set, queue ingestion and events disabled")
		return nil, nil
	}
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvideEventPublisher returns the broker publisher or a no-op one
func ProvideEventPublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (service.EventPublisher, error) {
	if conn == nil {
		return service.NopPublisher{}, nil
	}
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideEngine creates the submission rule engine
func ProvideEngine(st store.Store, cfg *config.Config, logger *zap.Logger) *engine.Engine {
	return engine.New(st, cfg.Engine, logger)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.MaxTitleLength)
}

// ProvideResolver maps the configured tokens to roles
func ProvideResolver(cfg *config.Config) *auth.Resolver {
	return auth.NewResolver(cfg.Auth.AdminToken, cfg.Auth.ContainerAdminToken)
}

// ProvideSignalService creates a new signal service instance
func ProvideSignalService(
	st store.Store,
	eng *engine.Engine,
	v *validator.Validator,
	events service.EventPublisher,
	logger *zap.Logger,
) *service.SignalService {
	return service.NewSignalService(st, eng, v, events, logger)
}

// ProvideContainerService creates a new container service instance
func ProvideContainerService(st store.Store, searcher nearby.Searcher, events service.EventPublisher, logger *zap.Logger) *service.ContainerService {
	return service.NewContainerService(st, searcher, events, logger)
}

// ProvideHTTPServer creates the HTTP API
func ProvideHTTPServer(
	cfg *config.Config,
	signals *service.SignalService,
	containers *service.ContainerService,
	resolver *auth.Resolver,
	logger *zap.Logger,
) *httpapi.Server {
	return httpapi.New(httpapi.Config{Port: cfg.Service.Port, Limits: cfg.Nearby.Limits}, signals, containers, resolver, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *httpapi.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			srv.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("failed to stop http server", zap.Error(err))
				return err
			}
			logger.Info("http server stopped gracefully")
			return nil
		},
	})
}

// startConsumer subscribes to queued submissions when a broker is configured
func startConsumer(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	signals *service.SignalService,
) error {
	if conn == nil {
		return nil
	}

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:       conn,
		Queue:            cfg.RabbitMQ.IngestQueue,
		DLQQueue:         cfg.RabbitMQ.DLQQueue,
		Exchange:         cfg.RabbitMQ.IngestExchange,
		RoutingKey:       cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount:    cfg.RabbitMQ.PrefetchCount,
		Logger:           logger,
		MessageProcessor: signals.ProcessMessage,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	consumer.RegisterLifecycle(lc, ctx, cancel)
	logger.Info("queue consumer registered",
		zap.String("queue", cfg.RabbitMQ.IngestQueue),
		zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
	return nil
}
