// Package bootstrap wires configuration into stores, caches and application services
// for the API server and the discovery worker.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"archie-core-marketplace-layer/internal/application"
	"archie-core-marketplace-layer/internal/config"
	"archie-core-marketplace-layer/internal/infrastructure/cache"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"
	"archie-core-marketplace-layer/internal/infrastructure/pubsub"
	"archie-core-marketplace-layer/internal/infrastructure/repository"
	"archie-core-marketplace-layer/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Container holds the constructed dependencies
type Container struct {
	Accounts    ports.AccountRepository
	Schemas     ports.SchemaRepository
	Cache       ports.Cache
	Events      *pubsub.DiscoveryPubSub
	Client      *application.MarketplaceClient
	Connections *application.ConnectionService
	Credentials *application.CredentialsService
	Discovery   *application.DiscoveryService
	Health      *application.HealthService

	closers []func()
	logger  zerolog.Logger
}

// New connects the configured backends and builds the services
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	c := &Container{logger: logger}

	if err := c.initStores(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		redisClient = client
		c.closers = append(c.closers, func() { _ = client.Close() })
		logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Connected to Redis")
	}

	if cfg.Cache.Type == "redis" {
		c.Cache = cache.NewRedisCache(redisClient, cfg.Cache.RedisKeyPrefix)
	} else {
		c.Cache = cache.NewMemoryCache(cfg.Cache.HealthTTL, 2*cfg.Cache.HealthTTL)
		logger.Info().Dur("ttl", cfg.Cache.HealthTTL).
			Msg("Health cache is per process; discovery run by another process shows after the TTL")
	}

	var limiter httpexec.Limiter
	switch cfg.Executor.RateLimitBackend {
	case "redis":
		limiter = httpexec.NewRedisLimiter(redisClient, cfg.Cache.RedisKeyPrefix+":ratelimit", logger)
	case "none":
		limiter = httpexec.Unpaced{}
	default:
		limiter = httpexec.NewLocalLimiter()
	}

	executor := httpexec.NewExecutor(httpexec.Options{
		Timeout: cfg.Executor.Timeout,
		Retry: httpexec.RetryPolicy{
			MaxAttempts: cfg.Executor.RetryAttempts,
			Backoff:     cfg.Executor.RetryBackoff,
		},
		Limiter: limiter,
	}, logger)
	logger.Info().
		Str("rateLimitBackend", cfg.Executor.RateLimitBackend).
		Int("retryAttempts", executor.RetryPolicy().MaxAttempts).
		Dur("timeout", cfg.Executor.Timeout).
		Msg("Request executor ready")

	c.Events = pubsub.NewDiscoveryPubSub(logger)
	c.Client = application.NewMarketplaceClient(executor, logger)
	c.Connections = application.NewConnectionService(c.Accounts, c.Client, logger)
	c.Credentials = application.NewCredentialsService(c.Accounts, logger)
	c.Discovery = application.NewDiscoveryService(c.Accounts, c.Schemas, c.Client, c.Events, cfg.Discovery.Workers, logger)
	c.Health = application.NewHealthService(c.Schemas, c.Cache, cfg.Cache.HealthTTL, logger)

	return c, nil
}

func (c *Container) initStores(ctx context.Context, cfg *config.Config) error {
	if cfg.Store.Type == "memory" {
		c.Accounts = repository.NewMemoryAccountRepository()
		c.Schemas = repository.NewMemorySchemaRepository()
		c.logger.Warn().Msg("Using in-memory stores, data is lost on restart")
		return nil
	}

	// Accounts always live in MongoDB; STORE_TYPE picks where schema records go
	db, err := c.connectMongo(ctx, cfg)
	if err != nil {
		return err
	}
	c.Accounts = repository.NewMongoAccountRepository(db)

	if cfg.Store.Type == "postgres" {
		pg, err := repository.NewPostgresSchemaRepository(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, pg.Close)
		c.Schemas = pg
		c.logger.Info().Msg("Connected to PostgreSQL schema store")
		return nil
	}

	schemas, err := repository.NewMongoSchemaRepository(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to initialize schema repository: %w", err)
	}
	c.Schemas = schemas
	return nil
}

func (c *Container) connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Store.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	c.closers = append(c.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	c.logger.Info().Str("database", cfg.Store.MongoDatabase).Msg("Connected to MongoDB")
	return client.Database(cfg.Store.MongoDatabase), nil
}

// Close releases every connection in reverse order of creation
func (c *Container) Close() {
	if c.Events != nil {
		stats := c.Events.Stats()
		c.logger.Info().
			Int64("published", stats.Published).
			Int64("dropped", stats.Dropped).
			Msg("Discovery events delivered")
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
