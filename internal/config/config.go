package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config holds all service configuration loaded from environment variables
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Cache     CacheConfig
	Executor  ExecutorConfig
	Discovery DiscoveryConfig
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"300s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	SwaggerFile     string        `envconfig:"SWAGGER_FILE" default:"./docs/swagger.json"`
}

// StoreConfig selects and configures the account and schema stores
type StoreConfig struct {
	Type          string `envconfig:"STORE_TYPE" default:"mongo"` // mongo, postgres or memory
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"archie"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN" default:""`
}

// CacheConfig selects the cache used for health reports and the shared rate limiter
type CacheConfig struct {
	Type           string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	HealthTTL      time.Duration `envconfig:"HEALTH_CACHE_TTL" default:"5m"`
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"marketplace"`
}

// ExecutorConfig tunes outbound marketplace calls
type ExecutorConfig struct {
	Timeout          time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RetryAttempts    int           `envconfig:"HTTP_RETRY_ATTEMPTS" default:"3"`
	RetryBackoff     time.Duration `envconfig:"HTTP_RETRY_BACKOFF" default:"1s"`
	RateLimitBackend string        `envconfig:"RATE_LIMIT_BACKEND" default:"local"` // local, redis or none
}

// DiscoveryConfig tunes the field discovery runs
type DiscoveryConfig struct {
	Workers    int           `envconfig:"DISCOVERY_WORKERS" default:"4"`
	Interval   time.Duration `envconfig:"DISCOVERY_INTERVAL" default:"6h"`
	StaleAfter time.Duration `envconfig:"DISCOVERY_STALE_AFTER" default:"720h"`
}

// Address returns the server address in host:port format
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Level returns the zerolog level, falling back to info
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Validate rejects combinations the service cannot start with
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "mongo", "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_TYPE=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.Store.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown CACHE_TYPE %q", c.Cache.Type)
	}
	switch c.Executor.RateLimitBackend {
	case "local", "redis", "none":
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.Executor.RateLimitBackend)
	}
	if c.Discovery.Workers < 1 {
		return fmt.Errorf("DISCOVERY_WORKERS must be at least 1")
	}
	if c.Discovery.Interval <= 0 {
		return fmt.Errorf("DISCOVERY_INTERVAL must be positive")
	}
	return nil
}

// NeedsRedis reports whether any component is configured to use Redis
func (c *Config) NeedsRedis() bool {
	return c.Cache.Type == "redis" || c.Executor.RateLimitBackend == "redis"
}

// Load reads .env when present and then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
