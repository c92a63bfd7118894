package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/septivank/city-signals/internal/engine"
	"github.com/septivank/city-signals/internal/nearby"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Service    ServiceConfig
	Database   DatabaseConfig
	Store      StoreConfig
	RabbitMQ   RabbitMQConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Engine     engine.Config
	Nearby     NearbyConfig
	Validation ValidationConfig
}

// ServiceConfig holds process level settings
type ServiceConfig struct {
	Name     string
	Port     int
	LogLevel string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL         string
	MaxConns    int32
	AutoMigrate bool
}

// StoreConfig selects the document store implementation
type StoreConfig struct {
	Driver string
}

// RabbitMQConfig holds RabbitMQ connection and queue settings.
// An empty URL disables queue ingestion and event publishing.
type RabbitMQConfig struct {
	URL              string
	IngestExchange   string
	IngestQueue      string
	IngestRoutingKey string
	EventsExchange   string
	DLQQueue         string
	PrefetchCount    int
}

// Enabled reports whether a broker is configured
func (c RabbitMQConfig) Enabled() bool { return c.URL != "" }

// RedisConfig holds the nearby cache settings. An empty Addr disables caching.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	NearbyTTL time.Duration
}

// Enabled reports whether a redis server is configured
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// AuthConfig holds the bearer tokens mapped to privileged roles
type AuthConfig struct {
	AdminToken          string
	ContainerAdminToken string
}

// NearbyConfig holds nearby search settings
type NearbyConfig struct {
	Strategy  string
	Limits    nearby.Limits
	BatchSize int
}

// ValidationConfig holds validation settings
type ValidationConfig struct {
	MaxTitleLength int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	engineDefaults := engine.DefaultConfig()

	cfg := &Config{
		Service: ServiceConfig{
			Name:     getEnv("SERVICE_NAME", "city-signals"),
			Port:     getEnvAsInt("SERVICE_PORT", 8080),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			MaxConns:    int32(getEnvAsInt("DATABASE_MAX_CONNS", 10)),
			AutoMigrate: getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			IngestExchange:   getEnv("RABBITMQ_INGEST_EXCHANGE", "city-signals.ingest.exchange"),
			IngestQueue:      getEnv("RABBITMQ_INGEST_QUEUE", "city-signals.ingest.queue"),
			IngestRoutingKey: getEnv("RABBITMQ_INGEST_ROUTING_KEY", "signal.submitted"),
			EventsExchange:   getEnv("RABBITMQ_EVENTS_EXCHANGE", "city-signals.events.exchange"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "city-signals.ingest.dlq"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			NearbyTTL: getEnvAsDuration("REDIS_NEARBY_TTL", 30*time.Second),
		},
		Auth: AuthConfig{
			AdminToken:          getEnv("ADMIN_TOKEN", ""),
			ContainerAdminToken: getEnv("CONTAINER_ADMIN_TOKEN", ""),
		},
		Engine: engine.Config{
			MaxReportDistanceMeters: getEnvAsFloat("ENGINE_MAX_REPORT_DISTANCE_METERS", engineDefaults.MaxReportDistanceMeters),
			PublicNumberPrefix:      getEnv("ENGINE_PUBLIC_NUMBER_PREFIX", engineDefaults.PublicNumberPrefix),
			Defaults: engine.ContainerDefaults{
				Status:         engineDefaults.Defaults.Status,
				WasteType:      engineDefaults.Defaults.WasteType,
				CapacitySize:   engineDefaults.Defaults.CapacitySize,
				CapacityVolume: getEnvAsFloat("ENGINE_DEFAULT_CAPACITY_VOLUME", engineDefaults.Defaults.CapacityVolume),
				NotePrefix:     engineDefaults.Defaults.NotePrefix,
				DefaultName:    getEnv("ENGINE_DEFAULT_CONTAINER_NAME", engineDefaults.Defaults.DefaultName),
			},
		},
		Nearby: NearbyConfig{
			Strategy: strings.ToLower(getEnv("NEARBY_STRATEGY", nearby.StrategyInProcess)),
			Limits: nearby.Limits{
				DefaultRadius: getEnvAsFloat("NEARBY_DEFAULT_RADIUS", nearby.DefaultLimits.DefaultRadius),
				MaxRadius:     getEnvAsFloat("NEARBY_MAX_RADIUS", nearby.DefaultLimits.MaxRadius),
				DefaultLimit:  getEnvAsInt("NEARBY_DEFAULT_LIMIT", nearby.DefaultLimits.DefaultLimit),
				MaxLimit:      getEnvAsInt("NEARBY_MAX_LIMIT", nearby.DefaultLimits.MaxLimit),
			},
			BatchSize: getEnvAsInt("NEARBY_BATCH_SIZE", 500),
		},
		Validation: ValidationConfig{
			MaxTitleLength: getEnvAsInt("VALIDATION_MAX_TITLE_LENGTH", 200),
		},
	}

	policies, err := loadPolicies(engineDefaults.Policies)
	if err != nil {
		return nil, err
	}
	cfg.Engine.Policies = policies

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadPolicies(defaults engine.Policies) (engine.Policies, error) {
	p := defaults
	for _, item := range []struct {
		key    string
		target *engine.Policy
	}{
		{"ENGINE_PROXIMITY_POLICY", &p.Proximity},
		{"ENGINE_PROVISION_POLICY", &p.Provision},
		{"ENGINE_DEDUP_POLICY", &p.Dedup},
	} {
		raw := os.Getenv(item.key)
		if raw == "" {
			continue
		}
		policy, err := engine.ParsePolicy(raw)
		if err != nil {
			return p, fmt.Errorf("%s: %w", item.key, err)
		}
		*item.target = policy
	}
	return p, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required but not set in environment variables")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver)
	}

	switch c.Nearby.Strategy {
	case nearby.StrategyInProcess:
	case nearby.StrategyNative:
		if c.Store.Driver != DriverPostgres {
			return fmt.Errorf("NEARBY_STRATEGY %q requires STORE_DRIVER %q", nearby.StrategyNative, DriverPostgres)
		}
	default:
		return fmt.Errorf("NEARBY_STRATEGY must be %q or %q, got %q", nearby.StrategyInProcess, nearby.StrategyNative, c.Nearby.Strategy)
	}

	if c.Engine.MaxReportDistanceMeters <= 0 {
		return fmt.Errorf("ENGINE_MAX_REPORT_DISTANCE_METERS must be positive")
	}
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("SERVICE_PORT must be between 1 and 65535")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
