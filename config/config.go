package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"commitbet/database"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Storage configuration
	StoreDriver  string // "postgres" or "memory"
	DatabaseURL  string
	DatabaseName string

	// HTTP API configuration
	HTTPAddr string
	APIKey   string // Required in X-API-Key when set

	// Market configuration
	StartingBalance uint64

	// Redis market lock configuration
	RedisAddr     string // Empty disables cross-instance locking
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), empty disables forwarding

	// Discord announcements
	DiscordWebhookURL string

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelServiceName          string
	OTelExportIntervalMillis int

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// ConfigureLogging applies the log level and format to logrus
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	log.SetLevel(level)

	switch c.LogFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// load loads configuration from a .env file, if present, and environment variables
func load() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	config := &Config{
		StoreDriver:  getEnvWithDefault("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		HTTPAddr: getEnvWithDefault("HTTP_ADDR", ":8080"),
		APIKey:   os.Getenv("API_KEY"),

		StartingBalance: 100000,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LockTTL:       10 * time.Second,

		NATSServers: os.Getenv("NATS_SERVERS"),

		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),

		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "commitbet"),
		OTelExportIntervalMillis: 30000,

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		parsed, err := strconv.ParseUint(balance, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid STARTING_BALANCE %q: %w", balance, err)
		}
		config.StartingBalance = parsed
	}
	if ttl := os.Getenv("LOCK_TTL_SECONDS"); ttl != "" {
		seconds, err := strconv.Atoi(ttl)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("invalid LOCK_TTL_SECONDS %q", ttl)
		}
		config.LockTTL = time.Duration(seconds) * time.Second
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		parsed, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", db, err)
		}
		config.RedisDB = parsed
	}
	if interval := os.Getenv("OTEL_EXPORT_INTERVAL_MS"); interval != "" {
		parsed, err := strconv.Atoi(interval)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid OTEL_EXPORT_INTERVAL_MS %q", interval)
		}
		config.OTelExportIntervalMillis = parsed
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.Environment != "test" && c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
			return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.OTelExporterType {
	case "console", "otlp", "none":
	default:
		return fmt.Errorf("unknown OTEL_EXPORTER_TYPE %q", c.OTelExporterType)
	}

	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		StoreDriver:              StoreDriverMemory,
		HTTPAddr:                 "127.0.0.1:0",
		StartingBalance:          10000,
		LockTTL:                  time.Second,
		OTelExporterType:         "none",
		OTelServiceName:          "commitbet-test",
		OTelExportIntervalMillis: 1000,
		LogLevel:                 "debug",
		LogFormat:                "text",
		Environment:              "test",
	}
}
