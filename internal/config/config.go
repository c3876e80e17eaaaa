package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port        int
	LogLevel    string
	LogFormat   string
	Environment string
	LogDir      string
	APIKey      string // API key for authentication

	DBUser            string
	DBPassword        string
	DBHost            string
	DBPort            string
	DBName            string
	DBMaxConns        int
	DBMaxConnIdleTime time.Duration
	DBMaxConnLifetime time.Duration

	// Farm definition loaded at startup
	FarmConfigPath string

	// Settlement engine
	SettlementWorkers   int
	SettlementQueueSize int
	DeadLetterPath      string

	// Remote registries holding token balances and collection items
	TokenRegistryURL string
	ItemRegistryURL  string
	RegistryAPIKey   string
	RegistryTimeout  time.Duration

	// Discord alerting, disabled when the token is empty
	DiscordToken          string
	DiscordAlertChannelID string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		Environment: getEnv("ENVIRONMENT", "dev"),
		LogDir:      getEnv("LOG_DIR", "logs"),
		APIKey:      getEnv("API_KEY", ""),

		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBName:            getEnv("DB_NAME", "farmd"),
		DBMaxConns:        getEnvAsInt("DB_MAX_CONNS", DefaultDBMaxConns),
		DBMaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", DefaultDBMaxConnIdleTime),
		DBMaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", DefaultDBMaxConnLifetime),

		FarmConfigPath: getEnv("FARM_CONFIG", ConfigPathFarm),

		SettlementWorkers:   getEnvAsInt("SETTLEMENT_WORKERS", DefaultSettlementWorkers),
		SettlementQueueSize: getEnvAsInt("SETTLEMENT_QUEUE_SIZE", DefaultSettlementQueueSize),
		DeadLetterPath:      getEnv("DEAD_LETTER_PATH", DefaultDeadLetterPath),

		TokenRegistryURL: getEnv("TOKEN_REGISTRY_URL", "http://localhost:9091"),
		ItemRegistryURL:  getEnv("ITEM_REGISTRY_URL", "http://localhost:9092"),
		RegistryAPIKey:   getEnv("REGISTRY_API_KEY", ""),
		RegistryTimeout:  getEnvAsDuration("REGISTRY_TIMEOUT", DefaultRegistryTimeout),

		DiscordToken:          getEnv("DISCORD_TOKEN", ""),
		DiscordAlertChannelID: getEnv("DISCORD_ALERT_CHANNEL_ID", ""),
	}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT value: %w", err)
	}
	cfg.Port = port

	// Validate API key is set
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY environment variable must be set for security")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as int, falling back to the
// default on missing or unparseable values
func getEnvAsInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvAsDuration retrieves an environment variable as a time.Duration,
// falling back to the default on missing or unparseable values
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// AlertsEnabled reports whether Discord alerting is configured
func (c *Config) AlertsEnabled() bool {
	return c.DiscordToken != "" && c.DiscordAlertChannelID != ""
}

// GetDBConnString returns the PostgreSQL connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}
