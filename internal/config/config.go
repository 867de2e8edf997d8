// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Marketplace MarketplaceConfig
	Scheduler   SchedulerConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
}

type MarketplaceConfig struct {
	BaseURL        string
	APIKey         string // optional; the settings table is the fallback source
	WebhookBaseURL string
}

type SchedulerConfig struct {
	Enabled              bool
	TokenRefreshInterval int // in minutes
	CatalogSyncInterval  int // in minutes
	OrderPollInterval    int // in minutes
	HealthCheckInterval  int // in minutes
	CatalogSyncBatchSize int
	OrderPollBatchSize   int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "dropmart"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
		},
		Marketplace: MarketplaceConfig{
			BaseURL:        getEnv("MARKETPLACE_BASE_URL", "https://developers.dropship-market.com/api"),
			APIKey:         getEnv("MARKETPLACE_API_KEY", ""),
			WebhookBaseURL: getEnv("MARKETPLACE_WEBHOOK_BASE_URL", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:              getEnvAsBool("SCHEDULER_ENABLED", true),
			TokenRefreshInterval: getEnvAsInt("SCHEDULER_TOKEN_REFRESH_MINUTES", 60),
			CatalogSyncInterval:  getEnvAsInt("SCHEDULER_CATALOG_SYNC_MINUTES", 360),
			OrderPollInterval:    getEnvAsInt("SCHEDULER_ORDER_POLL_MINUTES", 30),
			HealthCheckInterval:  getEnvAsInt("SCHEDULER_HEALTH_CHECK_MINUTES", 720),
			CatalogSyncBatchSize: getEnvAsInt("SCHEDULER_CATALOG_SYNC_BATCH", 50),
			OrderPollBatchSize:   getEnvAsInt("SCHEDULER_ORDER_POLL_BATCH", 50),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Marketplace.WebhookBaseURL != "" && !strings.HasPrefix(c.Marketplace.WebhookBaseURL, "https://") {
		return fmt.Errorf("marketplace webhook base URL must use https")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
