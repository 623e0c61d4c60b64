package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	Environment string
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Redis       RedisConfig
	Archive     ArchiveConfig
	Auth        AuthConfig
	HTTP        HTTPConfig
	Entry       EntryConfig
	Import      ImportConfig
}

// DatabaseConfig holds database connection settings. An empty URL leaves the
// record store unconfigured and every gateway call fails with ErrNotConfigured.
type DatabaseConfig struct {
	URL          string
	EnsureSchema bool
}

// Configured reports whether a store URL was supplied.
func (d DatabaseConfig) Configured() bool {
	return d.URL != ""
}

// RabbitMQConfig holds RabbitMQ connection and exchange settings
type RabbitMQConfig struct {
	URL                  string
	EventsExchange       string
	EntryRoutingKey      string
	ImportRoutingKey     string
	PublishTimeoutSecond int
}

// RedisConfig holds route cache settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	RouteTTL time.Duration
}

// ArchiveConfig holds S3-compatible storage settings for uploaded import files
type ArchiveConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Configured reports whether uploads should be archived.
func (a ArchiveConfig) Configured() bool {
	return a.Bucket != "" && a.AccessKey != "" && a.SecretKey != ""
}

// AuthConfig holds login and session settings
type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	SessionTTL     time.Duration
	DefaultSecrets []string
	AdminUsername  string
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	CorsAllowedOrigins []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxUploadBytes     int64
}

// EntryConfig holds batch entry settings
type EntryConfig struct {
	MaxLines        int
	ValidPrefixes   []string
	Timezone        string
	CutoffStartDay  int
	CutoffStartHour int
	CutoffEndDay    int
	CutoffEndHour   int
}

// ImportConfig holds bulk loader settings
type ImportConfig struct {
	InsertChunkSize int
	DeleteChunkSize int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "meter-field-ops"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 8080),
		Environment: getEnv("ENV", "production"),
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			EnsureSchema: getEnvAsBool("DATABASE_ENSURE_SCHEMA", true),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                  getEnv("RABBITMQ_URL", ""),
			EventsExchange:       getEnv("RABBITMQ_EVENTS_EXCHANGE", "meter-field-ops.events.exchange"),
			EntryRoutingKey:      getEnv("RABBITMQ_ENTRY_ROUTING_KEY", "entry.submitted"),
			ImportRoutingKey:     getEnv("RABBITMQ_IMPORT_ROUTING_KEY", "import.completed"),
			PublishTimeoutSecond: getEnvAsInt("RABBITMQ_PUBLISH_TIMEOUT_SECONDS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			RouteTTL: getEnvAsDuration("REDIS_ROUTE_TTL", 5*time.Minute),
		},
		Archive: ArchiveConfig{
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Region:    getEnv("ARCHIVE_REGION", "auto"),
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			JWTIssuer:      getEnv("JWT_ISSUER", "meter-field-ops"),
			SessionTTL:     getEnvAsDuration("SESSION_TTL", 12*time.Hour),
			DefaultSecrets: getEnvAsList("DEFAULT_SECRETS", []string{"123", "password"}),
			AdminUsername:  strings.ToUpper(getEnv("ADMIN_USERNAME", "ADMIN")),
		},
		HTTP: HTTPConfig{
			CorsAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ReadTimeout:        getEnvAsDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getEnvAsDuration("HTTP_WRITE_TIMEOUT", 5*time.Minute),
			MaxUploadBytes:     int64(getEnvAsInt("HTTP_MAX_UPLOAD_MB", 32)) << 20,
		},
		Entry: EntryConfig{
			MaxLines:        getEnvAsInt("ENTRY_MAX_LINES", 75),
			ValidPrefixes:   getEnvAsList("ENTRY_VALID_PREFIXES", []string{"51804", "51803"}),
			Timezone:        getEnv("ENTRY_TIMEZONE", "Asia/Jakarta"),
			CutoffStartDay:  getEnvAsInt("ENTRY_CUTOFF_START_DAY", 28),
			CutoffStartHour: getEnvAsInt("ENTRY_CUTOFF_START_HOUR", 20),
			CutoffEndDay:    getEnvAsInt("ENTRY_CUTOFF_END_DAY", 2),
			CutoffEndHour:   getEnvAsInt("ENTRY_CUTOFF_END_HOUR", 10),
		},
		Import: ImportConfig{
			InsertChunkSize: getEnvAsInt("IMPORT_INSERT_CHUNK_SIZE", 2000),
			DeleteChunkSize: getEnvAsInt("IMPORT_DELETE_CHUNK_SIZE", 100),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set in environment variables")
	}
	if cfg.Entry.MaxLines <= 0 {
		return nil, fmt.Errorf("ENTRY_MAX_LINES must be positive, got %d", cfg.Entry.MaxLines)
	}
	if cfg.Import.InsertChunkSize <= 0 || cfg.Import.DeleteChunkSize <= 0 {
		return nil, fmt.Errorf("IMPORT_*_CHUNK_SIZE must be positive")
	}
	if _, err := time.LoadLocation(cfg.Entry.Timezone); err != nil {
		return nil, fmt.Errorf("ENTRY_TIMEZONE %q is not a known location: %w", cfg.Entry.Timezone, err)
	}

	return cfg, nil
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

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
