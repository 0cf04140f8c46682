package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	Search     SearchConfig
	Reputation ReputationConfig
	Geocoding  GeocodingConfig
	WebSocket  WebSocketConfig
	Cache      CacheConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
	Host string
}

type StorageConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
	MaxIdleConns   int
	MaxLifetime    time.Duration
}

type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type NewRelicConfig struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
	// StatsInterval is how often connection pool stats are reported
	StatsInterval time.Duration
}

// SearchConfig bounds the ride search
type SearchConfig struct {
	DefaultLimit        int
	MinLimit            int
	MaxLimit            int
	DefaultRadiusMeters float64
	DefaultTolerance    time.Duration
	// CandidateCap is the page size used to pull rides from storage when
	// the reputation filters have to run in process.
	CandidateCap int
	TimeZone     string
}

type ReputationConfig struct {
	TopTagCount int
	MaxTags     int
	RatingMin   int
	RatingMax   int
}

type GeocodingConfig struct {
	APIKey   string
	Region   string
	Language string
	Timeout  time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
}

type CacheConfig struct {
	TTLReputation time.Duration
	TTLGeocode    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", StoragePostgres),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			Name:           getEnv("DB_NAME", "carpool"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 50),
			MaxIdleConns:   getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 10),
			MaxLifetime:    time.Duration(getEnvAsInt("DB_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:     getEnvAsBool("REDIS_ENABLED", true),
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			MaxRetries:  getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 50),
			MinIdleConn: 5,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
		},
		NewRelic: NewRelicConfig{
			LicenseKey:    getEnv("NEW_RELIC_LICENSE_KEY", ""),
			AppName:       getEnv("NEW_RELIC_APP_NAME", "Carpool"),
			Enabled:       getEnvAsBool("NEW_RELIC_ENABLED", false),
			LogLevel:      getEnv("NEW_RELIC_LOG_LEVEL", "info"),
			StatsInterval: time.Duration(getEnvAsInt("NEW_RELIC_STATS_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit:        getEnvAsInt("SEARCH_DEFAULT_LIMIT", 5),
			MinLimit:            getEnvAsInt("SEARCH_MIN_LIMIT", 1),
			MaxLimit:            getEnvAsInt("SEARCH_MAX_LIMIT", 50),
			DefaultRadiusMeters: getEnvAsFloat64("SEARCH_DEFAULT_RADIUS_METERS", 5000),
			DefaultTolerance:    parseDuration(getEnv("SEARCH_DEFAULT_TOLERANCE", "30m"), 30*time.Minute),
			CandidateCap:        getEnvAsInt("SEARCH_CANDIDATE_CAP", 500),
			TimeZone:            getEnv("SEARCH_TIME_ZONE", "UTC"),
		},
		Reputation: ReputationConfig{
			TopTagCount: getEnvAsInt("REPUTATION_TOP_TAGS", 5),
			MaxTags:     getEnvAsInt("REPUTATION_MAX_TAGS", 10),
			RatingMin:   getEnvAsInt("REPUTATION_RATING_MIN", 1),
			RatingMax:   getEnvAsInt("REPUTATION_RATING_MAX", 5),
		},
		Geocoding: GeocodingConfig{
			APIKey:   getEnv("GOOGLE_MAPS_API_KEY", ""),
			Region:   getEnv("GEOCODING_REGION", "de"),
			Language: getEnv("GEOCODING_LANGUAGE", "de"),
			Timeout:  parseDuration(getEnv("GEOCODING_TIMEOUT", "5s"), 5*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
		},
		Cache: CacheConfig{
			TTLReputation: time.Duration(getEnvAsInt("CACHE_TTL_REPUTATION", 300)) * time.Second,
			TTLGeocode:    time.Duration(getEnvAsInt("CACHE_TTL_GEOCODE", 86400)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	switch c.Storage.Backend {
	case StoragePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q", StoragePostgres, StorageMemory)
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.Search.MinLimit < 1 || c.Search.MinLimit > c.Search.MaxLimit {
		return fmt.Errorf("SEARCH_MIN_LIMIT must be in [1, SEARCH_MAX_LIMIT]")
	}
	if c.Search.DefaultLimit < c.Search.MinLimit || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("SEARCH_DEFAULT_LIMIT must be within the min/max limits")
	}
	if c.Search.CandidateCap < c.Search.MaxLimit {
		return fmt.Errorf("SEARCH_CANDIDATE_CAP must be at least SEARCH_MAX_LIMIT")
	}
	if c.Search.DefaultRadiusMeters <= 0 {
		return fmt.Errorf("SEARCH_DEFAULT_RADIUS_METERS must be positive")
	}
	if _, err := c.Search.Location(); err != nil {
		return fmt.Errorf("SEARCH_TIME_ZONE: %w", err)
	}
	if c.Reputation.RatingMin > c.Reputation.RatingMax {
		return fmt.Errorf("REPUTATION_RATING_MIN must not exceed REPUTATION_RATING_MAX")
	}
	if c.Reputation.MaxTags < 1 || c.Reputation.TopTagCount < 1 {
		return fmt.Errorf("reputation tag counts must be positive")
	}
	return nil
}

// Location resolves the configured search time zone
func (s SearchConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.TimeZone)
}

// DSN builds the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
