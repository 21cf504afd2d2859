package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the weather archive services.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Weather  WeatherConfig
	Ingest   IngestConfig
	Render   RenderConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries object store connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	RawBucket       string
	ProcessedBucket string
	VideoBucket     string
	UseSSL          bool
	Region          string
	UploadURLTTL    time.Duration
	ReadURLTTL      time.Duration
}

// RedisConfig contains cache connection details.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	FeedTTL  time.Duration
	DatesTTL time.Duration
}

// AuthConfig groups the capability credential settings.
type AuthConfig struct {
	APIKey string
}

// WeatherConfig points at the hourly weather data sources.
type WeatherConfig struct {
	ForecastURL string
	ArchiveURL  string
	Timeout     time.Duration
}

// IngestConfig parameterizes the ingestion worker's reconcile sweep.
type IngestConfig struct {
	ReconcileInterval time.Duration
}

// RenderConfig parameterizes the daily timelapse job.
type RenderConfig struct {
	FFmpegPath string
	Interval   time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("ARCHIVE_API_HOST", "0.0.0.0"),
			Port:         getInt("ARCHIVE_API_PORT", 8080),
			ReadTimeout:  getDuration("ARCHIVE_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("ARCHIVE_API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("ARCHIVE_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "archive_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "weather_archive"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "archive"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			RawBucket:       getString("MINIO_RAW_BUCKET", "weather-raw"),
			ProcessedBucket: getString("MINIO_PROCESSED_BUCKET", "weather-processed"),
			VideoBucket:     getString("MINIO_VIDEO_BUCKET", "weather-videos"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
			UploadURLTTL:    getDuration("ARCHIVE_UPLOAD_URL_TTL", 5*time.Minute),
			ReadURLTTL:      getDuration("ARCHIVE_READ_URL_TTL", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", "localhost:6379"),
			Username: getString("REDIS_USERNAME", ""),
			Password: getString("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			FeedTTL:  getDuration("ARCHIVE_CACHE_FEED_TTL", 60*time.Second),
			DatesTTL: getDuration("ARCHIVE_CACHE_DATES_TTL", 3500*time.Second),
		},
		Auth: AuthConfig{
			APIKey: getString("ARCHIVE_API_KEY", ""),
		},
		Weather: WeatherConfig{
			ForecastURL: getString("WEATHER_FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
			ArchiveURL:  getString("WEATHER_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive"),
			Timeout:     getDuration("WEATHER_HTTP_TIMEOUT", 3*time.Second),
		},
		Ingest: IngestConfig{
			ReconcileInterval: getDuration("ARCHIVE_RECONCILE_INTERVAL", 5*time.Minute),
		},
		Render: RenderConfig{
			FFmpegPath: getString("ARCHIVE_FFMPEG_PATH", "ffmpeg"),
			Interval:   getDuration("ARCHIVE_RENDER_INTERVAL", 24*time.Hour),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("ARCHIVE_METRICS_PATH", "/metrics"),
		},
	}

	if cfg.Auth.APIKey == "" {
		return cfg, fmt.Errorf("ARCHIVE_API_KEY must be set")
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
