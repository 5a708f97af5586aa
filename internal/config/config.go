// Package config assembles the application configuration from the
// environment.
package config

import (
	"time"

	"amenity/internal/env"
	"amenity/pkg/location"
	"amenity/pkg/overpass"
)

// Config holds all application configuration
type Config struct {
	Env      string
	Server   ServerConfig
	Search   SearchConfig
	Sessions SessionConfig
	MinIO    MinIOConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
	Redis    RedisConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// SearchConfig holds the workflow and upstream API settings.
type SearchConfig struct {
	OverpassURL          string
	OverpassConcurrency  int64
	NominatimURL         string
	UserAgent            string
	HTTPTimeout          time.Duration
	DefaultRadiusMeters  float64
	AccuracyCircle       bool
	AccuracyRadiusMeters float64
	DocumentName         string
}

// SessionConfig controls the in-memory session store.
type SessionConfig struct {
	TTL         time.Duration
	SweepPeriod time.Duration
}

// MinIOConfig holds object storage configuration. Archiving is disabled when
// Endpoint is empty.
type MinIOConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	Bucket         string
	DocumentObject string
}

// KafkaConfig holds broker configuration. Publishing is disabled when Broker
// is empty.
type KafkaConfig struct {
	Broker      string
	SearchTopic string
	ExportTopic string
	GroupID     string
}

// DatabaseConfig holds the Postgres DSN for the search log.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds cache configuration. Caching is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func (c MinIOConfig) Enabled() bool    { return c.Endpoint != "" }
func (c KafkaConfig) Enabled() bool    { return c.Broker != "" }
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }
func (c RedisConfig) Enabled() bool    { return c.Addr != "" }

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Env: env.Get("APP_ENV", "development"),
		Server: ServerConfig{
			Addr:            env.Get("HTTP_ADDR", ":8080"),
			ShutdownTimeout: env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Search: SearchConfig{
			OverpassURL:          env.Get("OVERPASS_URL", overpass.DefaultEndpoint),
			OverpassConcurrency:  int64(env.Int("OVERPASS_MAX_CONCURRENT", 4)),
			NominatimURL:         env.Get("NOMINATIM_URL", location.DefaultNominatimURL),
			UserAgent:            env.Get("USER_AGENT", overpass.DefaultUserAgent),
			HTTPTimeout:          env.Duration("HTTP_TIMEOUT", 30*time.Second),
			DefaultRadiusMeters:  env.Float("DEFAULT_RADIUS_M", 5000),
			AccuracyCircle:       env.Bool("ACCURACY_CIRCLE", true),
			AccuracyRadiusMeters: env.Float("ACCURACY_RADIUS_M", 100),
			DocumentName:         env.Get("DOCUMENT_NAME", "amenities.pdf"),
		},
		Sessions: SessionConfig{
			TTL:         env.Duration("SESSION_TTL", 2*time.Hour),
			SweepPeriod: env.Duration("SESSION_SWEEP", 5*time.Minute),
		},
		MinIO: MinIOConfig{
			Endpoint:       env.Get("MINIO_ENDPOINT", ""),
			AccessKey:      env.Get("MINIO_ACCESS_KEY", ""),
			SecretKey:      env.Get("MINIO_SECRET_KEY", ""),
			UseSSL:         env.Bool("MINIO_USE_SSL", false),
			Bucket:         env.Get("EXPORT_BUCKET", "amenity-exports"),
			DocumentObject: env.Get("DOCUMENT_OBJECT", ""),
		},
		Kafka: KafkaConfig{
			Broker:      env.Get("KAFKA_BROKER", ""),
			SearchTopic: env.Get("KAFKA_SEARCH_TOPIC", "amenity.searches"),
			ExportTopic: env.Get("KAFKA_EXPORT_TOPIC", "amenity.exports"),
			GroupID:     env.Get("KAFKA_GROUP_ID", "amenity-exportwatcher"),
		},
		Database: DatabaseConfig{
			URL: env.Get("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     env.Get("REDIS_ADDR", ""),
			Password: env.Get("REDIS_PASSWORD", ""),
			DB:       env.Int("REDIS_DB", 0),
			TTL:      env.Duration("CACHE_TTL", time.Hour),
		},
	}, nil
}
