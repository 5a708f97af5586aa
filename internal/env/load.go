package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadEnv loads a .env file from the working directory when present.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug().Msg("No .env file found, assuming environment variables are set directly.")
	}
}

func MustGetEnv(key string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		log.Fatal().Str("key", key).Msg("environment variable not set")
	}
	return val
}

// Get returns the value of key, or defaultValue when it is unset or empty.
func Get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func Int(key string, defaultValue int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(Get(key, ""))); err == nil {
		return n
	}
	return defaultValue
}

func Float(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(Get(key, "")), 64); err == nil {
		return f
	}
	return defaultValue
}

func Bool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(Get(key, ""))); err == nil {
		return b
	}
	return defaultValue
}

func Duration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(Get(key, ""))); err == nil {
		return d
	}
	return defaultValue
}
