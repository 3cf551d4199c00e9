// Package config reads the storefront configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	AdminGRPCPort      string
	LogLevel           string
	BackendBaseURL     string
	RequestTimeout     time.Duration
	BackendTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	Storage storage.Config

	CatalogCacheTTL  time.Duration
	MaxWorkspaces    int
	CookieSecure     bool
	CooldownInterval time.Duration

	// OTP endpoints allow OtpBurst requests, refilled one per OtpEvery.
	OtpEvery time.Duration
	OtpBurst int

	KafkaBrokers []string
	KafkaTopic   string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		AdminGRPCPort:      getEnv("ADMIN_GRPC_PORT", "50060"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		BackendBaseURL:     getEnv("BACKEND_BASE_URL", "http://localhost:3000"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		BackendTimeout:     getDuration("BACKEND_TIMEOUT", 10*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB

		Storage: storage.Config{
			Driver:        getEnv("STORAGE_DRIVER", storage.DriverMemory),
			TTL:           getDuration("STORAGE_TTL", 30*24*time.Hour),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDBName:   getEnv("MONGO_DB_NAME", "storefront"),
			Postgres: storage.Credentials{
				Host:     getEnv("DB_HOST", "localhost"),
				Port:     getInt("DB_PORT", 5432),
				User:     getEnv("DB_USER", "postgres"),
				Password: getEnv("DB_PASSWORD", "postgres"),
				DBName:   getEnv("DB_NAME", "storefront"),
			},
			SQLitePath: getEnv("SQLITE_PATH", "storefront.db"),
		},

		CatalogCacheTTL:  getDuration("CATALOG_CACHE_TTL", time.Minute),
		MaxWorkspaces:    getInt("MAX_WORKSPACES", 10000),
		CookieSecure:     getBool("COOKIE_SECURE", false),
		CooldownInterval: getDuration("OTP_COOLDOWN_INTERVAL", time.Second),
		OtpEvery:         getDuration("OTP_RATE_EVERY", 10*time.Second),
		OtpBurst:         max(1, getInt("OTP_RATE_BURST", 3)),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "storefront-orders"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
