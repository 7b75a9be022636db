package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	DBMaxConns    int
	DBMinConns    int
	MigrationsDir string

	// Redis
	RedisURL          string
	RedisPoolSize     int
	RedisDialTimeout  time.Duration
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration
	SessionCacheTTL   time.Duration

	// JWT
	JWTSecret string

	// Object storage (set images)
	GCSBucket           string
	GCSCDNDomain        string
	PublicBaseURL       string
	StorageEmulatorHost string

	// Quiz engine
	FeedbackClear  time.Duration
	SessionIdleTTL time.Duration

	// Workers
	ProgressWorkers int

	RateLimitPerMinute int
	LogHashSalt        string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		Env:                 getEnvOrDefault("ENV", "development"),
		DatabaseURL:         mustGetEnv("DATABASE_URL"),
		DBMaxConns:          getEnvAsIntOrDefault("DB_MAX_CONNS", 25),
		DBMinConns:          getEnvAsIntOrDefault("DB_MIN_CONNS", 5),
		MigrationsDir:       getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:            mustGetEnv("REDIS_URL"),
		RedisPoolSize:       getEnvAsIntOrDefault("REDIS_POOL_SIZE", 20),
		RedisDialTimeout:    getEnvAsDurationOrDefault("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisReadTimeout:    getEnvAsDurationOrDefault("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWriteTimeout:   getEnvAsDurationOrDefault("REDIS_WRITE_TIMEOUT", 3*time.Second),
		SessionCacheTTL:     getEnvAsDurationOrDefault("SESSION_CACHE_TTL", 24*time.Hour),
		JWTSecret:           mustGetEnv("JWT_SECRET"),
		GCSBucket:           getEnvOrDefault("GCS_BUCKET", ""),
		GCSCDNDomain:        getEnvOrDefault("GCS_CDN_DOMAIN", ""),
		PublicBaseURL:       getEnvOrDefault("OBJECT_STORAGE_PUBLIC_BASE_URL", ""),
		StorageEmulatorHost: getEnvOrDefault("STORAGE_EMULATOR_HOST", ""),
		FeedbackClear:       time.Duration(getEnvAsIntOrDefault("FEEDBACK_CLEAR_MS", 500)) * time.Millisecond,
		SessionIdleTTL:      getEnvAsDurationOrDefault("SESSION_IDLE_TTL", 30*time.Minute),
		ProgressWorkers:     getEnvAsIntOrDefault("PROGRESS_WORKERS", 2),
		RateLimitPerMinute:  getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		LogHashSalt:         getEnvOrDefault("LOG_HASH_SALT", ""),
		FrontendURL:         getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// Accepts Go duration strings ("90s", "12h").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
