package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Cart     CartConfig
	Throttle ThrottleConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// CartConfig carries the cart subsystem's time bounds. Reservation TTL
// caps how long a cart line holds stock; abandon TTL drives the stale
// cart sweep; idempotency TTL bounds checkout replay records.
type CartConfig struct {
	ReservationTTL  time.Duration
	AbandonTTL      time.Duration
	IdempotencyTTL  time.Duration
	ReaperCronSpec  string
	CleanupCronSpec string
	ReclaimCronSpec string
}

// ThrottleConfig holds per-scope request rates (requests per minute).
// Injected into the throttle middleware rather than read from globals.
type ThrottleConfig struct {
	CartReadPerMin  int
	CartWritePerMin int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
			Enabled:  getEnv("REDIS_ENABLED", "true") == "true",
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry: parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Cart: CartConfig{
			ReservationTTL:  time.Duration(parseInt(getEnv("CART_RESERVATION_TTL_MINUTES", "30"), 30)) * time.Minute,
			AbandonTTL:      time.Duration(parseInt(getEnv("CART_ABANDON_TTL_MINUTES", "120"), 120)) * time.Minute,
			IdempotencyTTL:  time.Duration(parseInt(getEnv("IDEMPOTENCY_TTL_HOURS", "24"), 24)) * time.Hour,
			ReaperCronSpec:  getEnv("CART_REAPER_CRON", "*/10 * * * *"),
			CleanupCronSpec: getEnv("IDEMPOTENCY_CLEANUP_CRON", "30 * * * *"),
			ReclaimCronSpec: getEnv("RESERVATION_RECLAIM_CRON", "*/15 * * * *"),
		},
		Throttle: ThrottleConfig{
			CartReadPerMin:  parseInt(getEnv("THROTTLE_CART_PER_MIN", "100"), 100),
			CartWritePerMin: parseInt(getEnv("THROTTLE_CART_WRITE_PER_MIN", "30"), 30),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
