package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const maxSignedURLTTL = 7 * 24 * time.Hour

type Config struct {
	Port          string
	Environment   string
	LogLevel      string
	DatabaseURL   string
	RedisURL      string
	JWTSecret     string
	TokenTTL      time.Duration
	GCSBucket     string
	GCSAccessID   string
	GCSPrivateKey []byte
	SignedURLTTL  time.Duration
	StoreWorkers  int
	HandshakeRate string
}

// Load читает .env файлы (переменные окружения всегда важнее) и собирает конфиг
func Load() *Config {
	loadEnvFiles()

	ttl := parseDuration(getEnv("SIGNED_URL_TTL", "168h"), maxSignedURLTTL)
	if ttl > maxSignedURLTTL {
		ttl = maxSignedURLTTL
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTL:      parseDuration(getEnv("TOKEN_TTL", "24h"), 24*time.Hour),
		GCSBucket:     getEnv("GCS_BUCKET", ""),
		GCSAccessID:   getEnv("GCS_ACCESS_ID", ""),
		GCSPrivateKey: []byte(strings.ReplaceAll(getEnv("GCS_PRIVATE_KEY", ""), `\n`, "\n")),
		SignedURLTTL:  ttl,
		StoreWorkers:  parseInt(getEnv("STORE_WORKERS", "16"), 16),
		HandshakeRate: getEnv("HANDSHAKE_RATE", "60-M"),
	}
}

func loadEnvFiles() {
	if path := os.Getenv("VOXNOTE_ENV_FILE"); path != "" {
		_ = godotenv.Load(path)
		return
	}
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseInt(s string, fallback int) int {
	val, err := strconv.Atoi(s)
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	val, err := time.ParseDuration(s)
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}
