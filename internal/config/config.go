package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	BackendURL            string
	DatabaseURL           string
	SessionDir            string
	HTTPPort              string
	LogLevel              string
	RequestTimeoutSeconds int
}

// MemorySessionDir selects the in-memory session store instead of Badger.
const MemorySessionDir = "memory"

var AppConfig Config

func LoadConfig() error {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := Config{
		BackendURL:            strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8001"), "/"),
		DatabaseURL:           getEnv("DATABASE_URL", "contract_desk.db"),
		SessionDir:            getEnv("SESSION_DIR", ".desk/session"),
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		LogLevel:              strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		RequestTimeoutSeconds: getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 60),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSeconds)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}
	return nil
}

// UsesPostgres reports whether DatabaseURL points at a hosted PostgreSQL store.
func (c Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
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
