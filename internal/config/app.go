package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig carries the infrastructure settings the pipeline's outer layers
// need: warehouse, cache, object storage, and the API secret for the serve
// mode. Simulation behavior lives in SimulationConfig instead.
type AppConfig struct {
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	APISecret  string
	ListenAddr string

	OutputDir string
}

// LoadApp reads configuration from the environment, with a best-effort .env
// load first. Only DATABASE_URL has no usable default; callers that never
// touch the warehouse may ignore the error from RequireDatabase.
func LoadApp() *AppConfig {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg := &AppConfig{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		MinioEndpoint:  envOr("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: envOr("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: envOr("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		MinioBucket:    envOr("MINIO_BUCKET", "simulation-exports"),
		APISecret:      os.Getenv("API_SECRET"),
		ListenAddr:     envOr("LISTEN_ADDR", ":8080"),
		OutputDir:      envOr("OUTPUT_DIR", "simulation_output"),
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.RedisDB = db
		}
	}

	return cfg
}

// RequireDatabase fails when no warehouse DSN is configured.
func (c *AppConfig) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
