package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage backends accepted in STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// LLM providers accepted in LLM_PROVIDER.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const defaultJWTSecret = "short-drama-factory-secret-key-change-in-production"

// Config holds all configuration values from environment.
type Config struct {
	AppPort        string
	AllowedOrigins string
	BaseURL        string

	StorageBackend string
	SQLitePath     string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string

	JWTSecret string

	// Generation backends. An empty URL means that backend runs in mock mode.
	UseMockAI         bool
	LLMProvider       string
	OllamaURL         string
	OllamaModel       string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	ComfyUIURL        string
	ComfyUICheckpoint string
	LTXVideoURL       string

	RedisHost string
	RedisPort string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioSSL       bool
	// MinioPublicURL is the base browsers use to load assets; empty means the endpoint.
	MinioPublicURL string
	UploadDir      string

	// Queue simulation
	QueueSweepInterval time.Duration
	QueueStepDelay     time.Duration
	QueueUseAI         bool
}

// LoadConfig loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment values win.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	useMock, err := envBool("USE_MOCK_AI", false)
	if err != nil {
		return nil, err
	}
	minioSSL, err := envBool("MINIO_SSL", false)
	if err != nil {
		return nil, err
	}
	queueUseAI, err := envBool("QUEUE_USE_AI", false)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := envDuration("QUEUE_SWEEP_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}
	stepDelay, err := envDuration("QUEUE_STEP_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppPort:        envOr("PORT", "8080"),
		AllowedOrigins: envOr("ALLOWED_ORIGINS", "http://localhost:3000"),
		BaseURL:        os.Getenv("BASE_URL"),

		StorageBackend: envOr("STORAGE_BACKEND", BackendSQLite),
		SQLitePath:     envOr("SQLITE_PATH", filepath.Join("data", "short-drama.db")),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         envOr("DB_PORT", "5432"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),

		JWTSecret: envOr("JWT_SECRET", defaultJWTSecret),

		UseMockAI:         useMock,
		LLMProvider:       envOr("LLM_PROVIDER", ProviderOllama),
		OllamaURL:         os.Getenv("OLLAMA_URL"),
		OllamaModel:       envOr("OLLAMA_MODEL", "glm-4.7-flash"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		ComfyUIURL:        os.Getenv("COMFYUI_URL"),
		ComfyUICheckpoint: envOr("COMFYUI_CHECKPOINT", "sd15_v1.4.safetensors"),
		LTXVideoURL:       os.Getenv("LTX_VIDEO_URL"),

		RedisHost: os.Getenv("REDIS_HOST"),
		RedisPort: envOr("REDIS_PORT", "6379"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    envOr("MINIO_BUCKET", "short-drama-assets"),
		MinioRegion:    os.Getenv("MINIO_REGION"),
		MinioSSL:       minioSSL,
		MinioPublicURL: os.Getenv("MINIO_PUBLIC_URL"),
		UploadDir:      envOr("UPLOAD_DIR", filepath.Join("data", "uploads")),

		QueueSweepInterval: sweepInterval,
		QueueStepDelay:     stepDelay,
		QueueUseAI:         queueUseAI,
	}

	switch cfg.StorageBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if cfg.DBHost == "" || cfg.DBUser == "" || cfg.DBName == "" {
			return nil, fmt.Errorf("database configuration is incomplete")
		}
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}

	switch cfg.LLMProvider {
	case ProviderOllama:
	case ProviderOpenAI:
		if cfg.OpenAIBaseURL == "" && cfg.OpenAIAPIKey == "" {
			log.Printf("LLM_PROVIDER=openai without OPENAI_BASE_URL or OPENAI_API_KEY, text generation runs in mock mode")
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.LLMProvider)
	}

	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return nil, fmt.Errorf("minio configuration is incomplete")
	}

	return cfg, nil
}

// RedisEnabled reports whether a Redis server is configured.
func (c *Config) RedisEnabled() bool { return c.RedisHost != "" }

// MinioEnabled reports whether MinIO should hold uploaded assets.
func (c *Config) MinioEnabled() bool { return c.MinioEndpoint != "" }

// LLMConfigured reports whether any text generation upstream is reachable in principle.
func (c *Config) LLMConfigured() bool {
	if c.UseMockAI {
		return false
	}
	if c.LLMProvider == ProviderOpenAI {
		return c.OpenAIBaseURL != "" || c.OpenAIAPIKey != ""
	}
	return c.OllamaURL != ""
}

// ConnectDatabase opens the relational store selected by StorageBackend.
// It must not be called for the memory backend.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	switch cfg.StorageBackend {
	case BackendPostgres:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		db, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		return db, nil
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("could not create data directory: %w", err)
		}
		dsn := cfg.SQLitePath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("backend %s has no relational database", cfg.StorageBackend)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value: %v", key, err)
	}
	return val, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %v", key, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value: must be positive", key)
	}
	return val, nil
}
