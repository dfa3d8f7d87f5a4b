package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	apperrors "aurora/backend/pkg/errors"
)

// Store backends
const (
	StoreNeo4j  = "neo4j"
	StoreMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	// App
	Port       string
	Env        string
	CORSOrigin string
	UploadsDir string

	// Graph store
	StoreBackend  string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Object storage
	AWSRegion    string
	AWSBucket    string
	UploadURLTTL time.Duration

	// Content
	RealmsFile        string
	EnforceRealmQuota bool
	FeedWindow        int

	// Messaging
	NATSURL             string
	ChatSendBuffer      int
	ChatMaxMessageBytes int64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:       getEnv("PORT", "8000"),
		Env:        getEnv("ENV", "development"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
		UploadsDir: getEnv("UPLOADS_DIR", "uploads"),

		StoreBackend:  getEnv("STORE_BACKEND", StoreNeo4j),
		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  time.Duration(getEnvInt("TOKEN_TTL_MINUTES", 300)) * time.Minute,

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		AWSBucket:    getEnv("AWS_BUCKET_NAME", ""),
		UploadURLTTL: time.Duration(getEnvInt("UPLOAD_URL_TTL_SECONDS", 300)) * time.Second,

		RealmsFile:        getEnv("REALMS_FILE", ""),
		EnforceRealmQuota: getEnvBool("ENFORCE_REALM_QUOTA", false),
		FeedWindow:        getEnvInt("FEED_WINDOW", 20),

		NATSURL:             getEnv("NATS_URL", ""),
		ChatSendBuffer:      getEnvInt("CHAT_SEND_BUFFER", 256),
		ChatMaxMessageBytes: int64(getEnvInt("CHAT_MAX_MESSAGE_BYTES", 64*1024)),
	}

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = "dev-secret"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return apperrors.NewConfigMissingRequired("JWT_SECRET")
	}
	if c.FeedWindow < 1 {
		return fmt.Errorf("FEED_WINDOW must be positive, got %d", c.FeedWindow)
	}
	if c.ChatSendBuffer < 1 {
		return fmt.Errorf("CHAT_SEND_BUFFER must be positive, got %d", c.ChatSendBuffer)
	}
	// Bucket and NATS are optional; the signer and relay are simply not wired without them
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}
