package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageDriverNone  = ""
	StorageDriverS3    = "s3"
	StorageDriverMinIO = "minio"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Auth0
	Auth0Domain   string
	Auth0Audience string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	// Redis membership cache (optional)
	RedisURL           string
	MembershipCacheTTL time.Duration

	// Invites per minute per actor
	InviteRateLimit int

	// Logo storage
	StorageDriver string
	S3            S3Config
	MinIO         MinIOConfig
}

// S3Config holds AWS S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for LocalStack local dev
}

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cacheTTL, err := time.ParseDuration(getEnv("MEMBERSHIP_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid MEMBERSHIP_CACHE_TTL: %w", err)
	}

	inviteRateLimit, err := strconv.Atoi(getEnv("INVITE_RATE_LIMIT", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid INVITE_RATE_LIMIT: %w", err)
	}

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Auth0Domain:        getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:      getEnv("AUTH0_AUDIENCE", ""),
		Port:               getEnv("PORT", "8080"),
		CORSOrigins:        strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:                getEnv("ENV", "development"),
		RedisURL:           getEnv("REDIS_URL", ""),
		MembershipCacheTTL: cacheTTL,
		InviteRateLimit:    inviteRateLimit,
		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverNone)),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", "dealdesk-logos"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
		},
		MinIO: MinIOConfig{
			Endpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretAccessKey: getEnv("MINIO_SECRET_KEY", ""),
			BucketName:      getEnv("MINIO_BUCKET", "dealdesk-logos"),
			UseSSL:          getEnv("MINIO_USE_SSL", "false") == "true",
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth0Domain == "" {
		return fmt.Errorf("AUTH0_DOMAIN is required")
	}
	if c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required")
	}
	if c.InviteRateLimit <= 0 {
		return fmt.Errorf("INVITE_RATE_LIMIT must be positive")
	}
	switch c.StorageDriver {
	case StorageDriverNone, StorageDriverS3, StorageDriverMinIO:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
