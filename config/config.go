package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for the messaging engine.
type Config struct {
	// Document store
	DBURL          string
	DBName         string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Store backend type
	StoreType string // "mongo"

	// Blob backend type
	BlobType string // "s3" or "memory"

	// S3
	S3Bucket           string
	S3Prefix           string
	S3Region           string
	S3Endpoint         string
	S3ExternalEndpoint string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	S3UsePathStyle     bool

	// Attachment behavior
	AttachmentMaxSize int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DBName:            "permitdraft",
		DBMaxOpenConns:    25,
		DBMaxIdleConns:    5,
		StoreType:         "mongo",
		BlobType:          "s3",
		AttachmentMaxSize: 10 * 1024 * 1024, // 10 MB
	}
}

// Load builds a Config from defaults, a .env file if one is present, and the
// process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays PERMITDRAFT_* environment variables onto the config.
func (c *Config) ApplyEnv() error {
	if c == nil {
		return nil
	}

	applyStringEnv("PERMITDRAFT_DB_URL", &c.DBURL)
	applyStringEnv("PERMITDRAFT_DB_NAME", &c.DBName)
	if err := applyIntEnv("PERMITDRAFT_DB_MAX_OPEN_CONNS", &c.DBMaxOpenConns); err != nil {
		return err
	}
	if err := applyIntEnv("PERMITDRAFT_DB_MAX_IDLE_CONNS", &c.DBMaxIdleConns); err != nil {
		return err
	}
	applyStringEnv("PERMITDRAFT_STORE_TYPE", &c.StoreType)
	applyStringEnv("PERMITDRAFT_BLOB_TYPE", &c.BlobType)
	applyStringEnv("PERMITDRAFT_S3_BUCKET", &c.S3Bucket)
	applyStringEnv("PERMITDRAFT_S3_PREFIX", &c.S3Prefix)
	applyStringEnv("PERMITDRAFT_S3_REGION", &c.S3Region)
	applyStringEnv("PERMITDRAFT_S3_ENDPOINT", &c.S3Endpoint)
	applyStringEnv("PERMITDRAFT_S3_EXTERNAL_ENDPOINT", &c.S3ExternalEndpoint)
	applyStringEnv("PERMITDRAFT_S3_ACCESS_KEY_ID", &c.S3AccessKeyID)
	applyStringEnv("PERMITDRAFT_S3_SECRET_ACCESS_KEY", &c.S3SecretAccessKey)
	if err := applyBoolEnv("PERMITDRAFT_S3_USE_PATH_STYLE", &c.S3UsePathStyle); err != nil {
		return err
	}
	if err := applyInt64Env("PERMITDRAFT_ATTACHMENTS_MAX_SIZE", &c.AttachmentMaxSize); err != nil {
		return err
	}
	return nil
}

func applyStringEnv(name string, target *string) {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		*target = raw
	}
}

func applyBoolEnv(name string, target *bool) error {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*target = v
	return nil
}

func applyIntEnv(name string, target *int) error {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*target = v
	return nil
}

func applyInt64Env(name string, target *int64) error {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*target = v
	return nil
}
