// Package config loads board server settings from the environment and CLI
// remote profiles from a TOML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config is the server configuration.
type Config struct {
	DatabaseURL string     // BOARD_DATABASE_URL (required)
	GRPCAddr    string     // BOARD_GRPC_ADDR (default ":9090")
	HTTPAddr    string     // BOARD_HTTP_ADDR (default ":8080")
	NATSURL     string     // BOARD_NATS_URL (optional, empty = no cross-replica events)
	AuthToken   string     // BOARD_AUTH_TOKEN (optional, empty = auth disabled)
	ReplicaID   string     // BOARD_REPLICA_ID (optional, generated when empty)
	LogLevel    slog.Level // BOARD_LOG_LEVEL (default "info")

	// Backup settings
	BackupInterval   time.Duration // BOARD_BACKUP_INTERVAL (default 5m; 0 = disabled)
	BackupS3Bucket   string        // BOARD_BACKUP_S3_BUCKET (enables S3 when set)
	BackupS3Endpoint string        // BOARD_BACKUP_S3_ENDPOINT (custom endpoint for MinIO)
	BackupS3Region   string        // BOARD_BACKUP_S3_REGION (default "us-east-1")
	BackupS3Key      string        // BOARD_BACKUP_S3_KEY (default "board/<replica>/comments.jsonl")
	BackupGitRepo    string        // BOARD_BACKUP_GIT_REPO (enables git when set; path to clone)
	BackupGitFile    string        // BOARD_BACKUP_GIT_FILE (default "comments.jsonl")
	BackupGitBranch  string        // BOARD_BACKUP_GIT_BRANCH (default "main")
}

// BackupEnabled reports whether any backup destination is configured.
func (c *Config) BackupEnabled() bool {
	return c.BackupInterval > 0 && (c.BackupS3Bucket != "" || c.BackupGitRepo != "")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("BOARD_DATABASE_URL"),
		GRPCAddr:         envOrDefault("BOARD_GRPC_ADDR", ":9090"),
		HTTPAddr:         envOrDefault("BOARD_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("BOARD_NATS_URL"),
		AuthToken:        os.Getenv("BOARD_AUTH_TOKEN"),
		ReplicaID:        os.Getenv("BOARD_REPLICA_ID"),
		BackupS3Bucket:   os.Getenv("BOARD_BACKUP_S3_BUCKET"),
		BackupS3Endpoint: os.Getenv("BOARD_BACKUP_S3_ENDPOINT"),
		BackupS3Region:   envOrDefault("BOARD_BACKUP_S3_REGION", "us-east-1"),
		BackupS3Key:      os.Getenv("BOARD_BACKUP_S3_KEY"),
		BackupGitRepo:    os.Getenv("BOARD_BACKUP_GIT_REPO"),
		BackupGitFile:    envOrDefault("BOARD_BACKUP_GIT_FILE", "comments.jsonl"),
		BackupGitBranch:  envOrDefault("BOARD_BACKUP_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("BOARD_DATABASE_URL is required")
	}

	d, err := time.ParseDuration(envOrDefault("BOARD_BACKUP_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("BOARD_BACKUP_INTERVAL: %w", err)
	}
	if d < 0 {
		return nil, fmt.Errorf("BOARD_BACKUP_INTERVAL: must not be negative")
	}
	c.BackupInterval = d

	if err := c.LogLevel.UnmarshalText([]byte(strings.ToUpper(envOrDefault("BOARD_LOG_LEVEL", "info")))); err != nil {
		return nil, fmt.Errorf("BOARD_LOG_LEVEL: %w", err)
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
