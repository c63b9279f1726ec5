package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string   // KNOT_DATABASE_URL (required)
	HTTPAddr    string   // KNOT_ADDR (default ":8008")
	NATSURL     string   // KNOT_NATS_URL (optional, empty = no events)
	AuthToken   string   // KNOT_AUTH_TOKEN (optional, empty = auth disabled)
	WebhookURLs []string // KNOT_WEBHOOK_URLS (comma-separated; forwarding needs NATS)

	// Export settings
	ExportInterval   time.Duration // KNOT_EXPORT_INTERVAL (default 3m; 0 = disabled)
	ExportS3Bucket   string        // KNOT_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // KNOT_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // KNOT_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // KNOT_EXPORT_S3_KEY (default "knot/export.jsonl")
	ExportDir        string        // KNOT_EXPORT_DIR (enables local snapshots when set)
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("KNOT_DATABASE_URL"),
		HTTPAddr:         envOrDefault("KNOT_ADDR", ":8008"),
		NATSURL:          os.Getenv("KNOT_NATS_URL"),
		AuthToken:        os.Getenv("KNOT_AUTH_TOKEN"),
		WebhookURLs:      splitList(os.Getenv("KNOT_WEBHOOK_URLS")),
		ExportS3Bucket:   os.Getenv("KNOT_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("KNOT_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("KNOT_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("KNOT_EXPORT_S3_KEY", "knot/export.jsonl"),
		ExportDir:        os.Getenv("KNOT_EXPORT_DIR"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("KNOT_DATABASE_URL is required")
	}

	intervalStr := envOrDefault("KNOT_EXPORT_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("KNOT_EXPORT_INTERVAL: %w", err)
		}
		c.ExportInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList parses a comma-separated env value, dropping blanks.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
