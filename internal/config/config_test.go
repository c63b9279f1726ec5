package config

import (
	"reflect"
	"testing"
	"time"
)

// exportEnvVars lists all export-related env vars that must be cleared between tests.
var exportEnvVars = []string{
	"KNOT_EXPORT_INTERVAL", "KNOT_EXPORT_S3_BUCKET", "KNOT_EXPORT_S3_ENDPOINT",
	"KNOT_EXPORT_S3_REGION", "KNOT_EXPORT_S3_KEY", "KNOT_EXPORT_DIR",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"KNOT_DATABASE_URL", "KNOT_ADDR", "KNOT_NATS_URL", "KNOT_AUTH_TOKEN", "KNOT_WEBHOOK_URLS"} {
		t.Setenv(key, "")
	}
	for _, key := range exportEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantHTTPAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "DefaultAddress",
			env:          map[string]string{"KNOT_DATABASE_URL": "postgres://localhost/knot"},
			wantHTTPAddr: ":8008",
		},
		{
			name: "CustomAddress",
			env: map[string]string{
				"KNOT_DATABASE_URL": "postgres://db:5432/knot",
				"KNOT_ADDR":         ":3000",
				"KNOT_NATS_URL":     "nats://localhost:4222",
			},
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["KNOT_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["KNOT_DATABASE_URL"])
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoadWebhookURLs(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  string
		want []string
	}{
		{"Empty", "", nil},
		{"Single", "http://hooks.local/a", []string{"http://hooks.local/a"}},
		{"Multiple", "http://hooks.local/a,http://hooks.local/b", []string{"http://hooks.local/a", "http://hooks.local/b"}},
		{"TrimsAndDropsBlanks", " http://hooks.local/a , ,http://hooks.local/b ", []string{"http://hooks.local/a", "http://hooks.local/b"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			t.Setenv("KNOT_DATABASE_URL", "postgres://localhost/knot")
			t.Setenv("KNOT_WEBHOOK_URLS", tc.env)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cfg.WebhookURLs, tc.want) {
				t.Errorf("WebhookURLs = %#v, want %#v", cfg.WebhookURLs, tc.want)
			}
		})
	}
}

func TestLoadExportDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("KNOT_DATABASE_URL", "postgres://localhost/knot")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExportInterval != 3*time.Minute {
		t.Errorf("ExportInterval = %v, want 3m", cfg.ExportInterval)
	}
	if cfg.ExportS3Region != "us-east-1" {
		t.Errorf("ExportS3Region = %q, want %q", cfg.ExportS3Region, "us-east-1")
	}
	if cfg.ExportS3Key != "knot/export.jsonl" {
		t.Errorf("ExportS3Key = %q, want %q", cfg.ExportS3Key, "knot/export.jsonl")
	}
	if cfg.ExportDir != "" {
		t.Errorf("ExportDir = %q, want empty", cfg.ExportDir)
	}
}

func TestLoadExportCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("KNOT_DATABASE_URL", "postgres://localhost/knot")
	t.Setenv("KNOT_EXPORT_INTERVAL", "10m")
	t.Setenv("KNOT_EXPORT_S3_BUCKET", "my-bucket")
	t.Setenv("KNOT_EXPORT_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("KNOT_EXPORT_S3_REGION", "eu-west-1")
	t.Setenv("KNOT_EXPORT_S3_KEY", "custom/key.jsonl")
	t.Setenv("KNOT_EXPORT_DIR", "/var/lib/knot/exports")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExportInterval != 10*time.Minute {
		t.Errorf("ExportInterval = %v, want 10m", cfg.ExportInterval)
	}
	if cfg.ExportS3Bucket != "my-bucket" {
		t.Errorf("ExportS3Bucket = %q", cfg.ExportS3Bucket)
	}
	if cfg.ExportS3Endpoint != "http://minio:9000" {
		t.Errorf("ExportS3Endpoint = %q", cfg.ExportS3Endpoint)
	}
	if cfg.ExportS3Region != "eu-west-1" {
		t.Errorf("ExportS3Region = %q", cfg.ExportS3Region)
	}
	if cfg.ExportS3Key != "custom/key.jsonl" {
		t.Errorf("ExportS3Key = %q", cfg.ExportS3Key)
	}
	if cfg.ExportDir != "/var/lib/knot/exports" {
		t.Errorf("ExportDir = %q", cfg.ExportDir)
	}
}

func TestLoadExportInvalidInterval(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("KNOT_DATABASE_URL", "postgres://localhost/knot")
	t.Setenv("KNOT_EXPORT_INTERVAL", "not-a-duration")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid KNOT_EXPORT_INTERVAL")
	}
}

func TestLoadExportDisabled(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("KNOT_DATABASE_URL", "postgres://localhost/knot")
	t.Setenv("KNOT_EXPORT_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExportInterval != 0 {
		t.Errorf("ExportInterval = %v, want 0 (disabled)", cfg.ExportInterval)
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
