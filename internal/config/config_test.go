package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finance.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvNotionToken, "")
	t.Setenv(EnvNotionDatabaseID, "")
	t.Setenv(EnvDatabasePath, "")
	t.Setenv(EnvArchiveBucket, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Path != "finance.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Sync.IncomeCategory != "income" || cfg.Sync.MaxAttempts != 3 || cfg.Sync.FetchTimeout != 30*time.Second {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Notion.PageSize != 100 {
		t.Errorf("Notion.PageSize = %d", cfg.Notion.PageSize)
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvNotionToken, "")
	t.Setenv(EnvDatabasePath, "")

	path := writeConfig(t, `
[database]
path = "/var/lib/finance/finance.db"

[notion]
token = "secret-from-file"
database_id = "db-123"
page_size = 50

[sync]
fetch_timeout = "10s"
max_attempts = 5
retry_backoff = "250ms"
interval = "1h"

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Path != "/var/lib/finance/finance.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Notion.Token != "secret-from-file" || cfg.Notion.DatabaseID != "db-123" || cfg.Notion.PageSize != 50 {
		t.Errorf("Notion = %+v", cfg.Notion)
	}
	if cfg.Sync.FetchTimeout != 10*time.Second || cfg.Sync.MaxAttempts != 5 || cfg.Sync.RetryBackoff != 250*time.Millisecond || cfg.Sync.Interval != time.Hour {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Sync.IncomeCategory != "income" {
		t.Errorf("IncomeCategory = %q, want default kept", cfg.Sync.IncomeCategory)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if err := cfg.NotionConfigured(); err != nil {
		t.Errorf("NotionConfigured() error: %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[notion]
token = "from-file"
`)
	t.Setenv(EnvNotionToken, "from-env")
	t.Setenv(EnvNotionDatabaseID, "env-db")
	t.Setenv(EnvDatabasePath, "/tmp/env.db")
	t.Setenv(EnvArchiveBucket, "snapshots")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Notion.Token != "from-env" || cfg.Notion.DatabaseID != "env-db" {
		t.Errorf("Notion = %+v", cfg.Notion)
	}
	if cfg.Database.Path != "/tmp/env.db" || cfg.Sync.ArchiveBucket != "snapshots" {
		t.Errorf("Database.Path = %q, ArchiveBucket = %q", cfg.Database.Path, cfg.Sync.ArchiveBucket)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown key", "[notion]\ntokn = \"x\"\n", "unknown keys"},
		{"page size", "[notion]\npage_size = 500\n", "page_size"},
		{"attempts", "[sync]\nmax_attempts = 0\n", "max_attempts"},
		{"interval", "[sync]\ninterval = \"10ms\"\n", "sync.interval"},
		{"log format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"syntax", "[database\n", "reading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestNotionConfigured(t *testing.T) {
	cfg := Default()
	err := cfg.NotionConfigured()
	if err == nil || !strings.Contains(err.Error(), EnvNotionToken) || !strings.Contains(err.Error(), EnvNotionDatabaseID) {
		t.Errorf("NotionConfigured() error = %v", err)
	}
}
