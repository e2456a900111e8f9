// Package config loads service settings from a TOML file and the
// environment. Components never read the environment themselves; they get
// explicit values from here at construction.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the file.
const (
	EnvNotionToken      = "NOTION_API_KEY"
	EnvNotionDatabaseID = "NOTION_DATABASE_ID"
	EnvDatabasePath     = "FINANCE_DB_PATH"
	EnvArchiveBucket    = "GCS_BUCKET"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Notion   NotionConfig   `toml:"notion"`
	Sync     SyncConfig     `toml:"sync"`
	API      APIConfig      `toml:"api"`
	Log      LogConfig      `toml:"log"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type NotionConfig struct {
	Token      string `toml:"token"`
	DatabaseID string `toml:"database_id"`
	PageSize   int    `toml:"page_size"`
}

type SyncConfig struct {
	IncomeCategory string        `toml:"income_category"`
	FetchTimeout   time.Duration `toml:"fetch_timeout"`
	MaxAttempts    int           `toml:"max_attempts"`
	RetryBackoff   time.Duration `toml:"retry_backoff"`

	// Interval is how often the worker schedules a pass.
	Interval time.Duration `toml:"interval"`

	// ArchiveBucket, when set, receives a JSON copy of every fetched snapshot.
	ArchiveBucket   string `toml:"archive_bucket"`
	CredentialsFile string `toml:"credentials_file"`
}

type APIConfig struct {
	Port    string `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // trace, debug, info, warn, error
	Format string `toml:"format"` // console or json
}

// Default returns the configuration used for anything the file and the
// environment leave unset.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "finance.db"},
		Notion:   NotionConfig{PageSize: 100},
		Sync: SyncConfig{
			IncomeCategory: "income",
			FetchTimeout:   30 * time.Second,
			MaxAttempts:    3,
			RetryBackoff:   time.Second,
			Interval:       15 * time.Minute,
		},
		API: APIConfig{Port: "8080", Metrics: true},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("Load: reading %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("Load: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides file values with non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvNotionToken); v != "" {
		c.Notion.Token = v
	}
	if v := getenv(EnvNotionDatabaseID); v != "" {
		c.Notion.DatabaseID = v
	}
	if v := getenv(EnvDatabasePath); v != "" {
		c.Database.Path = v
	}
	if v := getenv(EnvArchiveBucket); v != "" {
		c.Sync.ArchiveBucket = v
	}
}

// Validate checks values that are wrong whatever the command. Notion
// credentials are checked by NotionConfigured, only where a sync needs them.
func (c Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must be set"))
	}
	if c.Notion.PageSize < 1 || c.Notion.PageSize > 100 {
		errs = append(errs, fmt.Errorf("notion.page_size must be between 1 and 100, got %d", c.Notion.PageSize))
	}
	if c.Sync.IncomeCategory == "" {
		errs = append(errs, errors.New("sync.income_category must be set"))
	}
	if c.Sync.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sync.fetch_timeout must be positive, got %s", c.Sync.FetchTimeout))
	}
	if c.Sync.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("sync.max_attempts must be at least 1, got %d", c.Sync.MaxAttempts))
	}
	if c.Sync.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("sync.retry_backoff must not be negative, got %s", c.Sync.RetryBackoff))
	}
	if c.Sync.Interval < time.Second {
		errs = append(errs, fmt.Errorf("sync.interval must be at least 1s, got %s", c.Sync.Interval))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// NotionConfigured reports an error naming whatever is missing to reach Notion.
func (c Config) NotionConfigured() error {
	var missing []string
	if c.Notion.Token == "" {
		missing = append(missing, "notion.token ("+EnvNotionToken+")")
	}
	if c.Notion.DatabaseID == "" {
		missing = append(missing, "notion.database_id ("+EnvNotionDatabaseID+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("notion is not configured: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
