package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-client
feed:
  url: ws://feed.internal:8082/api/v1/data/ws
  max_points: 250
  reconnect_attempts: 3
  initial_backoff: 500ms
  max_backoff: 10s
  clear_on_reconnect: true
analysis:
  enabled: true
  rest_url: http://feed.internal:8082
  poll_interval: 2s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-client" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-client")
	}
	if cfg.Feed.URL != "ws://feed.internal:8082/api/v1/data/ws" {
		t.Errorf("Feed.URL = %q, want %q", cfg.Feed.URL, "ws://feed.internal:8082/api/v1/data/ws")
	}
	if cfg.Feed.MaxPoints != 250 {
		t.Errorf("Feed.MaxPoints = %d, want 250", cfg.Feed.MaxPoints)
	}
	if cfg.Feed.ReconnectAttempts != 3 {
		t.Errorf("Feed.ReconnectAttempts = %d, want 3", cfg.Feed.ReconnectAttempts)
	}
	if cfg.Feed.InitialBackoff != 500*time.Millisecond {
		t.Errorf("Feed.InitialBackoff = %v, want 500ms", cfg.Feed.InitialBackoff)
	}
	if cfg.Feed.MaxBackoff != 10*time.Second {
		t.Errorf("Feed.MaxBackoff = %v, want 10s", cfg.Feed.MaxBackoff)
	}
	if !cfg.Feed.ClearOnReconnect {
		t.Error("Feed.ClearOnReconnect = false, want true")
	}
	if !cfg.Analysis.Enabled {
		t.Error("Analysis.Enabled = false, want true")
	}
	if cfg.Analysis.PollInterval != 2*time.Second {
		t.Errorf("Analysis.PollInterval = %v, want 2s", cfg.Analysis.PollInterval)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_FEED_HOST", "stream.example.com")

	yaml := `
feed:
  url: wss://${TEST_FEED_HOST}/ws/timeseries
archive:
  enabled: true
  database:
    host: localhost
    name: test_ts
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Archive.Database.Password != "secret123" {
		t.Errorf("Archive.Database.Password = %q, want %q", cfg.Archive.Database.Password, "secret123")
	}
	if cfg.Feed.URL != "wss://stream.example.com/ws/timeseries" {
		t.Errorf("Feed.URL = %q, want %q", cfg.Feed.URL, "wss://stream.example.com/ws/timeseries")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "feed: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid yaml, got nil")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-client
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Feed.URL != DefaultFeedURL {
		t.Errorf("Feed.URL = %q, want default %q", cfg.Feed.URL, DefaultFeedURL)
	}
	if cfg.Feed.MaxPoints != DefaultMaxPoints {
		t.Errorf("Feed.MaxPoints = %d, want default %d", cfg.Feed.MaxPoints, DefaultMaxPoints)
	}
	if cfg.Feed.ReconnectAttempts != DefaultReconnectAttempts {
		t.Errorf("Feed.ReconnectAttempts = %d, want default %d", cfg.Feed.ReconnectAttempts, DefaultReconnectAttempts)
	}
	if cfg.Feed.InitialBackoff != time.Second {
		t.Errorf("Feed.InitialBackoff = %v, want 1s", cfg.Feed.InitialBackoff)
	}
	if cfg.Feed.MaxBackoff != 30*time.Second {
		t.Errorf("Feed.MaxBackoff = %v, want 30s", cfg.Feed.MaxBackoff)
	}
	if cfg.Analysis.RestURL != DefaultRestURL {
		t.Errorf("Analysis.RestURL = %q, want default %q", cfg.Analysis.RestURL, DefaultRestURL)
	}
	if cfg.Archive.Database.Port != DefaultDBPort {
		t.Errorf("Archive.Database.Port = %d, want default %d", cfg.Archive.Database.Port, DefaultDBPort)
	}
	if cfg.HTTP.Port != DefaultHTTPPort {
		t.Errorf("HTTP.Port = %d, want default %d", cfg.HTTP.Port, DefaultHTTPPort)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "non websocket url",
			mutate:  func(c *Config) { c.Feed.URL = "http://localhost:8080" },
			wantErr: `feed.url must use ws or wss, got "http"`,
		},
		{
			name:    "negative max points",
			mutate:  func(c *Config) { c.Feed.MaxPoints = -1 },
			wantErr: "feed.max_points must be >= 1",
		},
		{
			name:    "negative reconnect attempts",
			mutate:  func(c *Config) { c.Feed.ReconnectAttempts = -2 },
			wantErr: "feed.reconnect_attempts must be >= 0",
		},
		{
			name: "max backoff below initial",
			mutate: func(c *Config) {
				c.Feed.InitialBackoff = 2 * time.Second
				c.Feed.MaxBackoff = time.Second
			},
			wantErr: "feed.max_backoff (1s) cannot be less than feed.initial_backoff (2s)",
		},
		{
			name: "archive missing host",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
			},
			wantErr: "archive.database.host is required",
		},
		{
			name: "archive missing password",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Database.Host = "localhost"
				c.Archive.Database.Name = "db"
				c.Archive.Database.User = "user"
			},
			wantErr: "archive.database.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "archive.database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "archive disabled skips database checks",
			mutate: func(c *Config) {
				c.Archive.Database = DBConfig{}
			},
			wantErr: "",
		},
		{
			name:    "http port out of range",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: "http.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: `metrics.path must start with /, got "metrics"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := LogConfig{Level: tt.level}.SlogLevel()
		if got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
