package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Feed.validate(); err != nil {
		return err
	}

	if c.Analysis.Enabled {
		if c.Analysis.RestURL == "" {
			return errors.New("analysis.rest_url is required when analysis is enabled")
		}
		if c.Analysis.PollInterval <= 0 {
			return errors.New("analysis.poll_interval must be > 0")
		}
		if c.Analysis.MaxRetries < 0 {
			return errors.New("analysis.max_retries must be >= 0")
		}
	}

	if c.Archive.Enabled {
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}

func (f *FeedConfig) validate() error {
	if f.URL == "" {
		return errors.New("feed.url is required")
	}
	u, err := url.Parse(f.URL)
	if err != nil {
		return fmt.Errorf("feed.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("feed.url must use ws or wss, got %q", u.Scheme)
	}
	if f.MaxPoints < 1 {
		return errors.New("feed.max_points must be >= 1")
	}
	if f.ReconnectAttempts < 0 {
		return errors.New("feed.reconnect_attempts must be >= 0")
	}
	if f.InitialBackoff <= 0 {
		return errors.New("feed.initial_backoff must be > 0")
	}
	if f.MaxBackoff < f.InitialBackoff {
		return fmt.Errorf("feed.max_backoff (%v) cannot be less than feed.initial_backoff (%v)", f.MaxBackoff, f.InitialBackoff)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
