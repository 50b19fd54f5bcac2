package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID        = "feedclient"
	DefaultFeedURL           = "ws://localhost:8080/ws/timeseries"
	DefaultMaxPoints         = 100
	DefaultReconnectAttempts = 5
	DefaultInitialBackoff    = 1000 * time.Millisecond
	DefaultMaxBackoff        = 30000 * time.Millisecond
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultPingInterval      = 15 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultRestURL           = "http://localhost:8082"
	DefaultPollInterval      = 5 * time.Second
	DefaultAPITimeout        = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultArchiveBuffer     = 10000
	DefaultHTTPPort          = 9090
	DefaultMetricsNamespace  = "tsfeed"
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Feed defaults
	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if c.Feed.MaxPoints == 0 {
		c.Feed.MaxPoints = DefaultMaxPoints
	}
	if c.Feed.ReconnectAttempts == 0 {
		c.Feed.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.Feed.InitialBackoff == 0 {
		c.Feed.InitialBackoff = DefaultInitialBackoff
	}
	if c.Feed.MaxBackoff == 0 {
		c.Feed.MaxBackoff = DefaultMaxBackoff
	}
	if c.Feed.HandshakeTimeout == 0 {
		c.Feed.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}

	// Analysis defaults
	if c.Analysis.RestURL == "" {
		c.Analysis.RestURL = DefaultRestURL
	}
	if c.Analysis.PollInterval == 0 {
		c.Analysis.PollInterval = DefaultPollInterval
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = DefaultAPITimeout
	}
	if c.Analysis.MaxRetries == 0 {
		c.Analysis.MaxRetries = DefaultMaxRetries
	}

	// Archive defaults
	applyDBDefaults(&c.Archive.Database)
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultArchiveBuffer
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
