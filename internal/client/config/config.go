// Package config holds runtime settings for the tripdesk client, assembled
// from defaults, an optional JSON file (-c/-config), and command-line flags.
// Later sources take precedence over earlier ones.
package config

import "time"

type Config struct {
	// APIBaseURL is the root of the back-office REST API.
	APIBaseURL string
	// DBPath is the SQLite file backing the local cache and queues.
	DBPath string
	// SyncInterval is how often the cache engine pulls all collections.
	SyncInterval time.Duration
	// OnlineCheckInterval is how often reachability is probed.
	OnlineCheckInterval time.Duration
	// RetryCeiling is the attempt limit for a replayed pending request.
	// The record is dropped (with a logged warning) once it is reached.
	RetryCeiling int
	// BackoffBase and BackoffCap bound the jittered exponential pause
	// between replay attempts during a queue drain.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// SyncedRetention is how long replayed queue intents are kept for
	// inspection before the drain garbage-collects them.
	SyncedRetention time.Duration
}

func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080/api"
	c.DBPath = "tripdesk.db"
	c.SyncInterval = 5 * time.Minute
	c.OnlineCheckInterval = 15 * time.Second
	c.RetryCeiling = 5
	c.BackoffBase = 500 * time.Millisecond
	c.BackoffCap = 30 * time.Second
	c.SyncedRetention = 7 * 24 * time.Hour
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
