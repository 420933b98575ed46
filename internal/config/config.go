// Package config holds runtime settings for the story sync client. Values are
// layered: built-in defaults, then an optional JSON file, then command-line
// flags, with later sources taking precedence.
package config

import "time"

// Config holds runtime settings for the sync client.
//
// Units: intervals and delays are time.Durations; RetryMaxAttempts counts
// retries after the first attempt (0 disables retrying).
type Config struct {
	// BaseURL is the root of the story API, e.g. "https://story-api.example.com/v1".
	BaseURL string
	// PushGatewayURL is the websocket endpoint delivering push events.
	PushGatewayURL string
	// DatabasePath is the SQLite file holding local collections.
	DatabasePath string
	// CacheDir is the directory for the on-disk response cache.
	CacheDir string
	// CacheVersion tags the active response-cache namespace; bumping it
	// invalidates every previously cached response on activation.
	CacheVersion string
	// AppShell lists the URLs precached on install.
	AppShell []string

	OnlineCheckInterval time.Duration
	RetryBaseDelay      time.Duration
	RetryMaxAttempts    int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "https://story-api.dicoding.dev/v1"
	c.PushGatewayURL = "wss://story-api.dicoding.dev/push"
	c.DatabasePath = "story-app.db"
	c.CacheDir = "story-app-cache"
	c.CacheVersion = "story-app-v1"
	c.AppShell = []string{
		"/",
		"/index.html",
		"/manifest.json",
		"/images/logo-192.png",
		"/images/logo-512.png",
	}
	c.OnlineCheckInterval = 3 * time.Second
	c.RetryBaseDelay = 500 * time.Millisecond
	c.RetryMaxAttempts = 2
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}
