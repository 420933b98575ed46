package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/storyapp/storysync/internal/flagx"
)

// jsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals are
// given in whole seconds so config files need no duration syntax.
type jsonConfig struct {
	BaseURL                 string   `json:"base_url"`
	PushGatewayURL          string   `json:"push_gateway_url"`
	DatabasePath            string   `json:"database_path"`
	CacheDir                string   `json:"cache_dir"`
	CacheVersion            string   `json:"cache_version"`
	AppShell                []string `json:"app_shell"`
	OnlineCheckIntervalSecs int      `json:"online_check_interval_secs"`
	RetryBaseDelayMs        int      `json:"retry_base_delay_ms"`
	RetryMaxAttempts        *int     `json:"retry_max_attempts"`
}

// parseJSON overlays Config with values loaded from a JSON file.
//
// The file path comes from the -c/-config flag via flagx.JSONConfigPath; if
// neither flag is present, no JSON is loaded. Only fields present in the file
// override the current values. Panics on read or unmarshal errors.
func parseJSON(cfg *Config) {
	path := flagx.JSONConfigPath()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.BaseURL != "" {
		cfg.BaseURL = jc.BaseURL
	}
	if jc.PushGatewayURL != "" {
		cfg.PushGatewayURL = jc.PushGatewayURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.CacheDir != "" {
		cfg.CacheDir = jc.CacheDir
	}
	if jc.CacheVersion != "" {
		cfg.CacheVersion = jc.CacheVersion
	}
	if len(jc.AppShell) > 0 {
		cfg.AppShell = jc.AppShell
	}
	if jc.OnlineCheckIntervalSecs > 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckIntervalSecs) * time.Second
	}
	if jc.RetryBaseDelayMs > 0 {
		cfg.RetryBaseDelay = time.Duration(jc.RetryBaseDelayMs) * time.Millisecond
	}
	if jc.RetryMaxAttempts != nil {
		cfg.RetryMaxAttempts = *jc.RetryMaxAttempts
	}
}
