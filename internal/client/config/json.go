package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tripdesk/internal/flagx"
	"github.com/dmitrijs2005/tripdesk/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals may
// be given either as strings like "5m" or as integer nanoseconds.
type JsonConfig struct {
	APIBaseURL          string         `json:"api_base_url"`
	DBPath              string         `json:"db_path"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	RetryCeiling        int            `json:"retry_ceiling"`
	BackoffBase         timex.Duration `json:"backoff_base"`
	BackoffCap          timex.Duration `json:"backoff_cap"`
	SyncedRetention     timex.Duration `json:"synced_retention"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// Absent file path means no JSON layer. Zero values in the file leave the
// corresponding defaults untouched.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	applyJson(cfg, &jc)
}

func applyJson(cfg *Config, jc *JsonConfig) {
	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RetryCeiling > 0 {
		cfg.RetryCeiling = jc.RetryCeiling
	}
	if jc.BackoffBase.Duration > 0 {
		cfg.BackoffBase = jc.BackoffBase.Duration
	}
	if jc.BackoffCap.Duration > 0 {
		cfg.BackoffCap = jc.BackoffCap.Duration
	}
	if jc.SyncedRetention.Duration > 0 {
		cfg.SyncedRetention = jc.SyncedRetention.Duration
	}
}
