package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "tripdesk.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 5, cfg.RetryCeiling)
	assert.Equal(t, 7*24*time.Hour, cfg.SyncedRetention)
}

func TestApplyJson_OverlaysOnlySetFields(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	var jc JsonConfig
	require.NoError(t, json.Unmarshal([]byte(`{
		"api_base_url": "https://crm.example.com/api",
		"sync_interval": "1m",
		"retry_ceiling": 3
	}`), &jc))

	applyJson(cfg, &jc)

	assert.Equal(t, "https://crm.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.Equal(t, 3, cfg.RetryCeiling)
	// untouched defaults
	assert.Equal(t, "tripdesk.db", cfg.DBPath)
	assert.Equal(t, 15*time.Second, cfg.OnlineCheckInterval)
}
