package collector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.FlushInterval)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.TrackPerformance && cfg.TrackErrors && cfg.TrackInteractions && cfg.TrackPageViews)
	assert.Equal(t, "/api/v1alpha1/analytics/batch", cfg.Endpoint)
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{BatchSize: -1, MaxRetries: -5}.withDefaults()
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.FlushInterval)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
}

func TestOptionsConfig(t *testing.T) {
	var opts Options
	require.NoError(t, json.Unmarshal([]byte(`{
		"batchSize": 3,
		"flushInterval": 60000,
		"maxRetries": 0,
		"trackInteractions": false,
		"debug": true
	}`), &opts))

	cfg := opts.Config()
	assert.True(t, cfg.Enabled, "unset flags keep their default")
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.TrackInteractions, "explicit false is kept")
	assert.True(t, cfg.TrackErrors)
	assert.Equal(t, 3, cfg.BatchSize)
	assert.Equal(t, time.Minute, cfg.FlushInterval)
	assert.Equal(t, 0, cfg.MaxRetries)
}
