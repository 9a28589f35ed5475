package util

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/wrale-lexdesk/internal/lexctl/config"
)

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "Just now", FormatDuration(30*time.Second))
	assert.Equal(t, "5m ago", FormatDuration(5*time.Minute))
	assert.Equal(t, "3h ago", FormatDuration(3*time.Hour))
	assert.Equal(t, "2d ago", FormatDuration(49*time.Hour))
}

func TestFormatMillis(t *testing.T) {
	assert.Equal(t, "-", FormatMillis(0))
	assert.Equal(t, "1250ms", FormatMillis(1250.4))
	assert.Equal(t, "-", FormatEpochMillis(0))
	assert.Equal(t, "2024-05-02T09:30:00Z", FormatEpochMillis(time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC).UnixMilli()))
}

func TestGetClient(t *testing.T) {
	t.Setenv(EnvServer, "")
	cfg, err := config.Load(t.TempDir() + "/config.yaml")
	require.NoError(t, err)

	_, err = GetClient(cfg, "")
	assert.Error(t, err)

	cfg.AddContext("dev", &config.Context{Server: "http://localhost:8080"})
	require.NoError(t, cfg.SetCurrentContext("dev"))
	c, err := GetClient(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.BaseURL())

	c, err = GetClient(cfg, "https://crm.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://crm.example.com", c.BaseURL())

	t.Setenv(EnvServer, "https://staging.example.com")
	c, err = GetClient(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", c.BaseURL())
}
