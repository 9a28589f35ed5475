package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, int64(1<<20), cfg.Telemetry.MaxBatchBytes)
	assert.Contains(t, cfg.Gateway.CriticalRoutes, "/expedientes")
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("LEXD_SERVER_PORT", "9090")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("DB_HOST", "")
	t.Setenv("LEXD_DB_HOST", "")
	t.Setenv("LEXD_DB_CONN_MAX_LIFETIME", "5m")
	t.Setenv("LEXD_GATEWAY_PARTNER_HOST", "partner.example.com")
	t.Setenv("LEXD_TELEMETRY_MAX_BATCH_BYTES", "2048")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "partner.example.com", cfg.Gateway.PartnerHost)
	assert.Equal(t, int64(2048), cfg.Telemetry.MaxBatchBytes)
}

func TestEnvAliasPrecedence(t *testing.T) {
	t.Setenv("LEXD_DB_USER", "lexd")
	t.Setenv("DB_USER", "db")
	t.Setenv("POSTGRES_USER", "pg")

	assert.Equal(t, "lexd", getEnvMulti([]string{"LEXD_DB_USER", "DB_USER", "POSTGRES_USER"}, ""))
	assert.Equal(t, 7, getEnvAsIntMulti([]string{"LEXD_UNSET_A", "LEXD_UNSET_B"}, 7))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "invalid server port"},
		{name: "half tls", mutate: func(c *Config) { c.Server.TLSCert = "cert.pem" }, wantErr: "TLS"},
		{name: "tiny batch", mutate: func(c *Config) { c.Telemetry.MaxBatchBytes = 10 }, wantErr: "batch limit"},
		{name: "bad upstream", mutate: func(c *Config) { c.Gateway.Upstream = "localhost" }, wantErr: "upstream"},
		{name: "relative route", mutate: func(c *Config) { c.Gateway.CriticalRoutes = []string{"dashboard"} }, wantErr: "critical route"},
		{name: "redis storage without redis", mutate: func(c *Config) { c.Gateway.Storage = "redis" }, wantErr: "redis.addr"},
		{name: "unknown storage", mutate: func(c *Config) { c.Gateway.Storage = "disk" }, wantErr: "unknown gateway storage"},
		{name: "gateway disabled skips gateway checks", mutate: func(c *Config) {
			c.Gateway.Enabled = false
			c.Gateway.Upstream = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir, err := os.MkdirTemp(wd, "config-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "lexd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8443
gateway:
  partnerHost: api.partner.example
  storage: memory
telemetry:
  rateLimit: 120
`), 0o600))

	_, err = LoadFile(path)
	assert.Error(t, err, "path outside allowed dirs must be rejected")

	t.Setenv("LEXD_DEV_MODE", "1")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, "api.partner.example", cfg.Gateway.PartnerHost)
	assert.Equal(t, 120, cfg.Telemetry.RateLimit)
	assert.Equal(t, "v1", cfg.Gateway.Version)

	_, err = LoadFile(filepath.Join(dir, "lexd.json"))
	assert.Error(t, err)
}
