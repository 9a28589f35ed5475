package config

import (
	"fmt"
	"net/url"
	"strings"
)

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if (c.Server.TLSCert != "") != (c.Server.TLSKey != "") {
		return fmt.Errorf("both TLS cert and key must be provided")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("invalid max open connections: %d", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns < 1 {
		return fmt.Errorf("invalid max idle connections: %d", c.Database.MaxIdleConns)
	}
	if c.Telemetry.MaxBatchBytes < 1024 {
		return fmt.Errorf("telemetry batch limit must be at least 1KB")
	}
	if c.Telemetry.RateLimit < 1 || c.Telemetry.RatePeriod <= 0 {
		return fmt.Errorf("telemetry rate limit must be positive")
	}

	if !c.Gateway.Enabled {
		return nil
	}
	if c.Gateway.AppName == "" || c.Gateway.Version == "" {
		return fmt.Errorf("gateway app name and version are required")
	}
	u, err := url.Parse(c.Gateway.Upstream)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid gateway upstream: %q", c.Gateway.Upstream)
	}
	for _, route := range c.Gateway.CriticalRoutes {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("critical route must start with '/': %q", route)
		}
	}
	switch c.Gateway.Storage {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("gateway redis storage requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown gateway storage %q", c.Gateway.Storage)
	}
	return nil
}
