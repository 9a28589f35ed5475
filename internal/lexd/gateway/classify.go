package gateway

import (
	"net/url"
	"path"
	"strings"
)

// Strategy names how a request is answered
type Strategy string

const (
	StrategyPassthrough Strategy = "passthrough"
	StrategyPWA         Strategy = "pwa"
	StrategyCritical    Strategy = "critical"
	StrategyPartnerAPI  Strategy = "partner_api"
	StrategyStatic      Strategy = "static"
	StrategyDefault     Strategy = "default"
)

// DefaultCriticalRoutes are the application routes served network-first
// with an offline app shell
var DefaultCriticalRoutes = []string{
	"/dashboard",
	"/contacts",
	"/expedientes",
	"/calendar",
	"/time-tracking",
	"/proposals",
}

// PWA handler paths
const (
	pathShare  = "/share"
	pathUpload = "/upload"
)

var staticExtensions = map[string]bool{
	".js": true, ".css": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".ico": true, ".woff": true, ".woff2": true, ".ttf": true, ".webp": true,
}

// Classify picks the strategy for u. Checks run in a fixed order and the
// first match wins.
func (c *Config) Classify(u *url.URL) Strategy {
	switch {
	case c.sameOrigin(u) && isPWAHandler(u.Path):
		return StrategyPWA
	case !c.sameOrigin(u) && !c.isPartner(u):
		return StrategyPassthrough
	case c.isCritical(u.Path):
		return StrategyCritical
	case c.isPartner(u):
		return StrategyPartnerAPI
	case staticExtensions[strings.ToLower(path.Ext(u.Path))]:
		return StrategyStatic
	}
	return StrategyDefault
}

// isPWAHandler matches the handler paths and anything below them, but not
// siblings such as /uploads
func isPWAHandler(p string) bool {
	for _, h := range []string{pathShare, pathUpload} {
		if p == h || strings.HasPrefix(p, h+"/") {
			return true
		}
	}
	return false
}

func (c *Config) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.Origin.Scheme) && strings.EqualFold(u.Host, c.Origin.Host)
}

func (c *Config) isPartner(u *url.URL) bool {
	if c.PartnerHost == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	partner := strings.ToLower(c.PartnerHost)
	return host == partner || strings.HasSuffix(host, "."+partner)
}

func (c *Config) isCritical(p string) bool {
	for _, route := range c.CriticalRoutes {
		if strings.HasPrefix(p, route) {
			return true
		}
	}
	return false
}
