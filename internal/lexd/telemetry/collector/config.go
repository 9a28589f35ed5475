package collector

import "time"

// DefaultEndpoint is the collector endpoint path served by lexd
const DefaultEndpoint = "/api/v1alpha1/analytics/batch"

// Config controls a Collector
type Config struct {
	Enabled bool
	Debug   bool

	// BatchSize is the queued record count, summed across categories,
	// that triggers an immediate flush
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int

	TrackPerformance  bool
	TrackErrors       bool
	TrackInteractions bool
	TrackPageViews    bool

	// Endpoint receives batches. A relative path is resolved against the
	// page URL.
	Endpoint string
}

// DefaultConfig returns the collector defaults
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		BatchSize:         10,
		FlushInterval:     30 * time.Second,
		MaxRetries:        3,
		TrackPerformance:  true,
		TrackErrors:       true,
		TrackInteractions: true,
		TrackPageViews:    true,
		Endpoint:          DefaultEndpoint,
	}
}

// withDefaults replaces out-of-range values with their defaults
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize < 1 {
		c.BatchSize = d.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Endpoint == "" {
		c.Endpoint = d.Endpoint
	}
	return c
}

// Options is the partial, serializable form of Config. Unset fields keep
// their defaults, so an explicit false is distinct from an omitted flag.
type Options struct {
	Enabled           *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Debug             *bool  `json:"debug,omitempty" yaml:"debug,omitempty"`
	BatchSize         int    `json:"batchSize,omitempty" yaml:"batchSize,omitempty"`
	FlushIntervalMs   int64  `json:"flushInterval,omitempty" yaml:"flushInterval,omitempty"`
	MaxRetries        *int   `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	TrackPerformance  *bool  `json:"trackPerformance,omitempty" yaml:"trackPerformance,omitempty"`
	TrackErrors       *bool  `json:"trackErrors,omitempty" yaml:"trackErrors,omitempty"`
	TrackInteractions *bool  `json:"trackInteractions,omitempty" yaml:"trackInteractions,omitempty"`
	TrackPageViews    *bool  `json:"trackPageViews,omitempty" yaml:"trackPageViews,omitempty"`
	Endpoint          string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Config merges the options over DefaultConfig
func (o Options) Config() Config {
	c := DefaultConfig()
	setBool(&c.Enabled, o.Enabled)
	setBool(&c.Debug, o.Debug)
	setBool(&c.TrackPerformance, o.TrackPerformance)
	setBool(&c.TrackErrors, o.TrackErrors)
	setBool(&c.TrackInteractions, o.TrackInteractions)
	setBool(&c.TrackPageViews, o.TrackPageViews)
	if o.BatchSize != 0 {
		c.BatchSize = o.BatchSize
	}
	if o.FlushIntervalMs != 0 {
		c.FlushInterval = time.Duration(o.FlushIntervalMs) * time.Millisecond
	}
	if o.MaxRetries != nil {
		c.MaxRetries = *o.MaxRetries
	}
	if o.Endpoint != "" {
		c.Endpoint = o.Endpoint
	}
	return c.withDefaults()
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
