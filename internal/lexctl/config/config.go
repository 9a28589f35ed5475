// Package config manages lexctl contexts
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// EnvConfig overrides the config file location
const EnvConfig = "LEXCTL_CONFIG"

// Config holds the CLI configuration
type Config struct {
	// CurrentContext is the name of the active context
	CurrentContext string `mapstructure:"current-context"`
	// Contexts holds the available server contexts
	Contexts map[string]*Context `mapstructure:"contexts"`

	path string
}

// Context is one lexd server
type Context struct {
	Name   string `mapstructure:"name"`
	Server string `mapstructure:"server"`
	// InsecureSkipVerify disables TLS verification
	InsecureSkipVerify bool `mapstructure:"insecure-skip-verify"`
}

// DefaultPath returns $LEXCTL_CONFIG or ~/.lexctl/config.yaml
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".lexctl", "config.yaml")
	}
	return filepath.Join(home, ".lexctl", "config.yaml")
}

// Load reads the configuration at path. A missing file yields an empty
// configuration that Save will create.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("current-context", "")
	v.SetDefault("contexts", map[string]interface{}{})

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	cfg := &Config{path: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	return cfg, nil
}

// Path returns the file the configuration is saved to
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration back to its file
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	contexts := make(map[string]interface{}, len(c.Contexts))
	for name, ctx := range c.Contexts {
		contexts[name] = map[string]interface{}{
			"name":                 ctx.Name,
			"server":               ctx.Server,
			"insecure-skip-verify": ctx.InsecureSkipVerify,
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("current-context", c.CurrentContext)
	v.Set("contexts", contexts)

	if err := v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

// GetCurrentContext returns the active context configuration
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}
	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context %q not found", c.CurrentContext)
	}
	return ctx, nil
}

// AddContext adds or updates a context
func (c *Config) AddContext(name string, context *Context) {
	if c.Contexts == nil {
		c.Contexts = make(map[string]*Context)
	}
	context.Name = name
	c.Contexts[name] = context
}

// SetCurrentContext sets the active context
func (c *Config) SetCurrentContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return nil
}

// RemoveContext removes a context, clearing it if it was current
func (c *Config) RemoveContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return nil
}
