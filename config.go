package reroute

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can write "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds engine-wide settings. Route-level behaviors override these
// per route; Config sets the floor for everything else.
type Config struct {
	// CacheableMethods are the verbs allowed to carry a Cache behavior.
	CacheableMethods []string `yaml:"cacheable_methods"`

	// DefaultTimeout bounds handler invocations on routes without an
	// explicit Timeout behavior. Zero disables the default bound.
	DefaultTimeout Duration `yaml:"default_timeout"`

	// CacheSweepInterval is passed to the in-memory cache sweep loop.
	CacheSweepInterval Duration `yaml:"cache_sweep_interval"`

	// MaxBodyBytes caps request body reads in the HTTP adapter.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// DefaultConfig returns the settings used when no config file is loaded.
func DefaultConfig() Config {
	return Config{
		CacheableMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		DefaultTimeout:     0,
		CacheSweepInterval: Duration(time.Minute),
		MaxBodyBytes:       10 << 20,
	}
}

// LoadConfig reads YAML settings over the defaults, so a partial file only
// overrides what it names.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("max_body_bytes must be positive")
	}
	if cfg.DefaultTimeout < 0 || cfg.CacheSweepInterval < 0 {
		return Config{}, fmt.Errorf("durations must not be negative")
	}
	return cfg, nil
}

func (c Config) cacheableSet() map[string]bool {
	set := make(map[string]bool, len(c.CacheableMethods))
	for _, m := range c.CacheableMethods {
		set[m] = true
	}
	return set
}
