package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the strata.toml configuration file.
//
// Every field has a working default, so the file is optional and may be
// partial:
//
//	log_level = "debug"
//
//	[server]
//	addr = ":8270"
//
//	[capture]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//
//	[render]
//	format = "svg"
type Config struct {
	// LogLevel is "debug", "info", "warn", or "error".
	LogLevel string `toml:"log_level"`

	Server  ServerConfig  `toml:"server"`
	Capture CaptureConfig `toml:"capture"`
	Render  RenderConfig  `toml:"render"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `toml:"addr"`
	// RepairLoops enables relative-loop repair on the serving engine.
	RepairLoops bool `toml:"repair_loops"`
}

// CaptureConfig selects where capture sessions are stored.
type CaptureConfig struct {
	// Backend is "file" or "redis".
	Backend string `toml:"backend"`
	// Dir is the session directory for the file backend. Empty means the
	// default under the user config directory.
	Dir string `toml:"dir"`
	// RedisAddr is the address for the redis backend.
	RedisAddr string `toml:"redis_addr"`
	// MongoURI enables the long-term archive when set.
	MongoURI string `toml:"mongo_uri"`
	// RingSize caps the in-memory transaction ring of a recording engine.
	RingSize int `toml:"ring_size"`
}

// RenderConfig sets render command defaults.
type RenderConfig struct {
	// Format is "svg", "png", or "dot".
	Format string `toml:"format"`
	// Detailed includes record ids and z values in node labels.
	Detailed bool `toml:"detailed"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server:   ServerConfig{Addr: ":8270"},
		Capture:  CaptureConfig{Backend: "file"},
		Render:   RenderConfig{Format: "svg"},
	}
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing file yields the defaults, not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = filepath.Join(dir, "strata.toml")
	}

	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
