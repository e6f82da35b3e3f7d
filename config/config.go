// Package config loads server settings from a TOML file.
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/marcybelardo/lilykv/proto"
)

// Config holds the server settings. Durations accept Go duration strings
// ("5s", "250ms").
type Config struct {
	Addr            string        `toml:"addr"`
	Buckets         int           `toml:"buckets"`
	PurgeInterval   time.Duration `toml:"purge_interval"`
	MaxDepth        int           `toml:"max_depth"`
	MaxMessageBytes int           `toml:"max_message_bytes"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	SnapshotPath    string        `toml:"snapshot_path"`
	LogLevel        string        `toml:"log_level"`
}

// Default returns the settings used for keys a file leaves out.
func Default() Config {
	return Config{
		Addr:            ":6380",
		Buckets:         16,
		PurgeInterval:   5 * time.Second,
		MaxDepth:        proto.DefaultMaxDepth,
		MaxMessageBytes: 64 * 1024 * 1024,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
	}
}

// Load reads the TOML file at path over the defaults and validates the
// result. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config parse failed (%s)", path)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.Newf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}

	return cfg, nil
}

// Decoder returns the protocol decoder matching the limits in c.
func (c Config) Decoder() proto.Decoder {
	return proto.Decoder{MaxDepth: c.MaxDepth}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("missing addr")
	}
	if c.Buckets <= 0 {
		return errors.Newf("buckets must be positive, got %d", c.Buckets)
	}
	if c.PurgeInterval <= 0 {
		return errors.Newf("purge_interval must be positive, got %v", c.PurgeInterval)
	}
	if c.MaxDepth <= 0 {
		return errors.Newf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxMessageBytes < 16 {
		return errors.Newf("max_message_bytes too small: %d", c.MaxMessageBytes)
	}
	if c.IdleTimeout < 0 {
		return errors.Newf("idle_timeout must not be negative, got %v", c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.Newf("shutdown_timeout must be positive, got %v", c.ShutdownTimeout)
	}
	return nil
}
