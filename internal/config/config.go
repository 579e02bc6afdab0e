// Package config loads server configuration from a TOML file with
// environment-variable overrides.
//
// Search order for the config file:
//  1. $NETCANVAS_CONFIG
//  2. ./netcanvas.toml
//  3. ~/.config/netcanvas/config.toml
//
// Every file value can be overridden by an environment variable; see the
// NETCANVAS_* constants on each field. A missing file yields defaults, which
// run the server with the in-memory store and no relay.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/netcanvas/netcanvas/pkg/errors"
)

// Config is the full server configuration.
type Config struct {
	Listen string      `toml:"listen"`
	Log    LogConfig   `toml:"log"`
	Mongo  MongoConfig `toml:"mongo"`
	Redis  RedisConfig `toml:"redis"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// MongoConfig selects the persistence backend. An empty URI keeps the
// in-memory store.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// RedisConfig enables the cross-instance event relay. An empty address
// disables it.
type RedisConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Listen: ":8080",
		Log:    LogConfig{Level: "info"},
		Mongo:  MongoConfig{Database: "netcanvas"},
	}
}

// Load reads the configuration, applying defaults, the first config file
// found, then environment overrides, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := findConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading config %s", path)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing config %s", path)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func findConfigPath() string {
	if path := os.Getenv("NETCANVAS_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("netcanvas.toml"); err == nil {
		return "netcanvas.toml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "netcanvas", "config.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Listen, "NETCANVAS_LISTEN")
	setFromEnv(&c.Log.Level, "NETCANVAS_LOG_LEVEL")
	setFromEnv(&c.Mongo.URI, "NETCANVAS_MONGO_URI")
	setFromEnv(&c.Mongo.Database, "NETCANVAS_MONGO_DATABASE")
	setFromEnv(&c.Redis.Addr, "NETCANVAS_REDIS_ADDR")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
