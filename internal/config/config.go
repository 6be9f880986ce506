// Package config loads previewd configuration from a TOML file with
// environment-variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the process configuration.
type Config struct {
	Listen   string `toml:"listen"`
	LogLevel string `toml:"log_level"`

	Resolver Resolver `toml:"resolver"`
	Renderer Renderer `toml:"renderer"`
	Content  Content  `toml:"content"`
	Cache    Cache    `toml:"cache"`
	Storage  Storage  `toml:"storage"`
}

// Resolver selects and configures the metadata lookup backend.
type Resolver struct {
	Kind     string `toml:"kind"` // "http" or "mongo"
	Endpoint string `toml:"endpoint"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// Renderer configures the remote browser rendering service.
type Renderer struct {
	Endpoint string `toml:"endpoint"`
	Token    string `toml:"token"`
}

// Content configures the content-serving endpoint and classifier hints.
type Content struct {
	// BaseURL is the absolute content-serving endpoint; root-relative
	// references in markup resolve against its origin.
	BaseURL string `toml:"base_url"`

	// Hosts lists external content-hosting domains whose presence in
	// markup marks content as recursive.
	Hosts []string `toml:"hosts"`

	// FallbackURL is the static logo served (via redirect) when no
	// preview can be produced.
	FallbackURL string `toml:"fallback_url"`
}

// Cache selects and configures the key-value store backend.
type Cache struct {
	Backend string `toml:"backend"` // "redis", "file", or "memory"

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	Dir string `toml:"dir"` // file backend
}

// Storage selects the artifact persistence policy.
type Storage struct {
	Mode string `toml:"mode"` // "inline" or "object"

	ObjectDir  string `toml:"object_dir"`
	PublicBase string `toml:"public_base"`
}

// Defaults returns a config with development-friendly defaults.
func Defaults() Config {
	return Config{
		Listen:   ":8080",
		LogLevel: "info",
		Resolver: Resolver{Kind: "http"},
		Cache:    Cache{Backend: "memory"},
		Storage:  Storage{Mode: "inline"},
		Content:  Content{FallbackURL: "/static/fallback.png"},
	}
}

// Load reads path (when non-empty) over Defaults and applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides deployment secrets and endpoints from the
// environment, so config files never need to carry credentials.
func applyEnv(cfg *Config) {
	env := map[string]*string{
		"PREVIEWD_LISTEN":            &cfg.Listen,
		"PREVIEWD_RENDERER_ENDPOINT": &cfg.Renderer.Endpoint,
		"PREVIEWD_RENDERER_TOKEN":    &cfg.Renderer.Token,
		"PREVIEWD_REDIS_ADDR":        &cfg.Cache.RedisAddr,
		"PREVIEWD_REDIS_PASSWORD":    &cfg.Cache.RedisPassword,
		"PREVIEWD_MONGO_URI":         &cfg.Resolver.MongoURI,
		"PREVIEWD_RESOLVER_ENDPOINT": &cfg.Resolver.Endpoint,
	}
	for name, dst := range env {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Resolver.Kind {
	case "http":
		if c.Resolver.Endpoint == "" {
			return fmt.Errorf("resolver.endpoint is required for the http resolver")
		}
	case "mongo":
		if c.Resolver.MongoURI == "" || c.Resolver.MongoDatabase == "" {
			return fmt.Errorf("resolver.mongo_uri and resolver.mongo_database are required for the mongo resolver")
		}
	default:
		return fmt.Errorf("unknown resolver kind %q", c.Resolver.Kind)
	}

	switch c.Cache.Backend {
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	case "file":
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the file backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Storage.Mode {
	case "inline":
	case "object":
		if c.Storage.ObjectDir == "" || c.Storage.PublicBase == "" {
			return fmt.Errorf("storage.object_dir and storage.public_base are required for object storage")
		}
	default:
		return fmt.Errorf("unknown storage mode %q", c.Storage.Mode)
	}

	return nil
}
