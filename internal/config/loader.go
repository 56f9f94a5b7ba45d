package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "USERCACHE_"

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := loadEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

type envVar struct {
	name string
	set  func(cfg *Config, v string) error
}

func str(f func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *f(c) = v; return nil }
}

func integer(f func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*f(c) = n
		return nil
	}
}

func boolean(f func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*f(c) = b
		return nil
	}
}

func duration(f func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*f(c) = d
		return nil
	}
}

var envVars = []envVar{
	{"SERVER_ADDR", str(func(c *Config) *string { return &c.Server.Addr })},
	{"DATABASE_DRIVER", str(func(c *Config) *string { return &c.Database.Driver })},
	{"DATABASE_DSN", str(func(c *Config) *string { return &c.Database.DSN })},
	{"CACHE_ENABLED", boolean(func(c *Config) *bool { return &c.Cache.Enabled })},
	{"CACHE_BACKEND", str(func(c *Config) *string { return &c.Cache.Backend })},
	{"CACHE_TTL", integer(func(c *Config) *int { return &c.Cache.TTL })},
	{"CACHE_OP_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Cache.OpTimeout })},
	{"CACHE_CODEC", str(func(c *Config) *string { return &c.Cache.Codec })},
	{"CACHE_RESOURCE", str(func(c *Config) *string { return &c.Cache.Resource })},
	{"CACHE_GEN_STORE", str(func(c *Config) *string { return &c.Cache.GenStore })},
	{"CACHE_BREAKER_ENABLED", boolean(func(c *Config) *bool { return &c.Cache.Breaker.Enabled })},
	{"REDIS_HOST", str(func(c *Config) *string { return &c.Redis.Host })},
	{"REDIS_PORT", integer(func(c *Config) *int { return &c.Redis.Port })},
	{"REDIS_DB", integer(func(c *Config) *int { return &c.Redis.DB })},
	{"REDIS_PASSWORD", str(func(c *Config) *string { return &c.Redis.Password })},
	{"LOG_BACKEND", str(func(c *Config) *string { return &c.Log.Backend })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
}

func loadEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(envPrefix + ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			return fmt.Errorf("config: %s%s: %w", envPrefix, ev.name, err)
		}
	}
	return nil
}
