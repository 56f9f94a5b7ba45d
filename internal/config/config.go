// Package config loads the usercache service configuration.
//
// Sources, lowest priority first:
//  1. defaults (Default)
//  2. a YAML file, when a path is given
//  3. USERCACHE_* environment variables
//
// The result is validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Cache    Cache    `yaml:"cache"`
	Redis    Redis    `yaml:"redis"`
	Log      Log      `yaml:"log"`
}

type Server struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

type Database struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite"`
	DSN    string `yaml:"dsn" validate:"required"`
}

type Cache struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend" validate:"oneof=redis bigcache ristretto memory"`
	// TTL is in seconds.
	TTL       int           `yaml:"ttl" validate:"min=1"`
	OpTimeout time.Duration `yaml:"op_timeout" validate:"gt=0"`
	Codec     string        `yaml:"codec" validate:"oneof=json msgpack cbor"`
	// MaxDecode caps the size of a stored snapshot accepted on read; 0 = no cap.
	MaxDecode int     `yaml:"max_decode" validate:"gte=0"`
	Resource  string  `yaml:"resource" validate:"required,excludesall=_*?[]"`
	GenStore  string  `yaml:"gen_store" validate:"oneof=local redis"`
	Breaker   Breaker `yaml:"breaker"`
	// Capacity bounds the in-process backends (bigcache, ristretto), in MB.
	Capacity int `yaml:"capacity" validate:"gte=0"`
}

type Breaker struct {
	Enabled      bool          `yaml:"enabled"`
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
	FailureRatio float64       `yaml:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests  uint32        `yaml:"min_requests"`
}

type Redis struct {
	Host         string        `yaml:"host" validate:"required"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	DB           int           `yaml:"db" validate:"min=0"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout" validate:"gte=0"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
}

type Log struct {
	Backend string `yaml:"backend" validate:"oneof=zap logrus slog"`
	Level   string `yaml:"level" validate:"oneof=debug info warn error"`
}

// TTLDuration returns Cache.TTL as a duration.
func (c Cache) TTLDuration() time.Duration { return time.Duration(c.TTL) * time.Second }

// Default returns a configuration that runs against a local Redis and a
// SQLite file in the working directory.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{Driver: "sqlite", DSN: "usercache.db"},
		Cache: Cache{
			Enabled:   true,
			Backend:   "redis",
			TTL:       3600,
			OpTimeout: 500 * time.Millisecond,
			Codec:     "json",
			Resource:  "user",
			GenStore:  "local",
			Capacity:  64,
			Breaker: Breaker{
				MaxRequests:  1,
				Interval:     30 * time.Second,
				Timeout:      5 * time.Second,
				FailureRatio: 0.5,
				MinRequests:  5,
			},
		},
		Redis: Redis{
			Host:         "localhost",
			Port:         6379,
			DB:           1,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		Log: Log{Backend: "zap", Level: "info"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and returns one error listing every
// violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}
