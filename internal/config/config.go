// Package config loads telimart's runtime configuration.
//
// Values are resolved in order, later sources winning:
//
//  1. Defaults declared on Config
//  2. An optional YAML file (--config)
//  3. TELIMART_* environment variables
//  4. Command-line flags, applied by the caller
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Database Database `mapstructure:"database" envPrefix:"DB_"`
	HTTP     HTTP     `mapstructure:"http" envPrefix:"HTTP_"`
	Log      Log      `mapstructure:"log" envPrefix:"LOG_"`
	OTel     OTel     `mapstructure:"otel" envPrefix:"OTEL_"`
}

// Database selects and tunes the store.
type Database struct {
	Driver          string        `mapstructure:"driver" env:"DRIVER" envDefault:"sqlite3"`
	DSN             string        `mapstructure:"dsn" env:"DSN" envDefault:"telimart.db"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr            string        `mapstructure:"addr" env:"ADDR" envDefault:":8000"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Log configures slog output.
type Log struct {
	Level  string `mapstructure:"level" env:"LEVEL" envDefault:"info"`
	Format string `mapstructure:"format" env:"FORMAT" envDefault:"text"`
}

// OTel configures tracing. Tracing is off while Endpoint is empty.
type OTel struct {
	Endpoint    string `mapstructure:"endpoint" env:"ENDPOINT"`
	ServiceName string `mapstructure:"service_name" env:"SERVICE_NAME" envDefault:"telimart"`
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "TELIMART_"

// Default returns the configuration with only defaults applied.
func Default() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: map[string]string{},
	}); err != nil {
		return Config{}, fmt.Errorf("parse defaults: %w", err)
	}
	return cfg, nil
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty) and the process environment.
func Load(path string) (Config, error) {
	return load(path, nil)
}

// load is Load with an injectable environment; a nil environ reads the
// process environment.
func load(path string, environ map[string]string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	// Defaults were already applied; only variables that are set override
	// the file.
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := parseSetOnly(&cfg, opts); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseSetOnly overlays environment variables onto cfg without letting
// envDefault values clobber what the config file set.
func parseSetOnly(cfg *Config, opts env.Options) error {
	var fromEnv Config
	set := map[string]bool{}
	opts.OnSet = func(tag string, value any, isDefault bool) {
		if !isDefault {
			set[tag] = true
		}
	}
	if err := env.ParseWithOptions(&fromEnv, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	p := EnvPrefix
	overlay(set[p+"DB_DRIVER"], &cfg.Database.Driver, fromEnv.Database.Driver)
	overlay(set[p+"DB_DSN"], &cfg.Database.DSN, fromEnv.Database.DSN)
	overlay(set[p+"DB_MAX_OPEN_CONNS"], &cfg.Database.MaxOpenConns, fromEnv.Database.MaxOpenConns)
	overlay(set[p+"DB_MAX_IDLE_CONNS"], &cfg.Database.MaxIdleConns, fromEnv.Database.MaxIdleConns)
	overlay(set[p+"DB_CONN_MAX_LIFETIME"], &cfg.Database.ConnMaxLifetime, fromEnv.Database.ConnMaxLifetime)
	overlay(set[p+"HTTP_ADDR"], &cfg.HTTP.Addr, fromEnv.HTTP.Addr)
	overlay(set[p+"HTTP_SHUTDOWN_TIMEOUT"], &cfg.HTTP.ShutdownTimeout, fromEnv.HTTP.ShutdownTimeout)
	overlay(set[p+"LOG_LEVEL"], &cfg.Log.Level, fromEnv.Log.Level)
	overlay(set[p+"LOG_FORMAT"], &cfg.Log.Format, fromEnv.Log.Format)
	overlay(set[p+"OTEL_ENDPOINT"], &cfg.OTel.Endpoint, fromEnv.OTel.Endpoint)
	overlay(set[p+"OTEL_SERVICE_NAME"], &cfg.OTel.ServiceName, fromEnv.OTel.ServiceName)
	return nil
}

func overlay[T any](ok bool, dst *T, v T) {
	if ok {
		*dst = v
	}
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite3", "sqlite", "postgres", "postgresql":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: must be sqlite3 or postgres", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q: must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
