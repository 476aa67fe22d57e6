package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// RECORDGATE_AUTH_JWT_SECRET.
const EnvPrefix = "RECORDGATE"

// DefaultFileName is the config file looked up when none is given.
const DefaultFileName = "recordgate.yaml"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Edge      EdgeConfig      `yaml:"edge" mapstructure:"edge"`
	Errors    ErrorsConfig    `yaml:"errors" mapstructure:"errors"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	CORSOrigin      string        `yaml:"cors_origin" mapstructure:"cors_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	IPRateLimit     int           `yaml:"ip_rate_limit" mapstructure:"ip_rate_limit"`
	HealthPath      string        `yaml:"health_path" mapstructure:"health_path"`
}

// AuthConfig controls credential verification.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Audience     string `yaml:"audience" mapstructure:"audience"`
	Issuer       string `yaml:"issuer" mapstructure:"issuer"`
	LegacyAPIKey string `yaml:"legacy_api_key" mapstructure:"legacy_api_key"`
}

// EdgeConfig controls the in-process edge authorizer.
type EdgeConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	ResourcePrefix string        `yaml:"resource_prefix" mapstructure:"resource_prefix"`
	Stage          string        `yaml:"stage" mapstructure:"stage"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheSize      int           `yaml:"cache_size" mapstructure:"cache_size"`
}

// ErrorsConfig controls error envelopes.
type ErrorsConfig struct {
	SuppressDetails bool `yaml:"suppress_details" mapstructure:"suppress_details"`
}

// RateLimitConfig controls the per-caller request budget.
type RateLimitConfig struct {
	Limit    int           `yaml:"limit" mapstructure:"limit"`
	Window   time.Duration `yaml:"window" mapstructure:"window"`
	Backend  string        `yaml:"backend" mapstructure:"backend"`
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"`
}

// StoreConfig selects the record database.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns a Config pre-filled with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigin:      "*",
			ShutdownTimeout: 30 * time.Second,
			HealthPath:      "/health",
		},
		Edge: EdgeConfig{
			Enabled:        true,
			ResourcePrefix: "arn:aws:execute-api:local:000000000000:recordgate",
			Stage:          "local",
			CacheTTL:       5 * time.Minute,
			CacheSize:      1024,
		},
		RateLimit: RateLimitConfig{
			Limit:   100,
			Window:  time.Minute,
			Backend: "memory",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "recordgate.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// NewViper returns a viper instance with every key defaulted, environment
// overrides enabled and the config file read if one exists. An explicit
// path that cannot be read is an error; a missing default file is not.
// ${VAR} references in the file are expanded before parsing.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	SetDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	v.SetConfigFile(path)
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return v, nil
}

// SetDefaults registers every field of cfg as a viper default so that
// environment overrides apply to keys absent from the file.
func SetDefaults(v *viper.Viper, cfg *Config) {
	data, _ := yaml.Marshal(cfg)
	var tree map[string]interface{}
	_ = yaml.Unmarshal(data, &tree)
	setDefaults(v, "", tree)
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]interface{}); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	err := validation.Errors{
		"server": validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
			validation.Field(&c.Server.IPRateLimit, validation.Min(0)),
			validation.Field(&c.Server.HealthPath, validation.Required, validation.By(leadingSlash)),
		),
		"edge": validation.ValidateStruct(&c.Edge,
			validation.Field(&c.Edge.ResourcePrefix, validation.When(c.Edge.Enabled, validation.Required)),
			validation.Field(&c.Edge.Stage, validation.When(c.Edge.Enabled, validation.Required)),
			validation.Field(&c.Edge.CacheSize, validation.Min(0)),
		),
		"ratelimit": validation.ValidateStruct(&c.RateLimit,
			validation.Field(&c.RateLimit.Limit, validation.Required, validation.Min(1)),
			validation.Field(&c.RateLimit.Window, validation.Required),
			validation.Field(&c.RateLimit.Backend, validation.Required, validation.In("memory", "redis")),
			validation.Field(&c.RateLimit.RedisURL, validation.When(c.RateLimit.Backend == "redis", validation.Required)),
		),
		"store": validation.ValidateStruct(&c.Store,
			validation.Field(&c.Store.Driver, validation.Required),
		),
		"logging": validation.ValidateStruct(&c.Logging,
			validation.Field(&c.Logging.Level, validation.In("debug", "info", "warn", "error")),
			validation.Field(&c.Logging.Format, validation.In("text", "json")),
		),
	}.Filter()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func leadingSlash(value interface{}) error {
	s, _ := value.(string)
	if s != "" && !strings.HasPrefix(s, "/") {
		return errors.New("must start with /")
	}
	return nil
}

const fileHeader = `# recordgate configuration
# Every key can be overridden with an environment variable, e.g.
# RECORDGATE_AUTH_JWT_SECRET. ${VAR} references are expanded on load.

`

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, append([]byte(fileHeader), data...), 0644)
}

// Redacted returns a copy of c with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	c.Auth.LegacyAPIKey = mask(c.Auth.LegacyAPIKey)
	c.RateLimit.RedisURL = mask(c.RateLimit.RedisURL)
	c.Store.DSN = mask(c.Store.DSN)
	return c
}
