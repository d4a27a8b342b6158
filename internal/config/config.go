// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Environment wins over file, file over
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML scalars like "30m" or "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the stdlib representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the external surface of the subsystem: token TTL, signing
// secret, backing stores and rate limit knobs.
type Config struct {
	Listen string `yaml:"listen"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Auth struct {
		Secret   string   `yaml:"secret"`
		Issuer   string   `yaml:"issuer"`
		TokenTTL Duration `yaml:"token_ttl"`
		Leeway   Duration `yaml:"leeway"`
	} `yaml:"auth"`

	Revocation struct {
		// Mode selects the revocation backing store: "none" keeps token
		// verification fully stateless, "memory" is per-instance, "redis"
		// is shared.
		Mode      string `yaml:"mode"`
		RedisAddr string `yaml:"redis_addr"`
	} `yaml:"revocation"`

	RateLimit struct {
		Burst     int `yaml:"burst"`
		PerSecond int `yaml:"per_second"`
	} `yaml:"per_ip_rate_limit"`
}

const (
	defaultListen   = ":8080"
	defaultIssuer   = "hireview"
	defaultTokenTTL = 30 * time.Minute
	defaultLeeway   = 5 * time.Second
)

// Load reads the optional YAML file at path, then applies HIREVIEW_*
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	cfg.Listen = defaultListen
	cfg.Auth.Issuer = defaultIssuer
	cfg.Auth.TokenTTL = Duration(defaultTokenTTL)
	cfg.Auth.Leeway = Duration(defaultLeeway)
	cfg.Revocation.Mode = "memory"
	cfg.RateLimit.Burst = 10
	cfg.RateLimit.PerSecond = 5

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HIREVIEW_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("HIREVIEW_PG_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("HIREVIEW_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("HIREVIEW_AUTH_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("HIREVIEW_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = Duration(d)
		}
	}
	if v := os.Getenv("HIREVIEW_LEEWAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Auth.Leeway = Duration(d)
		}
	}
	if v := os.Getenv("HIREVIEW_REVOCATION_MODE"); v != "" {
		cfg.Revocation.Mode = v
	}
	if v := os.Getenv("HIREVIEW_REDIS_ADDR"); v != "" {
		cfg.Revocation.RedisAddr = v
	}
	if v := os.Getenv("HIREVIEW_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("HIREVIEW_RATE_LIMIT_PER_SECOND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimit.PerSecond = n
		}
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("config: auth secret is required (HIREVIEW_AUTH_SECRET)")
	}
	if c.Auth.TokenTTL.Std() <= 0 {
		return errors.New("config: token ttl must be positive")
	}
	switch c.Revocation.Mode {
	case "none", "memory":
	case "redis":
		if strings.TrimSpace(c.Revocation.RedisAddr) == "" {
			return errors.New("config: redis revocation requires redis_addr")
		}
	default:
		return fmt.Errorf("config: unknown revocation mode %q", c.Revocation.Mode)
	}
	return nil
}
