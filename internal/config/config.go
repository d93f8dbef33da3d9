package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Game struct {
		GracePeriod   string `yaml:"grace_period"`    // extra time accepted past the limit
		BasePoints    int    `yaml:"base_points"`     // flat award for a correct answer
		SpeedBonusMax int    `yaml:"speed_bonus_max"` // linear-decay bonus ceiling
	} `yaml:"game"`
	Archive struct {
		Retention string `yaml:"retention"` // finished-room age before archival
		Interval  string `yaml:"interval"`  // sweep period
	} `yaml:"archive"`
	RateLimits map[string]RateLimitPolicy `yaml:"rate_limits"`
}

// RateLimitPolicy is a fixed-window budget for one action type.
type RateLimitPolicy struct {
	MaxRequests int    `yaml:"max_requests"`
	Window      string `yaml:"window"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v, or fallback when v is zero.
func IntOr(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
