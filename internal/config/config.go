// Package config loads the engine configuration from YAML with
// environment overrides. Secrets (API keys, DSN passwords) come from
// the environment only and never live in the YAML file.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port            int `yaml:"port"`
	ShutdownTimeout int `yaml:"shutdown_timeout_seconds"`
}

type Database struct {
	Enabled         bool   `yaml:"enabled"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_minutes"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LiveFeed struct {
	BaseURL            string `yaml:"base_url"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	DailyCap           int    `yaml:"daily_cap"`
}

type BarFeed struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type HistoricalFeed struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Cache struct {
	MaxAgeMinutes  int `yaml:"max_age_minutes"`
	RecorderDepth  int `yaml:"recorder_depth"`
	RefreshTimeout int `yaml:"refresh_timeout_seconds"`
}

type Root struct {
	Server     Server         `yaml:"server"`
	Database   Database       `yaml:"database"`
	Redis      Redis          `yaml:"redis"`
	Live       LiveFeed       `yaml:"live"`
	Bars       BarFeed        `yaml:"bars"`
	Historical HistoricalFeed `yaml:"historical"`
	Cache      Cache          `yaml:"cache"`

	// Filled from the environment, never from YAML.
	LiveAPIKey       string `yaml:"-"`
	BarAPIKey        string `yaml:"-"`
	HistoricalAPIKey string `yaml:"-"`
}

// Load reads the YAML file at path, fills defaults for zero values,
// and applies environment overrides. A missing file is not an error;
// the engine runs on defaults plus environment alone.
func Load(path string) (Root, error) {
	var c Root
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, err
		}
	} else if !os.IsNotExist(err) {
		return c, err
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifeMins == 0 {
		c.Database.ConnMaxLifeMins = 60
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Live.BaseURL == "" {
		c.Live.BaseURL = "https://api.metals.dev"
	}
	if c.Live.TimeoutSeconds == 0 {
		c.Live.TimeoutSeconds = 5
	}
	if c.Live.RateLimitPerMinute == 0 {
		c.Live.RateLimitPerMinute = 10
	}
	if c.Live.DailyCap == 0 {
		c.Live.DailyCap = 250
	}

	if c.Bars.BaseURL == "" {
		c.Bars.BaseURL = "https://data.alpaca.markets"
	}
	if c.Bars.TimeoutSeconds == 0 {
		c.Bars.TimeoutSeconds = 5
	}

	if c.Historical.BaseURL == "" {
		c.Historical.BaseURL = "https://api.metalpriceapi.com"
	}
	if c.Historical.TimeoutSeconds == 0 {
		c.Historical.TimeoutSeconds = 10
	}

	if c.Cache.MaxAgeMinutes == 0 {
		c.Cache.MaxAgeMinutes = 10
	}
	if c.Cache.RecorderDepth == 0 {
		c.Cache.RecorderDepth = 64
	}
	if c.Cache.RefreshTimeout == 0 {
		c.Cache.RefreshTimeout = 5
	}

	applyEnv(&c)
	return c, nil
}

// applyEnv lets deployment override the file without editing it.
func applyEnv(c *Root) {
	envStr("PORT", func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	})
	envStr("DATABASE_DSN", func(v string) {
		c.Database.DSN = v
		c.Database.Enabled = true
	})
	envStr("REDIS_ADDR", func(v string) {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	})
	envStr("REDIS_PASSWORD", func(v string) { c.Redis.Password = v })

	envStr("LIVE_API_URL", func(v string) { c.Live.BaseURL = v })
	envStr("LIVE_API_KEY", func(v string) { c.LiveAPIKey = v })
	envStr("BAR_API_URL", func(v string) { c.Bars.BaseURL = v })
	envStr("BAR_API_KEY", func(v string) {
		c.BarAPIKey = v
		c.Bars.Enabled = true
	})
	envStr("HISTORICAL_API_URL", func(v string) { c.Historical.BaseURL = v })
	envStr("HISTORICAL_API_KEY", func(v string) {
		c.HistoricalAPIKey = v
		c.Historical.Enabled = true
	})
}

func envStr(key string, set func(string)) {
	if v := os.Getenv(key); v != "" {
		set(v)
	}
}
