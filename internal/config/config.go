package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Preference backends for the driver order and visibility stores.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	ERP struct {
		Enabled               bool    `yaml:"enabled"`
		BaseURL               string  `yaml:"base_url"`
		APIKey                string  `yaml:"api_key"`
		CacheTTLSeconds       int     `yaml:"cache_ttl_seconds"`
		MutationRatePerSecond float64 `yaml:"mutation_rate_per_second"`
		MutationBurst         int     `yaml:"mutation_burst"`
	} `yaml:"erp"`

	Planner struct {
		DefaultView        string `yaml:"default_view"`
		FleetPath          string `yaml:"fleet_path"`
		PreferencesBackend string `yaml:"preferences_backend"`
		PreferencesPath    string `yaml:"preferences_path"`
		RangeTTLSeconds    int    `yaml:"range_ttl_seconds"`
		GestureTTLSeconds  int    `yaml:"gesture_ttl_seconds"`
	} `yaml:"planner"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/truckplan.db"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Planner.DefaultView == "" {
		c.Planner.DefaultView = "week"
	}
	if c.Planner.FleetPath == "" {
		c.Planner.FleetPath = "configs/fleet.yaml"
	}
	if c.Planner.PreferencesBackend == "" {
		c.Planner.PreferencesBackend = BackendSQLite
	}
	if c.Planner.PreferencesPath == "" {
		c.Planner.PreferencesPath = "data/preferences.json"
	}
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) CacheTTL() time.Duration {
	if c.ERP.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ERP.CacheTTLSeconds) * time.Second
}

// RangeTTL is how long a fetched range is served before a background refresh.
func (c *Config) RangeTTL() time.Duration {
	if c.Planner.RangeTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Planner.RangeTTLSeconds) * time.Second
}

// GestureTTL is how long an unfinished drag blocks a profile. Zero keeps the
// controller default.
func (c *Config) GestureTTL() time.Duration {
	if c.Planner.GestureTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Planner.GestureTTLSeconds) * time.Second
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.Address != ""
}
