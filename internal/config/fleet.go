package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// DriverConfig represents a single driver in fleet.yaml.
type DriverConfig struct {
	ID       int64  `yaml:"id"`
	FullName string `yaml:"full_name"`
	Color    string `yaml:"color"`
	IsActive bool   `yaml:"is_active"`
}

// FleetDefaults represents global default settings.
type FleetDefaults struct {
	Color string `yaml:"color"`
	View  string `yaml:"view"`
}

// FleetConfig is the root configuration for fleet.yaml.
type FleetConfig struct {
	Drivers  []DriverConfig `yaml:"drivers"`
	Defaults FleetDefaults  `yaml:"defaults"`
}

// LoadFleetConfig loads and validates the driver roster from a YAML file.
func LoadFleetConfig(path string) (*FleetConfig, error) {
	if path == "" {
		path = "configs/fleet.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet config: %w", err)
	}

	var cfg FleetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse fleet config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate fleet config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *FleetConfig) Validate() error {
	if len(c.Drivers) == 0 {
		return fmt.Errorf("no drivers defined")
	}

	ids := make(map[int64]bool)
	for i, d := range c.Drivers {
		if d.ID <= 0 {
			return fmt.Errorf("driver[%d]: id must be positive, got %d", i, d.ID)
		}
		if ids[d.ID] {
			return fmt.Errorf("driver[%d]: duplicate id %d", i, d.ID)
		}
		ids[d.ID] = true

		if d.FullName == "" {
			return fmt.Errorf("driver[%d]: full_name is required", i)
		}
		if d.Color != "" && !colorPattern.MatchString(d.Color) {
			return fmt.Errorf("driver[%d]: invalid color '%s', expected #RRGGBB", i, d.Color)
		}
	}

	if c.Defaults.Color != "" && !colorPattern.MatchString(c.Defaults.Color) {
		return fmt.Errorf("defaults.color: invalid color '%s', expected #RRGGBB", c.Defaults.Color)
	}

	switch c.Defaults.View {
	case "", "week", "2week", "month":
	default:
		return fmt.Errorf("defaults.view: unknown view '%s'", c.Defaults.View)
	}

	return nil
}

func (c *FleetConfig) applyDefaults() {
	if c.Defaults.Color == "" {
		c.Defaults.Color = "#3b82f6"
	}
	for i := range c.Drivers {
		if c.Drivers[i].Color == "" {
			c.Drivers[i].Color = c.Defaults.Color
		}
	}
}

// GetDriverByID returns driver config by ID.
func (c *FleetConfig) GetDriverByID(id int64) *DriverConfig {
	for i := range c.Drivers {
		if c.Drivers[i].ID == id {
			return &c.Drivers[i]
		}
	}
	return nil
}

// GetActiveDrivers returns only active drivers.
func (c *FleetConfig) GetActiveDrivers() []DriverConfig {
	result := make([]DriverConfig, 0)
	for _, d := range c.Drivers {
		if d.IsActive {
			result = append(result, d)
		}
	}
	return result
}

// String returns a summary of the configuration.
func (c *FleetConfig) String() string {
	return fmt.Sprintf("FleetConfig: %d drivers (%d active)", len(c.Drivers), len(c.GetActiveDrivers()))
}
