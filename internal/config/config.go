package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string  `yaml:"listen_addr" json:"listen_addr"`
	DataDir    string  `yaml:"data_dir" json:"data_dir"`
	BaseURL    string  `yaml:"base_url" json:"base_url"`
	Planner    Planner `yaml:"planner" json:"planner"`
	Sync       Sync    `yaml:"sync" json:"sync"`
	Auth       Auth    `yaml:"auth" json:"auth"`
}

type Planner struct {
	DayCapacityHours int `yaml:"day_capacity_hours" json:"day_capacity_hours"`
	SlotMinutes      int `yaml:"slot_minutes" json:"slot_minutes"`
}

type Sync struct {
	Enabled         bool `yaml:"enabled" json:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes" json:"interval_minutes"`
}

type Auth struct {
	LinkTTLMinutes int `yaml:"link_ttl_minutes" json:"link_ttl_minutes"`
	SessionTTLDays int `yaml:"session_ttl_days" json:"session_ttl_days"`
}

func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.Planner.DayCapacityHours == 0 {
		c.Planner.DayCapacityHours = 8
	}
	if c.Planner.SlotMinutes == 0 {
		c.Planner.SlotMinutes = 15
	}
	if c.Sync.IntervalMinutes == 0 {
		c.Sync.IntervalMinutes = 1
	}
	if c.Auth.LinkTTLMinutes == 0 {
		c.Auth.LinkTTLMinutes = 15
	}
	if c.Auth.SessionTTLDays == 0 {
		c.Auth.SessionTTLDays = 30
	}
}

func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	return &c, nil
}
