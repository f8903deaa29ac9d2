package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ClientConfig drives the agenda CLI: where local task state lives and
// which server, if any, it syncs against.
type ClientConfig struct {
	ServerURL        string `yaml:"server_url" json:"server_url"`
	Token            string `yaml:"token" json:"token"`
	DataDir          string `yaml:"data_dir" json:"data_dir"`
	DayCapacityHours int    `yaml:"day_capacity_hours" json:"day_capacity_hours"`
	Sync             Sync   `yaml:"sync" json:"sync"`
}

func (c *ClientConfig) ApplyDefaults() {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.DataDir = filepath.Join(home, ".dayparty")
	}
	if c.DayCapacityHours == 0 {
		c.DayCapacityHours = 8
	}
	if c.Sync.IntervalMinutes == 0 {
		c.Sync.IntervalMinutes = 1
	}
}

func DefaultClient() *ClientConfig {
	c := &ClientConfig{}
	c.ApplyDefaults()
	return c
}

// LoadClient reads the CLI config. A missing file is not an error; the
// defaults describe a purely local, sync-disabled agenda.
func LoadClient(path string) (*ClientConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultClient(), nil
		}
		return nil, err
	}
	var c ClientConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	return &c, nil
}

// SaveClient writes the CLI config back to disk.
func SaveClient(path string, c *ClientConfig) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// ClientConfigPath resolves the default CLI config location, honoring
// DAYPARTY_CONFIG when set.
func ClientConfigPath() string {
	if v := os.Getenv("DAYPARTY_CONFIG"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".dayparty", "config.yml")
}
