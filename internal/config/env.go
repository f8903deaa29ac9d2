package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays DAYPARTY_* environment variables on top of a loaded
// config. Unset variables leave the config untouched.
func FromEnv(c *Config) {
	if c == nil {
		return
	}
	if v := strings.TrimSpace(os.Getenv("DAYPARTY_LISTEN_ADDR")); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("DAYPARTY_DATA_DIR")); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("DAYPARTY_BASE_URL")); v != "" {
		c.BaseURL = v
	}
	if v := getEnvInt("DAYPARTY_DAY_CAPACITY_HOURS"); v > 0 {
		c.Planner.DayCapacityHours = v
	}
	if v := getEnvInt("DAYPARTY_SYNC_INTERVAL_MINUTES"); v > 0 {
		c.Sync.IntervalMinutes = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("DAYPARTY_SYNC_ENABLED"))); v != "" {
		c.Sync.Enabled = v == "1" || v == "true" || v == "yes"
	}
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}
