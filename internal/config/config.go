package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultAPIURL = "https://aircall-backend.onrender.com"

type Config struct {
	APIURL         string   `toml:"api_url"`
	Timeout        Duration `toml:"timeout"`
	NotifyDuration Duration `toml:"notify_duration"`
	LogFile        string   `toml:"log_file"`
	TimeZone       string   `toml:"time_zone"`
	Width          int      `toml:"width"`
}

// Duration lets config files say `timeout = "10s"`.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func Default() *Config {
	return &Config{
		APIURL:         DefaultAPIURL,
		Timeout:        Duration{10 * time.Second},
		NotifyDuration: Duration{2 * time.Second},
		Width:          72,
	}
}

// Load reads the config file at configPath, or ~/.config/acalls/config.toml when
// configPath is empty. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(homeDir, ".config", "acalls", "config.toml")
		if _, err := os.Stat(configPath); err != nil {
			applyEnv(config)
			return config, nil
		}
	}

	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}
	if err := expandTilde(config); err != nil {
		return nil, err
	}
	applyEnv(config)
	return config, nil
}

// Location resolves TimeZone, falling back to the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func applyEnv(config *Config) {
	if envURL := os.Getenv("ACALLS_API_URL"); envURL != "" {
		config.APIURL = envURL
	}
	if envLog := os.Getenv("ACALLS_LOG_FILE"); envLog != "" {
		config.LogFile = envLog
	}
}

func expandTilde(config *Config) error {
	if len(config.LogFile) == 0 || config.LogFile[0] != '~' {
		return nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	config.LogFile = filepath.Join(homeDir, config.LogFile[1:])
	return nil
}
