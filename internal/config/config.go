package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Paths   Paths   `yaml:"paths"`
	Source  Source  `yaml:"source"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Paths holds every on-disk location the tool touches. Empty values fall
// back to XDG defaults so tests can point each one at a temp dir.
type Paths struct {
	RegistryPath string `yaml:"registry_path"`
	HistoryDir   string `yaml:"history_dir"`
	ChartDir     string `yaml:"chart_dir"`
	DataDir      string `yaml:"data_dir"`
}

type Source struct {
	BaseURL        string `yaml:"base_url"`
	UserAgent      string `yaml:"user_agent"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for ficstats.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "ficstats")
}

// DataDir returns the XDG data directory for ficstats.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "ficstats")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/ficstats/config.yaml > ./config.yaml.
// An empty path with a nil error means no file was found and defaults apply.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// Load reads and parses a config YAML file. An empty path yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Source: Source{
			BaseURL:        "https://archiveofourown.org",
			UserAgent:      "ficstats/1.0 (personal stats tracker)",
			TimeoutSeconds: 30,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Paths.DataDir != "" {
		return c.Paths.DataDir
	}
	return DataDir()
}

// GetRegistryPath returns the tracked-works list file.
func (c *Config) GetRegistryPath() string {
	if c.Paths.RegistryPath != "" {
		return c.Paths.RegistryPath
	}
	return filepath.Join(c.GetDataDir(), "tracked_works.txt")
}

// GetHistoryDir returns the directory holding one history file per work.
func (c *Config) GetHistoryDir() string {
	if c.Paths.HistoryDir != "" {
		return c.Paths.HistoryDir
	}
	return filepath.Join(c.GetDataDir(), "history")
}

// GetChartDir returns the default output directory offered for new works.
func (c *Config) GetChartDir() string {
	if c.Paths.ChartDir != "" {
		return c.Paths.ChartDir
	}
	return filepath.Join(homeDir(), "Desktop")
}

// GetDatabasePath returns the run ledger location.
func (c *Config) GetDatabasePath() string {
	return filepath.Join(c.GetDataDir(), "ficstats.db")
}

// GetLockPath returns the file used to serialize runs and edits.
func (c *Config) GetLockPath() string {
	return filepath.Join(c.GetDataDir(), "ficstats.lock")
}

// FetchTimeout bounds a single metrics fetch.
func (c *Config) FetchTimeout() time.Duration {
	if c.Source.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
