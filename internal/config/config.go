// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// appName is the directory name used under the XDG config and data homes.
const appName = "autovol"

// Default configuration values.
const (
	DefaultStatusFormat   = "text"
	DefaultHistorySince   = "24h"
	DefaultHistoryLimit   = 50
	DefaultPruneOlderThan = "168h"
	DefaultSimulateBlock  = 2048
)

// Config represents the autovol CLI configuration.
type Config struct {
	Output   OutputConfig   `toml:"output"`
	History  HistoryConfig  `toml:"history"`
	Prune    PruneConfig    `toml:"prune"`
	Simulate SimulateConfig `toml:"simulate"`
}

// OutputConfig holds default output options.
type OutputConfig struct {
	Format string `toml:"format"` // text, json, yaml
}

// HistoryConfig holds default history listing options.
type HistoryConfig struct {
	Since string `toml:"since"` // Default time filter (0 = all time)
	Limit int    `toml:"limit"` // Max entries (0 = unlimited)
}

// PruneConfig holds default prune options.
type PruneConfig struct {
	OlderThan string `toml:"older_than"` // Default age threshold
	Keep      int    `toml:"keep"`       // Max to keep (0 = unlimited)
}

// SimulateConfig holds defaults for offline replay.
type SimulateConfig struct {
	BlockSize  int `toml:"block_size"`
	SampleRate int `toml:"sample_rate"`
	Start      int `toml:"start_volume"` // Volume the simulated sink starts at
	Steps      int `toml:"steps"`        // Simulated sink maximum
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Format: DefaultStatusFormat,
		},
		History: HistoryConfig{
			Since: DefaultHistorySince,
			Limit: DefaultHistoryLimit,
		},
		Prune: PruneConfig{
			OlderThan: DefaultPruneOlderThan,
			Keep:      0,
		},
		Simulate: SimulateConfig{
			BlockSize:  DefaultSimulateBlock,
			SampleRate: DefaultSampleRate,
			Start:      DefaultInitialVolume,
			Steps:      DefaultSinkSteps,
		},
	}
}

// ConfigDir returns the autovol config directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, appName)
}

// ConfigPath returns the path to the CLI config file.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, appName)
}

// HistoryPath returns the path to the adjustment history JSONL file.
func HistoryPath() string {
	return filepath.Join(DataPath(), "history.jsonl")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}
