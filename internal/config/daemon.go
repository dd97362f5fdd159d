package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/autovol/internal/control"
)

// Default daemon values not covered by control.DefaultParams.
const (
	DefaultSampleRate    = 44100
	DefaultBlockSize     = 2048
	DefaultSinkSteps     = 15
	DefaultInitialVolume = 10
	DefaultMetricsListen = "127.0.0.1:9464"
	DefaultHistoryMax    = 1000
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "500ms", "5s", "1m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Try parsing as integer (milliseconds)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '500ms', '5s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for autovold.
// Loaded from ~/.config/autovol/autovold.toml
type DaemonConfig struct {
	Control ControlConfig `toml:"control"`
	Source  SourceConfig  `toml:"source"`
	Sink    SinkConfig    `toml:"sink"`
	Metrics MetricsConfig `toml:"metrics"`
	History HistoryStore  `toml:"history"`
	Notify  NotifyConfig  `toml:"notify"`
	Log     LogConfig     `toml:"log"`
}

// ControlConfig holds the control loop tuning.
type ControlConfig struct {
	MinVolume     int      `toml:"min_volume"`     // Volume in quiet surroundings
	MaxVolume     int      `toml:"max_volume"`     // Volume in loud surroundings
	LowThreshold  float64  `toml:"low_threshold"`  // Score below which the volume is minimal
	HighThreshold float64  `toml:"high_threshold"` // Score above which the volume is maximal
	Interval      Duration `toml:"interval"`       // e.g., "5s", "500ms", or "5000" (milliseconds)
}

// SourceConfig selects where samples come from.
type SourceConfig struct {
	Backend    string `toml:"backend"`     // "capture" or "file"
	Device     string `toml:"device"`      // Capture device name substring, empty = default
	SampleRate int    `toml:"sample_rate"` // Hz
	BlockSize  int    `toml:"block_size"`  // Samples per tick
	File       string `toml:"file"`        // Recording to replay when backend = "file"
	Loop       bool   `toml:"loop"`        // Restart the recording at EOF
}

// SinkConfig selects which volume is controlled.
type SinkConfig struct {
	Backend string `toml:"backend"` // "mpris" or "memory"
	Player  string `toml:"player"`  // MPRIS player name (e.g., "spotify"), empty = first found
	Steps   int    `toml:"steps"`   // Number of discrete volume levels
	Initial int    `toml:"initial"` // Starting level for the memory sink
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// HistoryStore configures the adjustment history log.
type HistoryStore struct {
	Enabled    bool `toml:"enabled"`
	MaxEntries int  `toml:"max_entries"` // Entries kept on disk (0 = unlimited)
}

// NotifyConfig configures desktop notifications about daemon events.
type NotifyConfig struct {
	Enabled bool `toml:"enabled"` // Config reloads, start failures, pause changes
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// Source backends.
const (
	SourceCapture = "capture"
	SourceFile    = "file"
)

// Sink backends.
const (
	SinkMPRIS  = "mpris"
	SinkMemory = "memory"
)

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	p := control.DefaultParams()
	return &DaemonConfig{
		Control: ControlConfig{
			MinVolume:     p.MinVolume,
			MaxVolume:     p.MaxVolume,
			LowThreshold:  p.LowThreshold,
			HighThreshold: p.HighThreshold,
			Interval:      Duration(p.TickInterval),
		},
		Source: SourceConfig{
			Backend:    SourceCapture,
			SampleRate: DefaultSampleRate,
			BlockSize:  DefaultBlockSize,
			Loop:       true,
		},
		Sink: SinkConfig{
			Backend: SinkMPRIS,
			Steps:   DefaultSinkSteps,
			Initial: DefaultInitialVolume,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  DefaultMetricsListen,
		},
		History: HistoryStore{
			Enabled:    true,
			MaxEntries: DefaultHistoryMax,
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName, "autovold.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from path.
// If path is empty the default location is used. If the file doesn't exist,
// returns the default configuration.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		var err error
		path, err = DaemonConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to path, or the default
// location if path is empty.
func SaveDaemonConfig(config *DaemonConfig, path string) error {
	if path == "" {
		var err error
		path, err = DaemonConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
// Control errors wrap control.ErrInvalidConfiguration.
func (c *DaemonConfig) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}

	switch c.Source.Backend {
	case SourceCapture:
	case SourceFile:
		if c.Source.File == "" {
			return fmt.Errorf("source backend %q requires a file", SourceFile)
		}
	default:
		return fmt.Errorf("invalid source backend %q, must be one of: %s, %s", c.Source.Backend, SourceCapture, SourceFile)
	}
	if c.Source.SampleRate < 8000 || c.Source.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000, got %d", c.Source.SampleRate)
	}
	if c.Source.BlockSize < 64 || c.Source.BlockSize > 1<<16 {
		return fmt.Errorf("block_size must be between 64 and 65536, got %d", c.Source.BlockSize)
	}

	switch c.Sink.Backend {
	case SinkMPRIS, SinkMemory:
	default:
		return fmt.Errorf("invalid sink backend %q, must be one of: %s, %s", c.Sink.Backend, SinkMPRIS, SinkMemory)
	}
	if c.Sink.Steps < 1 || c.Sink.Steps > 1000 {
		return fmt.Errorf("steps must be between 1 and 1000, got %d", c.Sink.Steps)
	}
	if c.Sink.Initial < 0 || c.Sink.Initial > c.Sink.Steps {
		return fmt.Errorf("initial volume must be between 0 and %d, got %d", c.Sink.Steps, c.Sink.Initial)
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics listen address must be set when metrics are enabled")
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history max_entries must not be negative, got %d", c.History.MaxEntries)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// Params converts the control section to control loop parameters.
func (c *DaemonConfig) Params() control.Params {
	return control.Params{
		MinVolume:     c.Control.MinVolume,
		MaxVolume:     c.Control.MaxVolume,
		LowThreshold:  c.Control.LowThreshold,
		HighThreshold: c.Control.HighThreshold,
		TickInterval:  c.Control.Interval.Duration(),
	}
}

// ParseLevel converts a log level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
