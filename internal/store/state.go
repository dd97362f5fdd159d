package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DataDir returns the path to the autovol data directory.
// Uses XDG_DATA_HOME or defaults to ~/.local/share/autovol.
func DataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "autovol"), nil
}

// HistoryPath returns the path to the adjustment history file.
func HistoryPath() (string, error) {
	return dataFile("history.jsonl")
}

// StateFilePath returns the path to the shared state file.
func StateFilePath() (string, error) {
	return dataFile("state.json")
}

// StatusFilePath returns the path to the daemon status file.
func StatusFilePath() (string, error) {
	return dataFile("status.json")
}

func dataFile(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}

// Trigger represents what caused a pause state change.
type Trigger string

const (
	// TriggerUser indicates a user-initiated change (CLI, D-Bus, etc.)
	TriggerUser Trigger = "user"
	// TriggerSystem indicates the daemon changed state on its own (e.g., device lost)
	TriggerSystem Trigger = "system"
)

// Transition records details about a pause state change.
type Transition struct {
	Trigger   Trigger `json:"trigger"`          // What type of event triggered the change
	Reason    string  `json:"reason"`           // Human-readable reason (e.g., "pause", "resume")
	Source    string  `json:"source,omitempty"` // Source identifier (e.g., "cli", "dbus", "autovold")
	Timestamp int64   `json:"timestamp"`        // When the transition occurred
}

// SharedState contains user intent shared between autovol and autovold.
// This is persisted to ~/.local/share/autovol/state.json
type SharedState struct {
	Paused         bool        `json:"paused"`
	LastTransition *Transition `json:"last_transition,omitempty"`

	// Version for compatibility
	SchemaVersion int `json:"schema_version"`
}

const (
	// CurrentSchemaVersion is the current version of the state schema.
	CurrentSchemaVersion = 1
)

// stateFileMutex protects concurrent access to the state files.
var stateFileMutex sync.RWMutex

// DefaultSharedState returns a new SharedState with default values.
func DefaultSharedState() *SharedState {
	return &SharedState{
		Paused:        false,
		SchemaVersion: CurrentSchemaVersion,
	}
}

// LoadSharedState loads the shared state from disk.
// If the file doesn't exist, returns a default state.
func LoadSharedState() (*SharedState, error) {
	path, err := StateFilePath()
	if err != nil {
		return nil, err
	}

	var state SharedState
	found, err := readJSON(path, &state)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultSharedState(), nil
	}

	// Ensure schema version is set
	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	return &state, nil
}

// SaveSharedState saves the shared state to disk.
func SaveSharedState(state *SharedState) error {
	path, err := StateFilePath()
	if err != nil {
		return err
	}

	// Ensure schema version is set
	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	return writeJSON(path, state)
}

// SetPaused updates the pause state with transition tracking.
// Parameters:
//   - paused: whether the control loop should be paused
//   - trigger: what type of event triggered this change
//   - reason: human-readable reason
//   - source: source identifier (e.g., "cli", "dbus")
func (s *SharedState) SetPaused(paused bool, trigger Trigger, reason, source string) {
	s.Paused = paused
	s.LastTransition = &Transition{
		Trigger:   trigger,
		Reason:    reason,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
}

// TogglePaused toggles the pause state. Returns the new state (true = paused).
func (s *SharedState) TogglePaused(trigger Trigger, reason, source string) bool {
	s.SetPaused(!s.Paused, trigger, reason, source)
	return s.Paused
}

// Status is a snapshot of the daemon, written after every tick.
// This is persisted to ~/.local/share/autovol/status.json
type Status struct {
	Running       bool    `json:"running" yaml:"running"`
	Paused        bool    `json:"paused" yaml:"paused"`
	RunID         string  `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	PID           int     `json:"pid,omitempty" yaml:"pid,omitempty"`
	Player        string  `json:"player,omitempty" yaml:"player,omitempty"`
	Score         float64 `json:"score" yaml:"score"`
	AverageScore  float64 `json:"average_score" yaml:"average_score"`
	PeakScore     float64 `json:"peak_score" yaml:"peak_score"`
	CurrentVolume int     `json:"current_volume" yaml:"current_volume"`
	TargetVolume  int     `json:"target_volume" yaml:"target_volume"`
	MaxVolume     int     `json:"max_volume" yaml:"max_volume"`
	Ticks         uint64  `json:"ticks" yaml:"ticks"`
	Adjustments   uint64  `json:"adjustments" yaml:"adjustments"`
	LastError     string  `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	StartedAt     int64   `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	UpdatedAt     int64   `json:"updated_at" yaml:"updated_at"`
}

// LoadStatus loads the daemon status from disk.
// Returns nil without error if the daemon has never written one.
func LoadStatus() (*Status, error) {
	path, err := StatusFilePath()
	if err != nil {
		return nil, err
	}

	var status Status
	found, err := readJSON(path, &status)
	if err != nil || !found {
		return nil, err
	}
	return &status, nil
}

// SaveStatus saves the daemon status to disk.
func SaveStatus(status *Status) error {
	path, err := StatusFilePath()
	if err != nil {
		return err
	}
	return writeJSON(path, status)
}

// readJSON decodes path into v. A missing or corrupted file reports found=false.
func readJSON(path string, v any) (found bool, err error) {
	stateFileMutex.RLock()
	defer stateFileMutex.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, nil
	}
	return true, nil
}

// writeJSON writes v to path atomically via a temp file.
func writeJSON(path string, v any) error {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
