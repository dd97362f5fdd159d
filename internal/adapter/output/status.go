package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/autovol/internal/store"
)

// Status output formats.
const (
	StatusText   = "text"
	StatusJSON   = "json"
	StatusYAML   = "yaml"
	StatusWaybar = "waybar"
)

// WaybarOutput is the JSON structure expected by a waybar custom module.
type WaybarOutput struct {
	Text       string `json:"text"`
	Alt        string `json:"alt"`
	Tooltip    string `json:"tooltip"`
	Class      string `json:"class"`
	Percentage int    `json:"percentage"`
}

// FormatStatus writes a daemon status in the requested format.
// A nil status means the daemon has never run.
func FormatStatus(w io.Writer, format string, status *store.Status) error {
	if status == nil {
		status = &store.Status{}
	}

	switch format {
	case StatusJSON:
		return writeJSON(w, status)
	case StatusYAML:
		return writeYAML(w, status)
	case StatusWaybar:
		return json.NewEncoder(w).Encode(NewWaybarOutput(status))
	case StatusText, "":
		return writeStatusText(w, status)
	default:
		return fmt.Errorf("unknown status format %q (valid: text, json, yaml, waybar)", format)
	}
}

// StatusClass summarises the daemon state as a single word.
func StatusClass(status *store.Status) string {
	switch {
	case status.Paused:
		return "paused"
	case status.Running:
		return "running"
	case status.LastError != "":
		return "error"
	default:
		return "stopped"
	}
}

// NewWaybarOutput builds the waybar module payload for a status.
func NewWaybarOutput(status *store.Status) WaybarOutput {
	class := StatusClass(status)
	out := WaybarOutput{
		Alt:   class,
		Class: class,
	}

	if status.MaxVolume > 0 {
		out.Percentage = status.CurrentVolume * 100 / status.MaxVolume
	}

	switch class {
	case "running":
		out.Text = fmt.Sprintf("%d/%d", status.CurrentVolume, status.MaxVolume)
		out.Tooltip = fmt.Sprintf("Automatic volume active\nLoudness: %.1f dB (avg %.1f)\nVolume: %d, target %d",
			status.Score, status.AverageScore, status.CurrentVolume, status.TargetVolume)
	case "paused":
		out.Text = "paused"
		out.Tooltip = "Automatic volume paused"
	case "error":
		out.Text = "!"
		out.Tooltip = "Automatic volume unavailable: " + status.LastError
	default:
		out.Text = "off"
		out.Tooltip = "Automatic volume not running"
	}

	return out
}

// stateColors maps a status class to an ANSI color.
var stateColors = map[string]lipgloss.Color{
	"running": lipgloss.Color("2"),
	"paused":  lipgloss.Color("3"),
	"error":   lipgloss.Color("1"),
	"stopped": lipgloss.Color("8"),
}

func writeStatusText(w io.Writer, status *store.Status) error {
	// Colors are dropped when w is not a terminal
	renderer := lipgloss.NewRenderer(w)
	class := StatusClass(status)
	state := renderer.NewStyle().Bold(true).Foreground(stateColors[class]).Render(class)

	var lines []string
	lines = append(lines, fmt.Sprintf("State:       %s", state))

	if status.Running {
		lines = append(lines,
			fmt.Sprintf("Volume:      %d (target %d, max %d)", status.CurrentVolume, status.TargetVolume, status.MaxVolume),
			fmt.Sprintf("Loudness:    %.1f dB (avg %.1f, peak %.1f)", status.Score, status.AverageScore, status.PeakScore),
			fmt.Sprintf("Ticks:       %s", humanize.Comma(int64(status.Ticks))),
			fmt.Sprintf("Adjustments: %s", humanize.Comma(int64(status.Adjustments))),
		)
		if status.Player != "" {
			lines = append(lines, fmt.Sprintf("Player:      %s", status.Player))
		}
		if status.StartedAt > 0 {
			lines = append(lines, fmt.Sprintf("Started:     %s", humanize.Time(time.Unix(status.StartedAt, 0))))
		}
	}
	if status.LastError != "" {
		lines = append(lines, fmt.Sprintf("Last error:  %s", status.LastError))
	}
	if status.UpdatedAt > 0 {
		lines = append(lines, fmt.Sprintf("Updated:     %s", humanize.Time(time.Unix(status.UpdatedAt, 0))))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
