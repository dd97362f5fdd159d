package dbus

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	// MPRISPrefix is the bus name prefix shared by all MPRIS players.
	MPRISPrefix = "org.mpris.MediaPlayer2."
	// MPRISPath is the object path of an MPRIS player.
	MPRISPath = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	// MPRISPlayerInterface is the interface carrying Volume and PlaybackStatus.
	MPRISPlayerInterface = "org.mpris.MediaPlayer2.Player"
)

// PlaybackStatus is the MPRIS PlaybackStatus property.
type PlaybackStatus string

const (
	PlaybackPlaying PlaybackStatus = "Playing"
	PlaybackPaused  PlaybackStatus = "Paused"
	PlaybackStopped PlaybackStatus = "Stopped"
)

// rank orders statuses for player selection; lower is preferred.
func (s PlaybackStatus) rank() int {
	switch s {
	case PlaybackPlaying:
		return 0
	case PlaybackPaused:
		return 1
	default:
		return 2
	}
}

// PlayerName returns the short player name of an MPRIS bus name
// ("org.mpris.MediaPlayer2.spotify" -> "spotify").
func PlayerName(busName string) string {
	return strings.TrimPrefix(busName, MPRISPrefix)
}

// MPRISPlayers filters bus names down to MPRIS players, sorted by name.
func MPRISPlayers(names []string) []string {
	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, MPRISPrefix) && len(name) > len(MPRISPrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	return players
}

// PlayerCandidate is an MPRIS player considered for volume control.
type PlayerCandidate struct {
	BusName string
	Status  PlaybackStatus
}

// SelectPlayer picks the player to control. If want is set, the first player
// whose short name starts with want (case-insensitive) wins; instance
// suffixes such as "vlc.instance1234" match "vlc". Otherwise a playing
// player is preferred over a paused one, then a stopped one.
func SelectPlayer(candidates []PlayerCandidate, want string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no MPRIS player on the session bus")
	}

	if want != "" {
		want = strings.ToLower(want)
		for _, c := range candidates {
			if strings.HasPrefix(strings.ToLower(PlayerName(c.BusName)), want) {
				return c.BusName, nil
			}
		}
		return "", fmt.Errorf("no MPRIS player matching %q", want)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Status.rank() < best.Status.rank() {
			best = c
		}
	}
	return best.BusName, nil
}

// ToLevel quantises an MPRIS volume (0.0 to 1.0) to an integer level in
// 0..steps, rounding to the nearest level. Out-of-range volumes are clamped.
func ToLevel(volume float64, steps int) int {
	if steps <= 0 || math.IsNaN(volume) {
		return 0
	}
	volume = min(max(volume, 0), 1)
	return int(math.Round(volume * float64(steps)))
}

// ToVolume converts an integer level in 0..steps to an MPRIS volume.
func ToVolume(level, steps int) float64 {
	if steps <= 0 {
		return 0
	}
	level = min(max(level, 0), steps)
	return float64(level) / float64(steps)
}

// volumeFromVariant extracts the Volume property value.
func volumeFromVariant(v dbus.Variant) (float64, error) {
	switch val := v.Value().(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int32:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("unexpected Volume type %s", v.Signature())
	}
}

// statusFromVariant extracts the PlaybackStatus property value.
func statusFromVariant(v dbus.Variant) PlaybackStatus {
	if s, ok := v.Value().(string); ok {
		return PlaybackStatus(s)
	}
	return PlaybackStopped
}
