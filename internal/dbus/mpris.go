package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// PropertyObject is the subset of dbus.BusObject used for MPRIS properties.
type PropertyObject interface {
	GetProperty(p string) (dbus.Variant, error)
	SetProperty(p string, v interface{}) error
}

// Bus is the session bus as seen by MPRISSink.
type Bus interface {
	ListNames() ([]string, error)
	Object(dest string, path dbus.ObjectPath) PropertyObject
}

// sessionBus adapts a *dbus.Conn to Bus.
type sessionBus struct {
	conn *dbus.Conn
}

func (b sessionBus) ListNames() ([]string, error) {
	var names []string
	err := b.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

func (b sessionBus) Object(dest string, path dbus.ObjectPath) PropertyObject {
	return b.conn.Object(dest, path)
}

// MPRISSink is a control.VolumeSink driving the Volume property of an MPRIS
// media player. The 0.0 to 1.0 volume is quantised to Steps levels.
//
// The player is resolved lazily and re-resolved after a failed call, so a
// player that restarts or changes instance name is picked up again.
type MPRISSink struct {
	bus    Bus
	want   string
	steps  int
	logger *slog.Logger

	mu     sync.Mutex
	player string // Resolved bus name, empty when unresolved
}

// NewMPRISSink connects to the session bus and creates a sink for the player
// matching want (empty = the best available player).
func NewMPRISSink(want string, steps int, logger *slog.Logger) (*MPRISSink, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return NewMPRISSinkWithBus(sessionBus{conn: conn}, want, steps, logger), nil
}

// NewMPRISSinkWithBus creates a sink on an existing bus.
func NewMPRISSinkWithBus(bus Bus, want string, steps int, logger *slog.Logger) *MPRISSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MPRISSink{
		bus:    bus,
		want:   want,
		steps:  steps,
		logger: logger,
	}
}

// Player returns the short name of the resolved player, or "" if none.
func (s *MPRISSink) Player() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PlayerName(s.player)
}

// Max returns the number of steps. It fails if no player can be found.
func (s *MPRISSink) Max() (int, error) {
	if _, err := s.resolve(); err != nil {
		return 0, err
	}
	return s.steps, nil
}

// Current reads the player volume as a level.
func (s *MPRISSink) Current() (int, error) {
	player, err := s.resolve()
	if err != nil {
		return 0, err
	}

	v, err := s.bus.Object(player, MPRISPath).GetProperty(MPRISPlayerInterface + ".Volume")
	if err != nil {
		s.forget(player)
		return 0, fmt.Errorf("failed to read volume of %s: %w", PlayerName(player), err)
	}

	volume, err := volumeFromVariant(v)
	if err != nil {
		return 0, err
	}
	return ToLevel(volume, s.steps), nil
}

// SetCurrent writes a level to the player volume.
func (s *MPRISSink) SetCurrent(level int) error {
	player, err := s.resolve()
	if err != nil {
		return err
	}

	volume := ToVolume(level, s.steps)
	err = s.bus.Object(player, MPRISPath).SetProperty(MPRISPlayerInterface+".Volume", dbus.MakeVariant(volume))
	if err != nil {
		s.forget(player)
		return fmt.Errorf("failed to set volume of %s: %w", PlayerName(player), err)
	}

	s.logger.Debug("player volume set", "player", PlayerName(player), "level", level, "volume", volume)
	return nil
}

// resolve returns the cached player or looks one up.
func (s *MPRISSink) resolve() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != "" {
		return s.player, nil
	}

	candidates, err := playerCandidates(s.bus)
	if err != nil {
		return "", err
	}

	player, err := SelectPlayer(candidates, s.want)
	if err != nil {
		return "", err
	}

	s.player = player
	s.logger.Info("controlling MPRIS player", "player", PlayerName(player))
	return player, nil
}

// forget drops the cached player if it is still the one that failed.
func (s *MPRISSink) forget(player string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == player {
		s.player = ""
	}
}

// ListPlayers returns the MPRIS players on the session bus with their
// playback status.
func ListPlayers() ([]PlayerCandidate, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return playerCandidates(sessionBus{conn: conn})
}

func playerCandidates(bus Bus) ([]PlayerCandidate, error) {
	names, err := bus.ListNames()
	if err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	players := MPRISPlayers(names)
	candidates := make([]PlayerCandidate, 0, len(players))
	for _, name := range players {
		status := PlaybackStopped
		if v, err := bus.Object(name, MPRISPath).GetProperty(MPRISPlayerInterface + ".PlaybackStatus"); err == nil {
			status = statusFromVariant(v)
		}
		candidates = append(candidates, PlayerCandidate{BusName: name, Status: status})
	}
	return candidates, nil
}
