package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	// ControlInterface is the autovol control interface name.
	ControlInterface = "io.github.jmylchreest.Autovol"
	// ControlPath is the control object path.
	ControlPath = dbus.ObjectPath("/io/github/jmylchreest/Autovol")
	// ControlBusName is the bus name to claim.
	ControlBusName = "io.github.jmylchreest.Autovol"
)

// Snapshot is the daemon state reported by Status.
type Snapshot struct {
	Running bool
	Paused  bool
	Score   float64
	Current int
	Target  int
}

// Controller is implemented by the daemon.
type Controller interface {
	Snapshot() Snapshot
	SetPaused(paused bool, source string) error
}

// ControlServer exports the autovol control interface on the session bus.
type ControlServer struct {
	conn       *dbus.Conn
	logger     *slog.Logger
	controller Controller

	mu      sync.Mutex
	running bool
}

// NewControlServer creates a new ControlServer.
func NewControlServer(controller Controller, logger *slog.Logger) *ControlServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlServer{
		logger:     logger,
		controller: controller,
	}
}

// Start connects to the session bus and exports the control object.
func (s *ControlServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Export(s, ControlPath, ControlInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: string(ControlPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    ControlInterface,
				Methods: controlMethods(),
				Signals: controlSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ControlPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(ControlBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken (is autovold already running?)", ControlBusName)
	}

	s.conn = conn
	s.running = true

	s.logger.Info("D-Bus control server started", "interface", ControlInterface, "path", ControlPath)
	return nil
}

// Stop releases the bus name and unexports the object.
func (s *ControlServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(ControlBusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		_ = s.conn.Export(nil, ControlPath, ControlInterface)
		_ = s.conn.Export(nil, ControlPath, "org.freedesktop.DBus.Introspectable")
		// Don't close the connection as it's shared (SessionBus)
	}

	s.logger.Info("D-Bus control server stopped")
	return nil
}

// Status reports the loop state.
// D-Bus method: Status() -> (bbdii)
func (s *ControlServer) Status() (bool, bool, float64, int32, int32, *dbus.Error) {
	snap := s.controller.Snapshot()
	return snap.Running, snap.Paused, snap.Score, int32(snap.Current), int32(snap.Target), nil
}

// Pause stops the control loop and releases the microphone.
// D-Bus method: Pause() -> nothing
func (s *ControlServer) Pause() *dbus.Error {
	s.logger.Debug("Pause called")
	return s.setPaused(true)
}

// Resume restarts the control loop.
// D-Bus method: Resume() -> nothing
func (s *ControlServer) Resume() *dbus.Error {
	s.logger.Debug("Resume called")
	return s.setPaused(false)
}

func (s *ControlServer) setPaused(paused bool) *dbus.Error {
	if err := s.controller.SetPaused(paused, "dbus"); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// controlMethods returns the D-Bus method introspection data.
func controlMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Status",
			Args: []introspect.Arg{
				{Name: "running", Type: "b", Direction: "out"},
				{Name: "paused", Type: "b", Direction: "out"},
				{Name: "score", Type: "d", Direction: "out"},
				{Name: "current", Type: "i", Direction: "out"},
				{Name: "target", Type: "i", Direction: "out"},
			},
		},
		{Name: "Pause"},
		{Name: "Resume"},
	}
}

// controlSignals returns the D-Bus signal introspection data.
func controlSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "PausedChanged",
			Args: []introspect.Arg{
				{Name: "paused", Type: "b"},
			},
		},
		{
			Name: "VolumeChanged",
			Args: []introspect.Arg{
				{Name: "volume", Type: "i"},
				{Name: "target", Type: "i"},
			},
		},
	}
}
