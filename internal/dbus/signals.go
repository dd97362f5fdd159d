package dbus

import (
	"fmt"
)

// EmitPausedChanged emits the PausedChanged signal.
func (s *ControlServer) EmitPausedChanged(paused bool) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	if err := conn.Emit(ControlPath, ControlInterface+".PausedChanged", paused); err != nil {
		return fmt.Errorf("failed to emit PausedChanged signal: %w", err)
	}

	s.logger.Debug("emitted PausedChanged signal", "paused", paused)
	return nil
}

// EmitVolumeChanged emits the VolumeChanged signal after the loop stepped
// the volume.
func (s *ControlServer) EmitVolumeChanged(volume, target int) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	if err := conn.Emit(ControlPath, ControlInterface+".VolumeChanged", int32(volume), int32(target)); err != nil {
		return fmt.Errorf("failed to emit VolumeChanged signal: %w", err)
	}

	s.logger.Debug("emitted VolumeChanged signal", "volume", volume, "target", target)
	return nil
}
