package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Client calls the control interface of a running autovold.
type Client struct {
	obj dbus.BusObject
}

// NewClient connects to the session bus. It fails if autovold does not own
// its bus name.
func NewClient() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var hasOwner bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, ControlBusName).Store(&hasOwner); err != nil {
		return nil, fmt.Errorf("failed to query bus name: %w", err)
	}
	if !hasOwner {
		return nil, fmt.Errorf("autovold is not running on the session bus")
	}

	return &Client{obj: conn.Object(ControlBusName, ControlPath)}, nil
}

// Status calls Status on the daemon.
func (c *Client) Status(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var current, target int32

	call := c.obj.CallWithContext(ctx, ControlInterface+".Status", 0)
	if err := call.Store(&snap.Running, &snap.Paused, &snap.Score, &current, &target); err != nil {
		return Snapshot{}, fmt.Errorf("status call failed: %w", err)
	}

	snap.Current = int(current)
	snap.Target = int(target)
	return snap, nil
}

// Pause calls Pause on the daemon.
func (c *Client) Pause(ctx context.Context) error {
	if err := c.obj.CallWithContext(ctx, ControlInterface+".Pause", 0).Err; err != nil {
		return fmt.Errorf("pause call failed: %w", err)
	}
	return nil
}

// Resume calls Resume on the daemon.
func (c *Client) Resume(ctx context.Context) error {
	if err := c.obj.CallWithContext(ctx, ControlInterface+".Resume", 0).Err; err != nil {
		return fmt.Errorf("resume call failed: %w", err)
	}
	return nil
}
