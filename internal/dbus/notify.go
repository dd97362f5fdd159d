package dbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName      = "org.freedesktop.Notifications"
	notificationsPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsInterface = "org.freedesktop.Notifications"

	// notifyTimeout is how long desktop notifications stay up, in milliseconds.
	notifyTimeout = 5000
)

// Notification is a desktop notification sent by autovold.
type Notification struct {
	Summary string
	Body    string
	Icon    string
	Urgency byte // 0 low, 1 normal, 2 critical
}

// DesktopNotifier sends notifications through the session's notification daemon.
type DesktopNotifier struct {
	conn    *dbus.Conn
	appName string
}

// NewDesktopNotifier connects to the session bus.
func NewDesktopNotifier(appName string) (*DesktopNotifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DesktopNotifier{conn: conn, appName: appName}, nil
}

// Send shows n and returns the notification ID assigned by the daemon.
func (d *DesktopNotifier) Send(n Notification) (uint32, error) {
	obj := d.conn.Object(notificationsName, notificationsPath)
	call := obj.Call(notificationsInterface+".Notify", 0,
		d.appName,
		uint32(0),
		n.Icon,
		n.Summary,
		n.Body,
		[]string{},
		notificationHints(n.Urgency, d.appName),
		int32(notifyTimeout),
	)
	if call.Err != nil {
		return 0, fmt.Errorf("failed to send notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to read notification id: %w", err)
	}
	return id, nil
}

func notificationHints(urgency byte, appName string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(urgency),
		"category":      dbus.MakeVariant("device"),
		"transient":     dbus.MakeVariant(true),
		"desktop-entry": dbus.MakeVariant(appName),
	}
}
