package daemon

import (
	"log/slog"
	"sync"
	"time"
)

// NotificationLevel indicates the severity of a desktop notification.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low urgency).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (normal urgency).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (critical urgency).
	NotificationLevelError
)

// Urgency returns the freedesktop urgency byte for the level.
func (l NotificationLevel) Urgency() byte {
	switch l {
	case NotificationLevelInfo:
		return 0
	case NotificationLevelError:
		return 2
	default:
		return 1
	}
}

// Icon returns the freedesktop icon name for the level.
func (l NotificationLevel) Icon() string {
	switch l {
	case NotificationLevelInfo:
		return "dialog-information"
	case NotificationLevelError:
		return "dialog-error"
	default:
		return "dialog-warning"
	}
}

// NotifyFunc delivers a desktop notification.
type NotifyFunc func(summary, body string, level NotificationLevel) error

// InternalNotifier tells the user about daemon events with desktop
// notifications. Repeats of the same event are rate limited.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	notify NotifyFunc
	now    func() time.Time

	// Rate limiting
	lastNotifyTime map[string]time.Time // key -> last notification time
	minInterval    time.Duration        // minimum time between same notifications

	enabled bool
}

// NewInternalNotifier creates a new InternalNotifier.
func NewInternalNotifier(logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		now:            time.Now,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    30 * time.Second,
		enabled:        true,
	}
}

// SetNotifyFunc sets the function that delivers notifications.
func (n *InternalNotifier) SetNotifyFunc(fn NotifyFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notify = fn
}

// SetEnabled enables or disables notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between duplicate notifications.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify sends a notification unless an event with the same key was sent
// within the minimum interval.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) {
	n.mu.Lock()

	if !n.enabled {
		n.mu.Unlock()
		return
	}
	if n.notify == nil {
		n.mu.Unlock()
		n.logger.Debug("notification skipped: no handler", "summary", summary)
		return
	}

	now := n.now()
	if lastTime, ok := n.lastNotifyTime[key]; ok && now.Sub(lastTime) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("notification rate-limited", "key", key, "summary", summary)
		return
	}
	n.lastNotifyTime[key] = now
	notify := n.notify
	n.mu.Unlock()

	n.logger.Debug("sending notification", "key", key, "summary", summary, "level", level)
	if err := notify(summary, body, level); err != nil {
		n.logger.Debug("failed to send notification", "key", key, "error", err)
	}
}

// NotifyConfigReloaded reports a successful hot reload.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify(
		"config-reload",
		"Configuration Reloaded",
		"autovold configuration has been successfully reloaded.",
		NotificationLevelInfo,
	)
}

// NotifyConfigError reports a config change that failed validation.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify(
		"config-error",
		"Configuration Error",
		"Failed to reload configuration: "+err.Error(),
		NotificationLevelWarning,
	)
}

// NotifyStartFailed reports that the control loop could not start.
func (n *InternalNotifier) NotifyStartFailed(err error) {
	n.Notify(
		"start-failed",
		"Automatic Volume Unavailable",
		err.Error(),
		NotificationLevelWarning,
	)
}

// NotifyPausedChanged reports a pause or resume.
func (n *InternalNotifier) NotifyPausedChanged(paused bool, source string) {
	summary, body := "Automatic Volume Resumed", "Volume follows the surrounding noise again."
	if paused {
		summary, body = "Automatic Volume Paused", "The microphone has been released."
	}
	if source != "" {
		body += " (" + source + ")"
	}
	n.Notify("pause", summary, body, NotificationLevelInfo)
}
