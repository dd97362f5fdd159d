// Package daemon provides the orchestration for autovold.
// It owns the control loop and fans its tick results out to metrics, the
// status file, the adjustment history and D-Bus, and applies pause changes
// and configuration hot-reloads.
package daemon
