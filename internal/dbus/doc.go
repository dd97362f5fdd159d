// Package dbus connects autovol to the session bus. MPRISSink drives the
// volume of an MPRIS media player, ControlServer exports the daemon's
// status and pause controls, and Client calls them from the CLI.
package dbus
