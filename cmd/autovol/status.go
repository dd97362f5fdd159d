package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/autovol/internal/adapter/output"
	"github.com/jmylchreest/autovol/internal/store"
)

var statusOpts struct {
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon status",
	Long: `Show the state of autovold: whether it is running or paused, the current
loudness score and the current and target volume.

The live state is read over D-Bus when the daemon is reachable, and the
status file written after every tick is used otherwise.

Formats:
  text    Human readable summary (default)
  json    Full status as JSON
  yaml    Full status as YAML
  waybar  JSON for a waybar custom module`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusOpts.format, "format", "f", "",
		"Output format: text, json, yaml, waybar")
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := currentStatus(cmd)
	if err != nil {
		return err
	}

	format := statusOpts.format
	if format == "" {
		format = cfg.Output.Format
	}
	return output.FormatStatus(os.Stdout, format, status)
}

// currentStatus merges the status file with the live daemon state.
func currentStatus(cmd *cobra.Command) (*store.Status, error) {
	status, err := store.LoadStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to load status: %w", err)
	}
	if status == nil {
		status = &store.Status{}
	}

	if client := daemonClient(); client != nil {
		ctx, cancel := daemonContext(cmd)
		defer cancel()

		snap, err := client.Status(ctx)
		if err == nil {
			status.Running = snap.Running
			status.Paused = snap.Paused
			status.Score = snap.Score
			status.CurrentVolume = snap.Current
			status.TargetVolume = snap.Target
			return status, nil
		}
		logger.Warn("failed to query daemon status", "error", err)
	}

	// The file may be stale if the daemon died without cleaning up
	if status.Running && !processAlive(status.PID) {
		status.Running = false
	}

	state, err := store.LoadSharedState()
	if err != nil {
		logger.Warn("failed to load shared state", "error", err)
	} else {
		status.Paused = state.Paused
	}

	return status, nil
}

// processAlive reports whether a process with pid exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
