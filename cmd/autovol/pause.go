package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/autovol/internal/store"
)

var pauseOpts struct {
	quiet bool // Suppress output, return exit code only
}

// pauseCmd pauses automatic volume control.
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause automatic volume control",
	Long: `Pause automatic volume control. The daemon stops adjusting the volume and
releases the microphone until resumed. The pause survives daemon restarts.

Exit code is 1 while paused and 0 while active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(cmd, true)
	},
}

// resumeCmd resumes automatic volume control.
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume automatic volume control",
	Long:  `Resume automatic volume control after a pause.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(cmd, false)
	},
}

// toggleCmd toggles the pause state.
var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle between paused and active",
	Long:  `Toggle automatic volume control between paused and active.`,
	RunE:  runToggle,
}

// pausedCmd reports the pause state.
var pausedCmd = &cobra.Command{
	Use:   "paused",
	Short: "Show whether automatic volume control is paused",
	Long: `Show whether automatic volume control is paused, and when and why the
state last changed. Exit code is 1 while paused and 0 while active.`,
	RunE: runPausedStatus,
}

func init() {
	for _, cmd := range []*cobra.Command{pauseCmd, resumeCmd, toggleCmd, pausedCmd} {
		cmd.Flags().BoolVarP(&pauseOpts.quiet, "quiet", "q", false,
			"Suppress output, return exit code only (0=active, 1=paused)")
		rootCmd.AddCommand(cmd)
	}
}

func runToggle(cmd *cobra.Command, args []string) error {
	state, err := store.LoadSharedState()
	if err != nil {
		return reportStateError("load", err)
	}
	return setPaused(cmd, !state.Paused)
}

// setPaused asks a running daemon to change state, and writes the shared
// state file directly when no daemon is reachable.
func setPaused(cmd *cobra.Command, paused bool) error {
	if client := daemonClient(); client != nil {
		ctx, cancel := daemonContext(cmd)
		defer cancel()

		call := client.Resume
		if paused {
			call = client.Pause
		}
		err := call(ctx)
		if err == nil {
			return exitWithPauseState(paused)
		}
		logger.Warn("daemon call failed, writing state file", "error", err)
	}

	state, err := store.LoadSharedState()
	if err != nil {
		return reportStateError("load", err)
	}

	reason := "resume"
	if paused {
		reason = "pause"
	}
	state.SetPaused(paused, store.TriggerUser, reason, "cli")
	if err := store.SaveSharedState(state); err != nil {
		return reportStateError("save", err)
	}

	return exitWithPauseState(paused)
}

func runPausedStatus(cmd *cobra.Command, args []string) error {
	state, err := store.LoadSharedState()
	if err != nil {
		return reportStateError("load", err)
	}

	if !pauseOpts.quiet {
		printPauseState(state.Paused)

		if t := state.LastTransition; t != nil {
			fmt.Printf("  Last change: %s\n", formatTransitionTime(t.Timestamp))
			fmt.Printf("  Trigger: %s\n", t.Trigger)
			if t.Reason != "" {
				fmt.Printf("  Reason: %s\n", t.Reason)
			}
			if t.Source != "" {
				fmt.Printf("  Source: %s\n", t.Source)
			}
		}
	}

	if state.Paused {
		os.Exit(1)
	}
	return nil
}

func exitWithPauseState(paused bool) error {
	if !pauseOpts.quiet {
		printPauseState(paused)
	}

	// Exit code 1 means paused
	if paused {
		os.Exit(1)
	}
	return nil
}

func printPauseState(paused bool) {
	if paused {
		fmt.Println("Automatic volume: paused")
	} else {
		fmt.Println("Automatic volume: active")
	}
}

func reportStateError(op string, err error) error {
	if !pauseOpts.quiet {
		fmt.Fprintf(os.Stderr, "Failed to %s state: %v\n", op, err)
	}
	return err
}

// formatTransitionTime formats a Unix timestamp as a relative time.
func formatTransitionTime(ts int64) string {
	if ts == 0 {
		return "unknown"
	}
	return humanize.Time(time.Unix(ts, 0))
}
