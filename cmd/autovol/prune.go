package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/autovol/internal/core"
	"github.com/jmylchreest/autovol/internal/model"
)

var pruneOpts struct {
	olderThan string
	keep      int
	dryRun    bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old adjustments from history",
	Long: `Remove old adjustments from the persistent history.

Without flags the defaults from the [prune] section of the CLI config are used.

Examples:
  # Remove adjustments older than 7 days
  autovol prune --older-than 7d

  # Keep only the 100 most recent adjustments
  autovol prune --keep 100

  # Preview what would be removed (dry run)
  autovol prune --older-than 48h --dry-run`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringVar(&pruneOpts.olderThan, "older-than", "",
		"Remove adjustments older than this duration (e.g., 48h, 7d, 1w)")
	pruneCmd.Flags().IntVar(&pruneOpts.keep, "keep", 0,
		"Keep only the N most recent adjustments (0=unlimited)")
	pruneCmd.Flags().BoolVar(&pruneOpts.dryRun, "dry-run", false,
		"Show what would be removed without actually removing")
}

func runPrune(cmd *cobra.Command, args []string) error {
	olderThanStr := pruneOpts.olderThan
	keep := pruneOpts.keep
	if olderThanStr == "" && keep == 0 {
		olderThanStr = cfg.Prune.OlderThan
		keep = cfg.Prune.Keep
	}

	olderThan, err := core.ParseDuration(olderThanStr)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if olderThan == 0 && keep == 0 {
		return fmt.Errorf("specify --older-than or --keep")
	}

	history, err := openHistory()
	if err != nil {
		return err
	}
	if history.Count() == 0 {
		fmt.Println("No adjustments in history")
		return nil
	}

	if pruneOpts.dryRun {
		toRemove := pruneCandidates(history.All(), olderThan, keep, time.Now())
		if len(toRemove) == 0 {
			fmt.Println("No adjustments to remove")
			return nil
		}

		fmt.Printf("Would remove %d adjustment(s):\n", len(toRemove))
		for i, a := range toRemove {
			if i >= 10 {
				fmt.Printf("  ... and %d more\n", len(toRemove)-10)
				break
			}
			fmt.Printf("  - %s %d -> %d (%s)\n", a.Time().Format(time.DateTime), a.From, a.To, a.ID)
		}
		return nil
	}

	removed, err := history.Prune(olderThan, keep)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	if removed == 0 {
		fmt.Println("No adjustments to remove")
		return nil
	}

	fmt.Printf("Removed %d adjustment(s)\n", removed)
	return nil
}

// pruneCandidates returns the adjustments Prune would remove, newest first.
// adjustments must be sorted newest first.
func pruneCandidates(adjustments []model.Adjustment, olderThan time.Duration, keep int, now time.Time) []model.Adjustment {
	var toRemove []model.Adjustment
	cutoff := now.Add(-olderThan)

	for i, a := range adjustments {
		tooOld := olderThan > 0 && a.Time().Before(cutoff)
		beyondKeep := keep > 0 && i >= keep
		if tooOld || beyondKeep {
			toRemove = append(toRemove, a)
		}
	}
	return toRemove
}
