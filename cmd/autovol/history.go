package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/autovol/internal/adapter/output"
	"github.com/jmylchreest/autovol/internal/core"
	"github.com/jmylchreest/autovol/internal/model"
	"github.com/jmylchreest/autovol/internal/store"
)

var historyOpts struct {
	// Filter options
	since     string
	direction string
	run       string
	minScore  float64
	limit     int

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format   string
	field    string
	template string
	showRun  bool
	stats    bool
	follow   bool
}

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show volume adjustments made by the daemon",
	Long: `Show the volume adjustments autovold has made, newest first.

With an ID argument (or a unique prefix of one), outputs that adjustment.

Examples:
  # Adjustments in the last hour
  autovol history --since 1h

  # Only the times the volume went up, as JSON
  autovol history --direction up --format json

  # Statistics for the last week
  autovol history --since 7d --stats

  # Loudness score of one adjustment
  autovol history 01J9Z3 --field score

  # Print adjustments as the daemon makes them
  autovol history --follow`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	// Filter flags
	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Show adjustments from the last duration (e.g., 1h, 7d, 1w, 0 for all)")
	historyCmd.Flags().StringVar(&historyOpts.direction, "direction", "",
		"Filter by direction (up, down)")
	historyCmd.Flags().StringVar(&historyOpts.run, "run", "",
		"Filter by daemon run ID")
	historyCmd.Flags().Float64Var(&historyOpts.minScore, "min-score", 0,
		"Only adjustments triggered at or above this loudness score")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", -1,
		"Maximum number of adjustments to show (0=unlimited)")

	// Sort flags
	historyCmd.Flags().StringVar(&historyOpts.sortBy, "sort", "timestamp",
		"Sort by field (timestamp, score, volume)")
	historyCmd.Flags().StringVar(&historyOpts.sortOrder, "order", "desc",
		"Sort order (asc, desc)")

	// Output flags
	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "line",
		"Output format (line, plain, json, yaml, ids)")
	historyCmd.Flags().StringVar(&historyOpts.field, "field", "",
		"Output a single field of the adjustment (id, run, time, score, from, to, target, direction, player)")
	historyCmd.Flags().StringVar(&historyOpts.template, "template", "",
		"Custom Go template for line and plain output")
	historyCmd.Flags().BoolVar(&historyOpts.showRun, "show-run", false,
		"Include the daemon run ID in line and plain output")
	historyCmd.Flags().BoolVar(&historyOpts.stats, "stats", false,
		"Show statistics instead of individual adjustments")
	historyCmd.Flags().BoolVarP(&historyOpts.follow, "follow", "F", false,
		"Keep running and print new adjustments as they are recorded")
}

func runHistory(cmd *cobra.Command, args []string) error {
	history, err := openHistory()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		return showAdjustment(history.All(), args[0])
	}

	opts, err := historyFilterOptions()
	if err != nil {
		return err
	}
	sortOpts, err := historySortOptions()
	if err != nil {
		return err
	}

	// All is newest first, so the limit keeps the most recent
	adjustments := core.Filter(history.All(), opts)

	if historyOpts.stats {
		return output.FormatSummary(os.Stdout, output.FormatType(historyOpts.format), core.Summarize(adjustments))
	}

	core.Sort(adjustments, sortOpts)
	formatter := output.NewFormatter(output.FormatType(historyOpts.format), historyFormatterOptions())
	if err := formatter.Format(os.Stdout, adjustments); err != nil {
		return err
	}

	if historyOpts.follow {
		return followHistory(cmd, history, adjustments, formatter)
	}
	return nil
}

// historyFilterOptions builds filter options from flags and config defaults.
func historyFilterOptions() (core.FilterOptions, error) {
	since := historyOpts.since
	if since == "" {
		since = cfg.History.Since
	}
	d, err := core.ParseDuration(since)
	if err != nil {
		return core.FilterOptions{}, fmt.Errorf("invalid --since: %w", err)
	}

	direction, err := core.ParseDirection(historyOpts.direction)
	if err != nil {
		return core.FilterOptions{}, err
	}

	limit := historyOpts.limit
	if limit < 0 {
		limit = cfg.History.Limit
	}

	return core.FilterOptions{
		Since:     d,
		Direction: direction,
		RunID:     historyOpts.run,
		MinScore:  historyOpts.minScore,
		Limit:     limit,
	}, nil
}

func historySortOptions() (core.SortOptions, error) {
	field, err := core.ParseSortField(historyOpts.sortBy)
	if err != nil {
		return core.SortOptions{}, err
	}
	order, err := core.ParseSortOrder(historyOpts.sortOrder)
	if err != nil {
		return core.SortOptions{}, err
	}
	return core.SortOptions{Field: field, Order: order}, nil
}

func historyFormatterOptions() output.FormatterOptions {
	opts := output.DefaultFormatterOptions()
	opts.Template = historyOpts.template
	opts.ShowRun = historyOpts.showRun
	return opts
}

// showAdjustment outputs a single adjustment by ID or ID prefix.
func showAdjustment(adjustments []model.Adjustment, id string) error {
	a := core.LookupByID(adjustments, id)
	if a == nil {
		return fmt.Errorf("no unique adjustment matches %q", id)
	}

	if historyOpts.field != "" {
		fmt.Println(output.FormatField(a, historyOpts.field))
		return nil
	}

	// A single adjustment defaults to JSON
	format := output.FormatType(historyOpts.format)
	if format == output.FormatLine {
		return output.NewJSONFormatter(output.FormatterOptions{}).FormatSingle(os.Stdout, a)
	}
	return output.NewFormatter(format, historyFormatterOptions()).Format(os.Stdout, []model.Adjustment{*a})
}

// followHistory prints adjustments appended to the history file by the
// daemon until interrupted.
func followHistory(cmd *cobra.Command, history *store.History, shown []model.Adjustment, formatter output.Formatter) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seen := make(map[string]bool, history.Count())
	for _, a := range history.All() {
		seen[a.ID] = true
	}
	for _, a := range shown {
		seen[a.ID] = true
	}

	events := history.Subscribe()
	defer history.Unsubscribe(events)

	watcher, err := store.NewFileWatcher(history, historyFilePath(), logger)
	if err != nil {
		return fmt.Errorf("failed to watch history: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch history: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	opts, err := historyFilterOptions()
	if err != nil {
		return err
	}
	// The limit applies to the initial listing only
	opts.Limit = 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Type != store.ChangeTypeAdd {
				continue
			}

			var fresh []model.Adjustment
			for _, a := range core.Filter(history.All(), opts) {
				if !seen[a.ID] {
					seen[a.ID] = true
					fresh = append(fresh, a)
				}
			}
			core.Sort(fresh, core.SortOptions{Field: core.SortByTimestamp, Order: core.SortAsc})
			if err := formatter.Format(os.Stdout, fresh); err != nil {
				return err
			}
		}
	}
}
