package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/autovol/internal/config"
	"github.com/jmylchreest/autovol/internal/dbus"
	"github.com/jmylchreest/autovol/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// dbusTimeout bounds calls to a running daemon.
const dbusTimeout = 2 * time.Second

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose      bool
		historyFile  string
		configPath   string
		daemonConfig string
	}
	logger *slog.Logger

	// historyStore is opened on demand by commands that read the history
	historyStore *store.History
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "autovol",
	Short: "Adaptive volume control for noisy surroundings",
	Long: `autovol controls autovold, a daemon that listens to the microphone and
moves the volume of the active media player one step at a time towards a
level that matches the ambient noise.

Running autovol without a subcommand shows the daemon status.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if historyStore != nil {
			return historyStore.Close()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.historyFile, "history-file", "",
		"Path to history file (default: ~/.local/share/autovol/history.jsonl)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to CLI config file (default: ~/.config/autovol/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.daemonConfig, "daemon-config", "",
		"Path to daemon config file (default: ~/.config/autovol/autovold.toml)")

	rootCmd.Flags().StringVarP(&statusOpts.format, "format", "f", "",
		"Output format: text, json, yaml, waybar")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// openHistory loads the adjustment history written by the daemon.
func openHistory() (*store.History, error) {
	if historyStore != nil {
		return historyStore, nil
	}

	historyPath := globalOpts.historyFile
	if historyPath == "" {
		if err := config.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		historyPath = config.HistoryPath()
	}

	persistence, err := store.NewJSONLPersistence(historyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize persistence: %w", err)
	}

	historyStore = store.NewHistory(persistence)
	if err := historyStore.Hydrate(); err != nil {
		logger.Warn("failed to hydrate history from disk", "error", err)
	}
	return historyStore, nil
}

// historyFilePath returns the history file in use.
func historyFilePath() string {
	if globalOpts.historyFile != "" {
		return globalOpts.historyFile
	}
	return config.HistoryPath()
}

// daemonClient connects to a running daemon, or returns nil if none is
// reachable on the session bus.
func daemonClient() *dbus.Client {
	client, err := dbus.NewClient()
	if err != nil {
		logger.Debug("daemon not reachable on D-Bus", "error", err)
		return nil
	}
	return client
}

// daemonContext returns a context bounded by dbusTimeout.
func daemonContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, dbusTimeout)
}
