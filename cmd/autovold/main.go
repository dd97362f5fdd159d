// Package main is the entry point for the autovold daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/autovol/internal/config"
	"github.com/jmylchreest/autovol/internal/daemon"
	"github.com/jmylchreest/autovol/internal/dbus"
	"github.com/jmylchreest/autovol/internal/observe"
	"github.com/jmylchreest/autovol/internal/store"
)

const appName = "autovold"

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/autovol/autovold.toml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(appName, "version", version)
		os.Exit(0)
	}

	// Set up structured logging; the level follows the config unless -debug
	var level slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: &level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadDaemonConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	applyLogLevel(&level, cfg, *debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := &autovold{
		logger:     logger,
		level:      &level,
		debug:      *debug,
		configPath: *configPath,
	}
	if err := d.run(ctx, cfg); err != nil {
		logger.Error("autovold exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("autovold stopped")
}

func applyLogLevel(level *slog.LevelVar, cfg *config.DaemonConfig, debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
		return
	}
	l, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		l = slog.LevelInfo
	}
	level.Set(l)
}

type autovold struct {
	logger     *slog.Logger
	level      *slog.LevelVar
	debug      bool
	configPath string
}

func (d *autovold) run(ctx context.Context, cfg *config.DaemonConfig) error {
	logger := d.logger
	logger.Info("starting autovold", "version", version)

	svc, err := daemon.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("error stopping control loop", "error", err)
		}
	}()

	// Adjustment history
	if cfg.History.Enabled {
		history, err := openHistory(logger)
		if err != nil {
			logger.Warn("adjustment history disabled", "error", err)
		} else {
			defer func() { _ = history.Close() }()
			svc.SetHistory(history)
		}
	}

	// Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    appName,
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()

		svc.SetMetrics(observe.DefaultMetrics())
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           observe.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	// Desktop notifications about daemon events
	notifier := daemon.NewInternalNotifier(logger)
	notifier.SetEnabled(cfg.Notify.Enabled)
	if desktop, err := dbus.NewDesktopNotifier(appName); err != nil {
		logger.Debug("desktop notifications unavailable", "error", err)
	} else {
		notifier.SetNotifyFunc(func(summary, body string, level daemon.NotificationLevel) error {
			_, err := desktop.Send(dbus.Notification{
				Summary: summary,
				Body:    body,
				Icon:    level.Icon(),
				Urgency: level.Urgency(),
			})
			return err
		})
	}

	// D-Bus control interface
	server := dbus.NewControlServer(svc, logger)
	if err := server.Start(); err != nil {
		logger.Warn("D-Bus control interface unavailable", "error", err)
		svc.SetNotifier(&announcer{desktop: notifier})
	} else {
		defer func() { _ = server.Stop() }()
		svc.SetNotifier(&announcer{server: server, desktop: notifier})
	}

	// Pause changes made by the CLI
	statePath, err := store.StateFilePath()
	if err != nil {
		logger.Warn("failed to get state file path", "error", err)
	} else {
		stateWatcher := daemon.NewStateWatcher(statePath, logger)
		stateWatcher.SetChangeCallback(func(state *store.SharedState) {
			if state.Paused == svc.Paused() {
				return
			}
			if err := svc.SetPaused(state.Paused, daemon.SourceStateFile); err != nil {
				logger.Warn("failed to apply pause state", "paused", state.Paused, "error", err)
				notifier.NotifyStartFailed(err)
			}
		})
		if err := stateWatcher.Start(ctx); err != nil {
			logger.Warn("failed to start state watcher", "error", err)
		}
		defer stateWatcher.Stop()
	}

	// Config hot-reload
	configWatcher, err := daemon.NewConfigWatcher(d.configPath, logger)
	if err != nil {
		logger.Warn("failed to create config watcher", "error", err)
	} else {
		configWatcher.SetReloadCallback(func(newConfig *config.DaemonConfig) {
			old := svc.Config()
			if newConfig.Metrics != old.Metrics || newConfig.History.Enabled != old.History.Enabled {
				logger.Warn("metrics and history changes take effect after a restart")
			}
			applyLogLevel(d.level, newConfig, d.debug)
			notifier.SetEnabled(newConfig.Notify.Enabled)

			if err := svc.Reload(newConfig); err != nil {
				logger.Warn("failed to apply reloaded config", "error", err)
				notifier.NotifyStartFailed(err)
				return
			}
			notifier.NotifyConfigReloaded()
		})
		configWatcher.SetErrorCallback(notifier.NotifyConfigError)
		if err := configWatcher.Start(ctx, cfg); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		}
		defer configWatcher.Stop()
	}

	// A missing player or microphone is not fatal; Supervise keeps retrying
	if err := svc.Start(); err != nil {
		notifier.NotifyStartFailed(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Supervise(gctx, daemon.DefaultRetryInterval)
	})
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("serving metrics", "listen", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info("autovold ready",
		"dbus_interface", dbus.ControlInterface,
		"source", cfg.Source.Backend,
		"sink", cfg.Sink.Backend,
		"paused", svc.Paused())

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

func openHistory(logger *slog.Logger) (*store.History, error) {
	historyPath, err := store.HistoryPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get history path: %w", err)
	}

	history, err := store.OpenHistory(historyPath, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("adjustment history initialized", "path", historyPath, "count", history.Count())
	return history, nil
}

// announcer forwards daemon changes to the D-Bus control interface and the
// desktop notifier.
type announcer struct {
	server  *dbus.ControlServer
	desktop *daemon.InternalNotifier
}

func (a *announcer) EmitPausedChanged(paused bool) error {
	a.desktop.NotifyPausedChanged(paused, "")
	if a.server == nil {
		return nil
	}
	return a.server.EmitPausedChanged(paused)
}

func (a *announcer) EmitVolumeChanged(volume, target int) error {
	if a.server == nil {
		return nil
	}
	return a.server.EmitVolumeChanged(volume, target)
}
