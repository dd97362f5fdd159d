package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/autovol/internal/config"
	"github.com/jmylchreest/autovol/internal/store"
)

func TestStateWatcher_ReportsPauseChanges(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path, err := store.StateFilePath()
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []bool
	w := NewStateWatcher(path, nil)
	w.SetPollInterval(5 * time.Millisecond)
	w.SetChangeCallback(func(state *store.SharedState) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, state.Paused)
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	state := store.DefaultSharedState()
	state.SetPaused(true, store.TriggerUser, "pause", "cli")
	require.NoError(t, store.SaveSharedState(state))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1]
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStateWatcher_StopIdempotent(t *testing.T) {
	w := NewStateWatcher(filepath.Join(t.TempDir(), "state.json"), nil)
	w.Stop()

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestConfigWatcher_ReloadsValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autovold.toml")
	require.NoError(t, os.WriteFile(path, []byte("[control]\nmax_volume = 15\n"), 0600))

	reloaded := make(chan *config.DaemonConfig, 4)
	failed := make(chan error, 4)

	w, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	w.SetReloadCallback(func(cfg *config.DaemonConfig) { reloaded <- cfg })
	w.SetErrorCallback(func(err error) { failed <- err })

	initial := config.DefaultDaemonConfig()
	require.NoError(t, w.Start(context.Background(), initial))
	defer w.Stop()
	assert.Same(t, initial, w.GetCurrentConfig())

	require.NoError(t, os.WriteFile(path, []byte("[control]\nmax_volume = 12\n"), 0600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 12, cfg.Control.MaxVolume)
		assert.Same(t, cfg, w.GetCurrentConfig())
	case err := <-failed:
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestConfigWatcher_KeepsConfigOnInvalidChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autovold.toml")

	reloaded := make(chan *config.DaemonConfig, 4)
	failed := make(chan error, 4)

	w, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	w.SetReloadCallback(func(cfg *config.DaemonConfig) { reloaded <- cfg })
	w.SetErrorCallback(func(err error) { failed <- err })

	initial := config.DefaultDaemonConfig()
	require.NoError(t, w.Start(context.Background(), initial))
	defer w.Stop()

	content := "[control]\nlow_threshold = 80.0\nhigh_threshold = 60.0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	select {
	case err := <-failed:
		assert.Contains(t, err.Error(), "invalid configuration")
	case <-reloaded:
		t.Fatal("invalid config must not be applied")
	case <-time.After(3 * time.Second):
		t.Fatal("invalid config was not reported")
	}
	assert.Same(t, initial, w.GetCurrentConfig())
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autovold.toml")

	reloaded := make(chan *config.DaemonConfig, 4)
	w, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	w.SetReloadCallback(func(cfg *config.DaemonConfig) { reloaded <- cfg })
	require.NoError(t, w.Start(context.Background(), config.DefaultDaemonConfig()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("x = 1\n"), 0600))

	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(3 * configDebounce):
	}
}
