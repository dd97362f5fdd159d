package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_RehydratesOnAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	readerP, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	reader := NewHistory(readerP)
	defer reader.Close()

	fw, err := NewFileWatcher(reader, path, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	writerP, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer writerP.Close()
	require.NoError(t, writerP.Append(testAdjustment("from-daemon")))

	assert.Eventually(t, func() bool {
		return reader.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcher_StopIdempotent(t *testing.T) {
	fw, err := NewFileWatcher(NewHistory(nil), filepath.Join(t.TempDir(), "h.jsonl"), nil)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	require.NoError(t, fw.Start())

	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}
