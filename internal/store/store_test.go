package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/autovol/internal/core"
	"github.com/jmylchreest/autovol/internal/model"
)

func TestNewHistory(t *testing.T) {
	h := NewHistory(nil)
	assert.NotNil(t, h)
	assert.Equal(t, 0, h.Count())
	assert.Nil(t, h.Latest())
}

func TestHistory_Add(t *testing.T) {
	h := NewHistory(nil)
	defer h.Close()

	a := testAdjustment("test1")
	err := h.Add(a)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Count())

	// Add duplicate - should be skipped
	err = h.Add(a)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Count())

	a2 := testAdjustment("test2")
	err = h.Add(a2)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Count())
}

func TestHistory_AddRejectsInvalid(t *testing.T) {
	h := NewHistory(nil)
	defer h.Close()

	a := testAdjustment("bad")
	a.To = a.From

	err := h.Add(a)
	assert.ErrorIs(t, err, model.ErrNoChange)
	assert.Equal(t, 0, h.Count())
}

func TestHistory_All(t *testing.T) {
	h := NewHistory(nil)
	defer h.Close()

	now := time.Now()
	h.Add(testAdjustmentWithTime("old", now.Add(-time.Hour)))
	h.Add(testAdjustmentWithTime("new", now))
	h.Add(testAdjustmentWithTime("mid", now.Add(-time.Minute)))

	all := h.All()
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "mid", all[1].ID)
	assert.Equal(t, "old", all[2].ID)

	latest := h.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, "new", latest.ID)
}

func TestHistory_List(t *testing.T) {
	h := NewHistory(nil)
	defer h.Close()

	now := time.Now()
	h.Add(testAdjustmentWithTime("a", now.Add(-48*time.Hour)))
	h.Add(testAdjustmentWithTime("b", now.Add(-2*time.Hour)))
	h.Add(testAdjustmentWithTime("c", now.Add(-time.Minute)))
	h.Add(testAdjustmentWithTime("d", now))

	got := h.List(core.FilterOptions{Since: 24 * time.Hour})
	assert.Len(t, got, 3)

	got = h.List(core.FilterOptions{Since: 24 * time.Hour, Limit: 2})
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestHistory_PruneOlderThan(t *testing.T) {
	h := NewHistory(nil)
	defer h.Close()

	now := time.Now()
	h.Add(testAdjustmentWithTime("ancient", now.Add(-10*24*time.Hour)))
	h.Add(testAdjustmentWithTime("old", now.Add(-8*24*time.Hour)))
	h.Add(testAdjustmentWithTime("recent", now.Add(-time.Hour)))

	removed, err := h.PruneAt(7*24*time.Hour, 0, now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, "recent", h.Latest().ID)
}

func TestHistory_PruneKeep(t *testing.T) {
	h := NewHistory(nil)
	defer h.Close()

	now := time.Now()
	for i := range 5 {
		h.Add(testAdjustmentWithTime(string(rune('a'+i)), now.Add(time.Duration(i)*time.Second)))
	}

	removed, err := h.PruneAt(0, 2, now)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	all := h.All()
	require.Len(t, all, 2)
	assert.Equal(t, "e", all[0].ID)
	assert.Equal(t, "d", all[1].ID)

	// Nothing more to prune
	removed, err = h.PruneAt(0, 2, now)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestHistory_PruneRewritesPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)

	h := NewHistory(p)
	now := time.Now()
	h.Add(testAdjustmentWithTime("old", now.Add(-2*time.Hour)))
	h.Add(testAdjustmentWithTime("new", now))

	removed, err := h.PruneAt(time.Hour, 0, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	require.NoError(t, h.Close())

	p2, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer p2.Close()

	loaded, err := p2.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "new", loaded[0].ID)
}

func TestHistory_Subscribe(t *testing.T) {
	h := NewHistory(nil)
	defer h.Close()

	ch := h.Subscribe()

	h.Add(testAdjustment("sub1"))

	select {
	case event := <-ch:
		assert.Equal(t, ChangeTypeAdd, event.Type)
		assert.Equal(t, 1, event.Count)
		assert.Equal(t, "run-test", event.Source)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected change event")
	}
}

func TestHistory_Unsubscribe(t *testing.T) {
	h := NewHistory(nil)
	defer h.Close()

	ch := h.Subscribe()
	h.Unsubscribe(ch)

	// Channel should be closed
	_, ok := <-ch
	assert.False(t, ok)
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory(nil)
	defer h.Close()

	h.Add(testAdjustment("clear1"))
	h.Add(testAdjustment("clear2"))
	assert.Equal(t, 2, h.Count())

	err := h.Clear()
	require.NoError(t, err)
	assert.Equal(t, 0, h.Count())
}

func TestHistory_Close(t *testing.T) {
	h := NewHistory(nil)

	err := h.Close()
	require.NoError(t, err)

	// Operations after close should fail
	err = h.Add(testAdjustment("after-close"))
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = h.Prune(time.Hour, 0)
	assert.ErrorIs(t, err, ErrStoreClosed)

	// Double close is a no-op
	assert.NoError(t, h.Close())
}

func TestHistory_HydrateSkipsKnown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)

	h := NewHistory(p)
	defer h.Close()

	require.NoError(t, h.Add(testAdjustment("h1")))
	require.NoError(t, h.Hydrate())
	require.NoError(t, h.Hydrate())
	assert.Equal(t, 1, h.Count())
}

func testAdjustment(id string) model.Adjustment {
	return testAdjustmentWithTime(id, time.Now())
}

func testAdjustmentWithTime(id string, at time.Time) model.Adjustment {
	return model.Adjustment{
		ID:        id,
		RunID:     "run-test",
		Timestamp: at.UnixMilli(),
		Score:     55,
		From:      7,
		To:        8,
		Target:    10,
	}
}
