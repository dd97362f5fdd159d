package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/autovol/internal/model"
)

func TestLookupByID(t *testing.T) {
	as := []model.Adjustment{
		{ID: "01HQGXK5P0AAAA"},
		{ID: "01HQGXK5P0AAAB"},
		{ID: "01HQGZZZZZZZZZ"},
	}

	got := LookupByID(as, "01HQGXK5P0AAAB")
	require.NotNil(t, got)
	assert.Equal(t, "01HQGXK5P0AAAB", got.ID)

	got = LookupByID(as, "01hqgz")
	require.NotNil(t, got, "prefix lookup is case-insensitive")
	assert.Equal(t, "01HQGZZZZZZZZZ", got.ID)

	assert.Nil(t, LookupByID(as, "01HQGXK5P0"), "ambiguous prefix")
	assert.Nil(t, LookupByID(as, "02"))
	assert.Nil(t, LookupByID(as, ""))
}

func TestSummarize(t *testing.T) {
	s := Summarize(testAdjustments())

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 2, s.Up)
	assert.Equal(t, 2, s.Down)
	assert.InDelta(t, 49.5, s.MeanScore, 1e-9)
	assert.Equal(t, 5, s.MinVolume)
	assert.Equal(t, 11, s.MaxVolume)
	assert.Equal(t, 2, s.Runs)
	assert.True(t, s.First.Equal(refTime.Add(-3*24*time.Hour)))
	assert.True(t, s.Last.Equal(refTime.Add(-10*time.Second)))
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}
