package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/autovol/internal/control"
	"github.com/jmylchreest/autovol/internal/model"
)

// blockSource serves fixed blocks, then io.EOF.
type blockSource struct {
	blocks  [][]int16
	errAt   int // 1-based read that fails, 0 = never
	reads   int
	opened  bool
	closed  bool
	openErr error
}

func (s *blockSource) Open() error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *blockSource) ReadBlock() ([]int16, error) {
	s.reads++
	if s.reads == s.errAt {
		return nil, errors.New("device hiccup")
	}
	if len(s.blocks) == 0 {
		return nil, io.EOF
	}
	b := s.blocks[0]
	s.blocks = s.blocks[1:]
	return b, nil
}

func (s *blockSource) Close() error {
	s.closed = true
	return nil
}

// constantBlock returns n samples of mean absolute value v.
func constantBlock(v int16, n int) []int16 {
	block := make([]int16, n)
	for i := range block {
		if i%2 == 0 {
			block[i] = v
		} else {
			block[i] = -v
		}
	}
	return block
}

func testSimConfig() simConfig {
	p := control.DefaultParams()
	p.TickInterval = time.Second
	return simConfig{
		Params:     p, // 5..15 over 50..70 dB
		SampleRate: 100,
		Steps:      15,
		Start:      10,
		Window:     4,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunSimulation_StepsTowardTarget(t *testing.T) {
	// A mean of 1000 scores 60 dB, which maps to 10; 10000 scores 80 dB and maps to 15
	src := &blockSource{blocks: [][]int16{
		constantBlock(10000, 50),
		constantBlock(10000, 50),
		constantBlock(10000, 50),
		constantBlock(1000, 50),
	}}

	result, err := runSimulation(src, testSimConfig(), discardLogger())
	require.NoError(t, err)

	require.Len(t, result.Ticks, 4)
	assert.Equal(t, []int{11, 12, 13, 12}, []int{
		result.Ticks[0].Volume, result.Ticks[1].Volume, result.Ticks[2].Volume, result.Ticks[3].Volume,
	})
	assert.Equal(t, 15, result.Ticks[0].Target)
	assert.Equal(t, 10, result.Ticks[3].Target)
	assert.InDelta(t, 1.5, result.Ticks[3].Offset, 1e-9)

	s := result.Summary
	assert.Equal(t, 4, s.Ticks)
	assert.Equal(t, 4, s.Adjustments)
	assert.Equal(t, 10, s.StartVolume)
	assert.Equal(t, 12, s.EndVolume)
	assert.Equal(t, 10, s.MinVolume)
	assert.Equal(t, 13, s.MaxVolume)
	assert.InDelta(t, 2.0, s.Duration, 1e-9)
	assert.InDelta(t, 80.0, s.PeakScore, 0.01)

	assert.True(t, src.opened)
	assert.True(t, src.closed)
}

func TestRunSimulation_EmptyInput(t *testing.T) {
	result, err := runSimulation(&blockSource{}, testSimConfig(), discardLogger())
	require.NoError(t, err)

	assert.Empty(t, result.Ticks)
	assert.Equal(t, 10, result.Summary.EndVolume)
}

func TestRunSimulation_MaxTicks(t *testing.T) {
	src := &blockSource{blocks: [][]int16{
		constantBlock(1000, 10), constantBlock(1000, 10), constantBlock(1000, 10),
	}}
	cfg := testSimConfig()
	cfg.MaxTicks = 2

	result, err := runSimulation(src, cfg, discardLogger())
	require.NoError(t, err)
	assert.Len(t, result.Ticks, 2)
}

func TestRunSimulation_ReadErrorEndsInput(t *testing.T) {
	src := &blockSource{
		blocks: [][]int16{constantBlock(10000, 10), constantBlock(10000, 10)},
		errAt:  2,
	}

	result, err := runSimulation(src, testSimConfig(), discardLogger())
	require.NoError(t, err)

	require.Len(t, result.Ticks, 2)
	assert.Equal(t, "device hiccup", result.Ticks[1].ReadError)
	// A failed read scores as silence
	assert.Equal(t, 5, result.Ticks[1].Target)
	assert.Equal(t, 10, result.Ticks[1].Volume)
}

func TestRunSimulation_InvalidConfig(t *testing.T) {
	cfg := testSimConfig()
	cfg.Start = 20
	_, err := runSimulation(&blockSource{}, cfg, discardLogger())
	assert.Error(t, err)

	cfg = testSimConfig()
	cfg.Params.MinVolume = 20
	_, err = runSimulation(&blockSource{}, cfg, discardLogger())
	assert.ErrorIs(t, err, control.ErrInvalidConfiguration)

	_, err = runSimulation(&blockSource{openErr: errors.New("no such file")}, testSimConfig(), discardLogger())
	assert.ErrorIs(t, err, control.ErrSourceUnavailable)
}

func TestWriteSimulationText(t *testing.T) {
	src := &blockSource{blocks: [][]int16{constantBlock(10000, 100)}}
	result, err := runSimulation(src, testSimConfig(), discardLogger())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSimulationText(&buf, result, false))
	assert.Contains(t, buf.String(), "TICK")
	assert.Contains(t, buf.String(), "1 ticks over 1.0s, 1 adjustments, volume 10 -> 11")

	buf.Reset()
	require.NoError(t, writeSimulationText(&buf, result, true))
	assert.NotContains(t, buf.String(), "TICK")
}

func testHistory(now time.Time) []model.Adjustment {
	var history []model.Adjustment
	for i, age := range []time.Duration{30 * time.Minute, time.Hour, 2 * time.Hour, 3 * time.Hour} {
		history = append(history, model.Adjustment{
			ID:        fmt.Sprintf("adj-%d", i),
			RunID:     "run",
			Timestamp: now.Add(-age).UnixMilli(),
			From:      5,
			To:        6,
		})
	}
	return history
}

func TestPruneCandidates(t *testing.T) {
	now := time.Unix(100000, 0)
	history := testHistory(now)

	assert.Len(t, pruneCandidates(history, 0, 2, now), 2)
	assert.Len(t, pruneCandidates(history, 90*time.Minute, 0, now), 2)
	assert.Len(t, pruneCandidates(history, 150*time.Minute, 1, now), 3)
	assert.Empty(t, pruneCandidates(history, 0, 10, now))
}

func TestFirstPositive(t *testing.T) {
	assert.Equal(t, 3, firstPositive(0, -1, 3, 4))
	assert.Equal(t, 0, firstPositive(0, 0))
}
