package control

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T, source *fakeSource, sink *fakeSink, opts ...Option) (*Loop, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	loop, err := New(testParams(), source, sink, sched, opts...)
	require.NoError(t, err)
	return loop, sched
}

func TestNew_RejectsInvalidParams(t *testing.T) {
	p := testParams()
	p.LowThreshold = 60
	p.HighThreshold = 60

	loop, err := New(p, &fakeSource{}, &fakeSink{}, &manualScheduler{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Nil(t, loop)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(testParams(), nil, &fakeSink{}, &manualScheduler{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New(testParams(), &fakeSource{}, nil, &manualScheduler{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New(testParams(), &fakeSource{}, &fakeSink{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestLoop_EndToEndStepsTowardTarget(t *testing.T) {
	// Mean amplitude 1000 scores exactly 60 dB, which maps to 10
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	assert.True(t, loop.State().Running)

	first, ok := sched.peek()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), first.delay, "first tick runs immediately")

	for range 3 {
		require.True(t, sched.runNext())
	}

	assert.Equal(t, []int{14, 13, 12}, sink.writes())
	assert.Equal(t, 12, loop.State().CurrentVolume)

	next, ok := sched.peek()
	require.True(t, ok)
	assert.Equal(t, testParams().TickInterval, next.delay, "later ticks wait the interval")
	assert.Equal(t, 1, sched.pendingCount())
}

func TestLoop_ConvergesAndStopsWriting(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 7, max: 15}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	for range 6 {
		require.True(t, sched.runNext())
	}

	// 7 -> 10 takes three ticks, then the volume holds without redundant writes
	assert.Equal(t, []int{8, 9, 10}, sink.writes())
}

func TestLoop_ReReadsExternalVolumeChanges(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 12, max: 15}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	require.True(t, sched.runNext())
	assert.Equal(t, []int{11}, sink.writes())

	sink.setExternally(3)
	require.True(t, sched.runNext())
	assert.Equal(t, []int{11, 4}, sink.writes())
}

func TestLoop_TargetClampedToSystemMax(t *testing.T) {
	// Loud noise wants 15 but the device tops out at 8
	source := &fakeSource{block: blockWithMean(10000)}
	sink := &fakeSink{current: 8, max: 8}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	require.True(t, sched.runNext())
	assert.Empty(t, sink.writes())
}

func TestLoop_StartFailsWhenSourceUnavailable(t *testing.T) {
	source := &fakeSource{openErr: errBoom}
	sink := &fakeSink{current: 10, max: 15}
	loop, sched := newTestLoop(t, source, sink)

	err := loop.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, errBoom)

	assert.False(t, loop.State().Running)
	assert.Equal(t, 0, sched.scheduled)
	assert.Empty(t, sink.writes())

	// A later Start may succeed once the source is available
	source.mu.Lock()
	source.openErr = nil
	source.mu.Unlock()
	require.NoError(t, loop.Start())
	assert.True(t, loop.State().Running)
}

func TestLoop_StartFailsWhenSinkUnavailable(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{maxErr: errBoom}
	loop, sched := newTestLoop(t, source, sink)

	err := loop.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSinkUnavailable)
	assert.False(t, loop.State().Running)
	assert.Equal(t, 0, sched.scheduled)

	opens, closes, _ := source.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes, "source released after sink failure")
}

func TestLoop_StartTwiceIsNoop(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{max: 15}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	require.NoError(t, loop.Start())

	opens, _, _ := source.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, sched.scheduled)
}

func TestLoop_StopTwiceReleasesSourceOnce(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	require.True(t, sched.runNext())

	require.NoError(t, loop.Stop())
	require.NoError(t, loop.Stop())

	_, closes, _ := source.counts()
	assert.Equal(t, 1, closes)
	assert.False(t, loop.State().Running)
	assert.Equal(t, 0, sched.pendingCount())
}

func TestLoop_StopOnStoppedLoopIsNoop(t *testing.T) {
	source := &fakeSource{}
	loop, sched := newTestLoop(t, source, &fakeSink{max: 15})

	require.NoError(t, loop.Stop())
	_, closes, _ := source.counts()
	assert.Equal(t, 0, closes)
	assert.Equal(t, 0, sched.cancels)
}

func TestLoop_StaleTickAfterStopDoesNothing(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	stale, ok := sched.peek()
	require.True(t, ok)

	require.NoError(t, loop.Stop())

	// Simulate a scheduler that already dequeued the callback
	stale.fn()
	assert.Empty(t, sink.writes())
	_, _, reads := source.counts()
	assert.Equal(t, 0, reads)
	assert.Equal(t, 0, sched.pendingCount())
}

func TestLoop_StaleTickAfterRestartDoesNothing(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	stale, _ := sched.peek()
	require.NoError(t, loop.Stop())
	require.NoError(t, loop.Start())

	// Only the new run's tick may execute
	stale.fn()
	assert.Empty(t, sink.writes())

	require.True(t, sched.runNext())
	assert.Equal(t, []int{14}, sink.writes())
}

func TestLoop_ReadErrorTreatedAsSilence(t *testing.T) {
	source := &fakeSource{readErr: errBoom}
	sink := &fakeSink{current: 10, max: 15}

	var results []TickResult
	loop, sched := newTestLoop(t, source, sink, WithObserver(ObserverFunc(func(r TickResult) {
		results = append(results, r)
	})))

	require.NoError(t, loop.Start())
	require.True(t, sched.runNext())

	// Silence maps to the minimum volume
	assert.Equal(t, []int{9}, sink.writes())
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
	assert.ErrorIs(t, results[0].ReadErr, errBoom)
	assert.Equal(t, 1, sched.pendingCount(), "loop keeps scheduling")
}

func TestLoop_EmptyBlockTreatedAsSilence(t *testing.T) {
	source := &fakeSource{block: []int16{}}
	sink := &fakeSink{current: 10, max: 15}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	require.True(t, sched.runNext())
	assert.Equal(t, []int{9}, sink.writes())
}

func TestLoop_SourcePanicRecovered(t *testing.T) {
	source := &fakeSource{panicMsg: "driver exploded"}
	sink := &fakeSink{current: 10, max: 15}

	var results []TickResult
	loop, sched := newTestLoop(t, source, sink, WithObserver(ObserverFunc(func(r TickResult) {
		results = append(results, r)
	})))

	require.NoError(t, loop.Start())
	require.NotPanics(t, func() { sched.runNext() })

	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
	assert.Error(t, results[0].ReadErr)
	assert.Equal(t, []int{9}, sink.writes())
	assert.Equal(t, 1, sched.pendingCount())
}

func TestLoop_ObserverPanicDoesNotStopLoop(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15}
	loop, sched := newTestLoop(t, source, sink, WithObserver(ObserverFunc(func(TickResult) {
		panic("observer bug")
	})))

	require.NoError(t, loop.Start())
	require.NotPanics(t, func() { sched.runNext() })
	assert.Equal(t, 1, sched.pendingCount())
}

func TestLoop_SinkReadErrorSkipsActuation(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15, currentErr: errBoom}
	loop, sched := newTestLoop(t, source, sink)

	require.NoError(t, loop.Start())
	require.True(t, sched.runNext())
	assert.Empty(t, sink.writes())
	assert.Equal(t, 1, sched.pendingCount())
}

func TestLoop_SinkWriteErrorReported(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15, setErr: errBoom}

	var results []TickResult
	loop, sched := newTestLoop(t, source, sink, WithObserver(ObserverFunc(func(r TickResult) {
		results = append(results, r)
	})))

	require.NoError(t, loop.Start())
	require.True(t, sched.runNext())

	require.Len(t, results, 1)
	assert.False(t, results[0].Applied)
	assert.Equal(t, 15, results[0].Level)
	assert.Equal(t, 10, results[0].Target)
	assert.ErrorIs(t, results[0].SinkErr, errBoom)
}

func TestLoop_ObserverSeesTickResults(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15}
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var results []TickResult
	loop, sched := newTestLoop(t, source, sink,
		WithClock(func() time.Time { return stamp }),
		WithObserver(ObserverFunc(func(r TickResult) {
			results = append(results, r)
		})))

	require.NoError(t, loop.Start())
	require.True(t, sched.runNext())

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, stamp, r.At)
	assert.InDelta(t, 60.0, r.Score, 1e-9)
	assert.Equal(t, 4, r.Samples)
	assert.Equal(t, 15, r.Current)
	assert.Equal(t, 10, r.Target)
	assert.Equal(t, 14, r.Level)
	assert.True(t, r.Applied)
	assert.NoError(t, r.ReadErr)
}

func TestLoop_WithTimerScheduler(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15}
	sched := NewTimerScheduler()
	defer sched.Close()

	p := testParams()
	p.TickInterval = time.Millisecond
	loop, err := New(p, source, sink, sched)
	require.NoError(t, err)

	require.NoError(t, loop.Start())
	require.Eventually(t, func() bool {
		return loop.State().CurrentVolume == 10
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, loop.Stop())
	_, _, readsAtStop := source.counts()

	// No tick may run once Stop has returned
	time.Sleep(20 * time.Millisecond)
	_, closes, reads := source.counts()
	assert.Equal(t, readsAtStop, reads)
	assert.Equal(t, 1, closes)
	assert.Equal(t, []int{14, 13, 12, 11, 10}, sink.writes())
}

func TestLoop_StopFromAnotherGoroutine(t *testing.T) {
	source := &fakeSource{block: blockWithMean(1000)}
	sink := &fakeSink{current: 15, max: 15}
	sched := NewTimerScheduler()
	defer sched.Close()

	p := testParams()
	p.TickInterval = time.Millisecond
	loop, err := New(p, source, sink, sched)
	require.NoError(t, err)
	require.NoError(t, loop.Start())

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, loop.Stop())
		}()
	}
	wg.Wait()

	_, closes, _ := source.counts()
	assert.Equal(t, 1, closes)
	assert.False(t, loop.State().Running)
}
