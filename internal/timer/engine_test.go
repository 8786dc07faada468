package timer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, time.December, 24, 19, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *quartz.Mock) {
	t.Helper()
	mClock := quartz.NewMock(t)
	mClock.Set(epoch).MustWait(context.Background())
	e := New(mClock, zerolog.Nop())
	t.Cleanup(e.Close)
	return e, mClock
}

func advanceSeconds(t *testing.T, mClock *quartz.Mock, n int) {
	t.Helper()
	ctx := context.Background()
	for range n {
		mClock.Advance(time.Second).MustWait(ctx)
	}
}

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) listen(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func TestStartCountsDownToExpiry(t *testing.T) {
	t.Parallel()

	for _, total := range []int{1, 2, 5, 30} {
		e, mClock := newTestEngine(t)
		require.NoError(t, e.Start(total, 2))

		s := e.Snapshot()
		assert.Equal(t, Running, s.Status())
		assert.Equal(t, total, s.TimeRemaining)
		assert.Equal(t, total, s.TotalTime)
		require.NotNil(t, s.StartTime)
		assert.True(t, s.StartTime.Equal(epoch))

		for n := 1; n < total; n++ {
			advanceSeconds(t, mClock, 1)
			assert.Equal(t, total-n, e.Snapshot().TimeRemaining)
			assert.True(t, e.Snapshot().IsRunning)
		}

		advanceSeconds(t, mClock, 1)
		s = e.Snapshot()
		assert.False(t, s.IsRunning)
		assert.Equal(t, 0, s.TimeRemaining)
		assert.Equal(t, Expired, s.Status())
		assert.False(t, e.Ticking(), "tick must stop itself on expiry")

		rev := e.Revision()
		advanceSeconds(t, mClock, 3)
		assert.Equal(t, rev, e.Revision(), "no tick may fire after expiry")
	}
}

func TestStartZeroExpiresImmediately(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	rec := &recorder{}
	e.Subscribe(rec.listen)

	require.NoError(t, e.Start(0, 1))
	s := e.Snapshot()
	assert.Equal(t, Expired, s.Status())
	assert.False(t, e.Ticking())

	changes := rec.all()
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Expired)
}

func TestStartRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	require.ErrorIs(t, e.Start(-1, 1), ErrNegativeDuration)
	require.ErrorIs(t, e.Start(10, 0), ErrInvalidRound)
	require.ErrorIs(t, e.Start(10, 4), ErrInvalidRound)
	assert.Equal(t, Idle, e.Snapshot().Status())
}

func TestStartResetsWarnings(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	require.NoError(t, e.Start(1800, 2))
	e.MarkWarningShown(HalfTime)
	e.MarkWarningShown(OneMinute)
	require.NoError(t, e.Start(1800, 3))
	assert.Equal(t, Warnings{}, e.Snapshot().WarningsShown)
	assert.Equal(t, 3, e.Snapshot().Round)
}

func TestRestartDoesNotDoubleTick(t *testing.T) {
	t.Parallel()
	e, mClock := newTestEngine(t)

	require.NoError(t, e.Start(100, 2))
	advanceSeconds(t, mClock, 3)
	require.Equal(t, 97, e.Snapshot().TimeRemaining)

	require.NoError(t, e.Start(50, 2))
	advanceSeconds(t, mClock, 1)
	assert.Equal(t, 49, e.Snapshot().TimeRemaining)
	advanceSeconds(t, mClock, 1)
	assert.Equal(t, 48, e.Snapshot().TimeRemaining)
}

func TestPauseResumePreservesRemaining(t *testing.T) {
	t.Parallel()
	e, mClock := newTestEngine(t)

	require.NoError(t, e.Start(120, 2))
	advanceSeconds(t, mClock, 10)
	require.Equal(t, 110, e.Snapshot().TimeRemaining)

	require.True(t, e.Pause())
	s := e.Snapshot()
	assert.Equal(t, Paused, s.Status())
	require.NotNil(t, s.PauseTime)
	assert.True(t, s.PauseTime.Equal(epoch.Add(10*time.Second)))

	advanceSeconds(t, mClock, 37)
	assert.Equal(t, 110, e.Snapshot().TimeRemaining, "paused timer must not count down")

	require.True(t, e.Resume())
	s = e.Snapshot()
	assert.Equal(t, Running, s.Status())
	assert.Nil(t, s.PauseTime)
	require.NotNil(t, s.StartTime)
	assert.Equal(t, 10*time.Second, mClock.Now().Sub(*s.StartTime), "start is rebased by the paused gap")

	advanceSeconds(t, mClock, 1)
	assert.Equal(t, 109, e.Snapshot().TimeRemaining)
}

func TestPauseAndResumeAreGuarded(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	assert.False(t, e.Pause(), "idle timer cannot pause")
	assert.False(t, e.Resume(), "idle timer cannot resume")

	require.NoError(t, e.Start(60, 2))
	assert.False(t, e.Resume(), "running timer cannot resume")
	assert.True(t, e.Pause())

	rev := e.Revision()
	assert.False(t, e.Pause(), "second pause is a no-op")
	assert.Equal(t, rev, e.Revision())
}

func TestRestoreRunningChargesElapsedTime(t *testing.T) {
	t.Parallel()
	e, mClock := newTestEngine(t)

	start := epoch.Add(-125000 * time.Millisecond)
	e.RestoreFromPersisted(State{
		IsRunning:     true,
		TimeRemaining: 170,
		Round:         2,
		StartTime:     &start,
		TotalTime:     180,
	})

	s := e.Snapshot()
	assert.Equal(t, 55, s.TimeRemaining)
	assert.Equal(t, Running, s.Status())
	require.NotNil(t, s.StartTime)
	assert.True(t, s.StartTime.Equal(epoch.Add(-125*time.Second)))
	assert.True(t, e.Ticking())

	advanceSeconds(t, mClock, 1)
	assert.Equal(t, 54, e.Snapshot().TimeRemaining)
}

func TestRestoreRunningFloorsPartialSeconds(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	start := epoch.Add(-(10*time.Second + 900*time.Millisecond))
	e.RestoreFromPersisted(State{IsRunning: true, TimeRemaining: 60, Round: 1, StartTime: &start, TotalTime: 60})

	s := e.Snapshot()
	assert.Equal(t, 50, s.TimeRemaining)
	assert.True(t, s.StartTime.Equal(epoch.Add(-10*time.Second)))
}

func TestRestoreRunningPastTotalExpires(t *testing.T) {
	t.Parallel()

	for _, elapsed := range []time.Duration{180 * time.Second, 181 * time.Second, 3 * time.Hour} {
		e, mClock := newTestEngine(t)
		rec := &recorder{}
		e.Subscribe(rec.listen)

		start := epoch.Add(-elapsed)
		e.RestoreFromPersisted(State{IsRunning: true, TimeRemaining: 179, Round: 3, StartTime: &start, TotalTime: 180})

		s := e.Snapshot()
		assert.Equal(t, Expired, s.Status())
		assert.Equal(t, 0, s.TimeRemaining)
		assert.False(t, e.Ticking())

		changes := rec.all()
		require.Len(t, changes, 1)
		assert.True(t, changes[0].Expired)

		advanceSeconds(t, mClock, 2)
		assert.Equal(t, 0, e.Snapshot().TimeRemaining)
	}
}

func TestRestoreWithFutureStartClampsToTotal(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	start := epoch.Add(time.Minute)
	e.RestoreFromPersisted(State{IsRunning: true, TimeRemaining: 90, Round: 2, StartTime: &start, TotalTime: 90})

	s := e.Snapshot()
	assert.Equal(t, 90, s.TimeRemaining)
	assert.NoError(t, s.Validate())
}

func TestRestorePausedRecomputesWithoutTicking(t *testing.T) {
	t.Parallel()
	e, mClock := newTestEngine(t)

	start := epoch.Add(-100 * time.Second)
	pause := epoch.Add(-40 * time.Second)
	e.RestoreFromPersisted(State{
		IsRunning:     true,
		IsPaused:      true,
		TimeRemaining: 999,
		Round:         2,
		StartTime:     &start,
		PauseTime:     &pause,
		TotalTime:     300,
	})

	s := e.Snapshot()
	assert.Equal(t, Paused, s.Status())
	assert.Equal(t, 240, s.TimeRemaining)
	assert.False(t, e.Ticking())

	advanceSeconds(t, mClock, 5)
	assert.Equal(t, 240, e.Snapshot().TimeRemaining)

	require.True(t, e.Resume())
	assert.True(t, e.Ticking())
	advanceSeconds(t, mClock, 1)
	assert.Equal(t, 239, e.Snapshot().TimeRemaining)
}

func TestRestoreIdleIsVerbatim(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	start := epoch.Add(-time.Hour)
	persisted := State{Round: 3, StartTime: &start, TotalTime: 60, WarningsShown: Warnings{HalfTime: true}}
	e.RestoreFromPersisted(persisted)

	s := e.Snapshot()
	assert.Equal(t, persisted, s)
	assert.Equal(t, Expired, s.Status())
	assert.False(t, e.Ticking())
}

func TestResetStopsTick(t *testing.T) {
	t.Parallel()
	e, mClock := newTestEngine(t)

	require.NoError(t, e.Start(60, 2))
	advanceSeconds(t, mClock, 2)
	e.Reset()

	assert.Equal(t, Default(), e.Snapshot())
	assert.Equal(t, Idle, e.Snapshot().Status())
	assert.False(t, e.Ticking())

	rev := e.Revision()
	advanceSeconds(t, mClock, 2)
	assert.Equal(t, rev, e.Revision())
}

func TestWarningFlagsAreIdempotent(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)
	rec := &recorder{}
	e.Subscribe(rec.listen)

	e.MarkWarningShown(FiveMinutes)
	e.MarkWarningShown(FiveMinutes)
	assert.True(t, e.Snapshot().WarningsShown.FiveMinutes)
	assert.Len(t, rec.all(), 1)

	e.ResetWarnings()
	e.ResetWarnings()
	assert.Equal(t, Warnings{}, e.Snapshot().WarningsShown)
	assert.Len(t, rec.all(), 2)
}

func TestSetTimeRemainingClampsAndExpires(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	require.NoError(t, e.Start(60, 2))
	e.SetTimeRemaining(500)
	assert.Equal(t, 60, e.Snapshot().TimeRemaining)

	e.SetTimeRemaining(-3)
	assert.Equal(t, Expired, e.Snapshot().Status())
	assert.False(t, e.Ticking())
}

func TestChangesCarryIncreasingRevisions(t *testing.T) {
	t.Parallel()
	e, mClock := newTestEngine(t)
	rec := &recorder{}
	unsubscribe := e.Subscribe(rec.listen)

	require.NoError(t, e.Start(3, 1))
	advanceSeconds(t, mClock, 3)

	changes := rec.all()
	require.Len(t, changes, 4)
	for i := 1; i < len(changes); i++ {
		assert.Greater(t, changes[i].Revision, changes[i-1].Revision)
	}
	assert.Equal(t, CauseStart, changes[0].Cause)
	assert.Equal(t, CauseTick, changes[3].Cause)
	assert.True(t, changes[3].Expired)
	assert.False(t, changes[2].Expired)

	unsubscribe()
	e.Reset()
	assert.Len(t, rec.all(), 4)
}

func TestListenerMayCallBackIntoEngine(t *testing.T) {
	t.Parallel()
	e, mClock := newTestEngine(t)

	e.Subscribe(func(c Change) {
		if c.Cause != CauseTick {
			return
		}
		if w, ok := NextWarning(c.State.TimeRemaining, c.State.TotalTime, c.State.WarningsShown); ok {
			e.MarkWarningShown(w)
		}
	})

	require.NoError(t, e.Start(4, 1))
	advanceSeconds(t, mClock, 2)
	assert.True(t, e.Snapshot().WarningsShown.HalfTime)
}

func TestStateJSONRoundTrip(t *testing.T) {
	t.Parallel()

	start := epoch.Add(-time.Minute)
	pause := epoch
	for _, s := range []State{
		Default(),
		{IsRunning: true, TimeRemaining: 30, Round: 2, StartTime: &start, TotalTime: 90},
		{IsRunning: true, IsPaused: true, TimeRemaining: 30, Round: 3, StartTime: &start, PauseTime: &pause, TotalTime: 90, WarningsShown: Warnings{HalfTime: true}},
	} {
		data, err := json.Marshal(s)
		require.NoError(t, err)
		var got State
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, s, got)
	}
}

func TestStateValidate(t *testing.T) {
	t.Parallel()

	start := epoch
	assert.NoError(t, Default().Validate())
	assert.NoError(t, State{IsRunning: true, TimeRemaining: 5, Round: 1, StartTime: &start, TotalTime: 5}.Validate())

	assert.Error(t, State{Round: 0}.Validate())
	assert.Error(t, State{Round: 1, TimeRemaining: 6, TotalTime: 5}.Validate())
	assert.Error(t, State{Round: 1, IsPaused: true, PauseTime: &start}.Validate())
	assert.Error(t, State{Round: 1, IsRunning: true, TotalTime: 5, TimeRemaining: 5}.Validate())
	assert.Error(t, State{Round: 1, IsRunning: true, IsPaused: true, StartTime: &start, TotalTime: 5, TimeRemaining: 5}.Validate())
}
