// Package timer implements the round countdown: a one-second tick with
// pause/resume, wall-clock reconstruction after a restart, and one-shot
// warning thresholds.
//
// The Engine owns exactly one tick handle at a time. Starting, resuming or
// restoring a running timer cancels any existing handle before scheduling a
// new one, and the tick cancels itself when the countdown reaches zero.
//
// Every mutation is published as a Change carrying a strictly increasing
// Revision. Listeners run outside the engine lock, so they may call back into
// the engine; a listener that mirrors state should drop any Change whose
// Revision is not newer than the last one it applied.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// TickInterval is the countdown granularity.
const TickInterval = time.Second

var (
	// ErrNegativeDuration is returned by Start for a negative duration.
	ErrNegativeDuration = errors.New("timer: duration must not be negative")
	// ErrInvalidRound is returned by Start for a round outside 1..3.
	ErrInvalidRound = errors.New("timer: round must be 1, 2 or 3")

	errExpired    = errors.New("timer: expired")
	errSuperseded = errors.New("timer: tick superseded")
)

// Cause says which operation produced a Change.
type Cause string

const (
	CauseStart   Cause = "start"
	CauseTick    Cause = "tick"
	CausePause   Cause = "pause"
	CauseResume  Cause = "resume"
	CauseRestore Cause = "restore"
	CauseReset   Cause = "reset"
	CauseWarning Cause = "warning"
	CauseAdjust  Cause = "adjust"
)

// Change is one published state transition.
type Change struct {
	Revision uint64
	Cause    Cause
	State    State
	// Expired is set on the change that ended a run.
	Expired bool
}

// Listener receives published changes.
type Listener func(Change)

// Engine is a single countdown.
type Engine struct {
	clock  quartz.Clock
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	revision   uint64
	generation uint64
	cancelTick context.CancelFunc

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// New returns an idle engine driven by clock.
func New(clock quartz.Clock, logger zerolog.Logger) *Engine {
	return &Engine{
		clock:     clock,
		logger:    logger.With().Str("component", "timer").Logger(),
		state:     Default(),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l and returns a function that removes it.
func (e *Engine) Subscribe(l Listener) func() {
	e.lmu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.lmu.Unlock()

	return func() {
		e.lmu.Lock()
		delete(e.listeners, id)
		e.lmu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Revision returns the revision of the current state.
func (e *Engine) Revision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

// Ticking reports whether a tick handle is active.
func (e *Engine) Ticking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelTick != nil
}

// Start begins a fresh countdown of totalSeconds for round, clearing warnings.
// A zero duration expires immediately.
func (e *Engine) Start(totalSeconds, round int) error {
	if totalSeconds < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeDuration, totalSeconds)
	}
	if round < 1 || round > 3 {
		return fmt.Errorf("%w: %d", ErrInvalidRound, round)
	}

	e.mu.Lock()
	next := started(totalSeconds, round, e.clock.Now("timer", "start"))
	e.stopTickLocked()
	if next.IsRunning {
		e.startTickLocked()
	}
	change := e.commitLocked(CauseStart, next)
	change.Expired = !next.IsRunning
	e.mu.Unlock()

	e.logger.Debug().Int("total", totalSeconds).Int("round", round).Msg("timer started")
	e.publish(change)
	return nil
}

// Pause freezes a running countdown. It reports whether anything changed.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	next, ok := e.state.paused(e.clock.Now("timer", "pause"))
	if !ok {
		e.mu.Unlock()
		return false
	}
	change := e.commitLocked(CausePause, next)
	e.mu.Unlock()

	e.publish(change)
	return true
}

// Resume continues a paused countdown. It reports whether anything changed.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	next, ok := e.state.resumed(e.clock.Now("timer", "resume"))
	if !ok {
		e.mu.Unlock()
		return false
	}
	if e.cancelTick == nil {
		e.startTickLocked()
	}
	change := e.commitLocked(CauseResume, next)
	e.mu.Unlock()

	e.publish(change)
	return true
}

// RestoreFromPersisted replaces the state with a previously serialised one,
// charging the wall-clock time that passed since it was written.
func (e *Engine) RestoreFromPersisted(persisted State) {
	e.mu.Lock()
	next, tick := restored(persisted, e.clock.Now("timer", "restore"))
	e.stopTickLocked()
	if tick {
		e.startTickLocked()
	}
	change := e.commitLocked(CauseRestore, next)
	change.Expired = persisted.IsRunning && !persisted.IsPaused && next.Status() == Expired
	e.mu.Unlock()

	e.logger.Debug().
		Str("status", next.Status().String()).
		Int("remaining", next.TimeRemaining).
		Msg("timer restored")
	e.publish(change)
}

// Reset stops the tick and returns to the default state.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.stopTickLocked()
	change := e.commitLocked(CauseReset, Default())
	e.mu.Unlock()

	e.publish(change)
}

// MarkWarningShown records that w fired. Marking twice is harmless.
func (e *Engine) MarkWarningShown(w Warning) {
	e.mu.Lock()
	if e.state.WarningsShown.Shown(w) {
		e.mu.Unlock()
		return
	}
	next := e.state.Clone()
	next.WarningsShown = next.WarningsShown.With(w)
	change := e.commitLocked(CauseWarning, next)
	e.mu.Unlock()

	e.publish(change)
}

// ResetWarnings clears every warning flag.
func (e *Engine) ResetWarnings() {
	e.mu.Lock()
	if e.state.WarningsShown == (Warnings{}) {
		e.mu.Unlock()
		return
	}
	next := e.state.Clone()
	next.WarningsShown = Warnings{}
	change := e.commitLocked(CauseWarning, next)
	e.mu.Unlock()

	e.publish(change)
}

// SetTimeRemaining overrides the remaining seconds, clamped to the total.
// Setting zero on a running timer expires it.
func (e *Engine) SetTimeRemaining(seconds int) {
	e.mu.Lock()
	next := e.state.Clone()
	next.TimeRemaining = clamp(seconds, 0, next.TotalTime)
	expired := false
	if next.TimeRemaining == 0 && next.IsRunning {
		next.IsRunning = false
		next.IsPaused = false
		next.PauseTime = nil
		e.stopTickLocked()
		expired = true
	}
	change := e.commitLocked(CauseAdjust, next)
	change.Expired = expired
	e.mu.Unlock()

	e.publish(change)
}

// Close stops the tick without touching the state, for process shutdown.
func (e *Engine) Close() {
	e.mu.Lock()
	e.stopTickLocked()
	e.mu.Unlock()
}

func (e *Engine) tick(generation uint64) error {
	e.mu.Lock()
	if generation != e.generation {
		e.mu.Unlock()
		return errSuperseded
	}
	if e.state.Status() != Running {
		e.mu.Unlock()
		return nil
	}
	next, expired := e.state.ticked()
	if expired {
		e.stopTickLocked()
	}
	change := e.commitLocked(CauseTick, next)
	change.Expired = expired
	e.mu.Unlock()

	e.publish(change)
	if expired {
		e.logger.Debug().Int("round", next.Round).Msg("timer expired")
		return errExpired
	}
	return nil
}

func (e *Engine) startTickLocked() {
	e.stopTickLocked()
	e.generation++
	generation := e.generation
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelTick = cancel
	e.clock.TickerFunc(ctx, TickInterval, func() error {
		return e.tick(generation)
	}, "timer", "tick")
}

func (e *Engine) stopTickLocked() {
	if e.cancelTick != nil {
		e.cancelTick()
		e.cancelTick = nil
	}
	// Bumping the generation invalidates a tick that is already in flight.
	e.generation++
}

func (e *Engine) commitLocked(cause Cause, next State) Change {
	e.state = next
	e.revision++
	return Change{Revision: e.revision, Cause: cause, State: next.Clone()}
}

func (e *Engine) publish(change Change) {
	e.lmu.RLock()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.lmu.RUnlock()

	for _, l := range listeners {
		l(change)
	}
}
