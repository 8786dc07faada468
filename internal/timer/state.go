package timer

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Status is the externally visible phase of a countdown.
type Status int

const (
	Idle Status = iota
	Running
	Paused
	Expired
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// State is the serialisable countdown. It is a value: every transition
// produces a new State and never edits one in place.
type State struct {
	IsRunning     bool       `json:"isRunning"`
	IsPaused      bool       `json:"isPaused"`
	TimeRemaining int        `json:"timeRemaining"`
	Round         int        `json:"round"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	PauseTime     *time.Time `json:"pauseTime,omitempty"`
	TotalTime     int        `json:"totalTime"`
	WarningsShown Warnings   `json:"warningsShown"`
}

// Default returns the state of a timer that has never been started.
func Default() State {
	return State{Round: 1}
}

// Status classifies the state. A stopped timer is expired once it has been
// started, idle otherwise.
func (s State) Status() Status {
	switch {
	case s.IsRunning && s.IsPaused:
		return Paused
	case s.IsRunning:
		return Running
	case s.StartTime != nil && s.TimeRemaining == 0:
		return Expired
	default:
		return Idle
	}
}

// Validate checks the structural invariants of a persisted state.
func (s State) Validate() error {
	var errs []error
	if s.Round < 1 || s.Round > 3 {
		errs = append(errs, fmt.Errorf("round %d out of range", s.Round))
	}
	if s.TotalTime < 0 {
		errs = append(errs, fmt.Errorf("negative total time %d", s.TotalTime))
	}
	if s.TimeRemaining < 0 || s.TimeRemaining > s.TotalTime {
		errs = append(errs, fmt.Errorf("time remaining %d outside [0, %d]", s.TimeRemaining, s.TotalTime))
	}
	if s.IsPaused && !s.IsRunning {
		errs = append(errs, errors.New("paused timer is not running"))
	}
	if s.IsPaused != (s.PauseTime != nil) {
		errs = append(errs, errors.New("pause time must be set exactly while paused"))
	}
	if s.IsRunning && s.StartTime == nil {
		errs = append(errs, errors.New("running timer has no start time"))
	}
	return errors.Join(errs...)
}

// Clone returns a copy that shares no pointers with s.
func (s State) Clone() State {
	if s.StartTime != nil {
		t := *s.StartTime
		s.StartTime = &t
	}
	if s.PauseTime != nil {
		t := *s.PauseTime
		s.PauseTime = &t
	}
	return s
}

func started(totalSeconds, round int, now time.Time) State {
	start := now.UTC()
	s := State{
		IsRunning:     true,
		TimeRemaining: totalSeconds,
		Round:         round,
		StartTime:     &start,
		TotalTime:     totalSeconds,
	}
	if totalSeconds == 0 {
		s.IsRunning = false
	}
	return s
}

// ticked decrements one second. The bool reports expiry.
func (s State) ticked() (State, bool) {
	next := s.Clone()
	next.TimeRemaining = max(0, s.TimeRemaining-1)
	if next.TimeRemaining == 0 {
		next.IsRunning = false
		next.IsPaused = false
		next.PauseTime = nil
		return next, true
	}
	return next, false
}

func (s State) paused(now time.Time) (State, bool) {
	if s.Status() != Running {
		return s, false
	}
	next := s.Clone()
	at := now.UTC()
	next.IsPaused = true
	next.PauseTime = &at
	return next, true
}

// resumed rebases StartTime so that now-StartTime equals the time that had
// elapsed when the pause began.
func (s State) resumed(now time.Time) (State, bool) {
	if s.Status() != Paused || s.StartTime == nil || s.PauseTime == nil {
		return s, false
	}
	elapsed := s.PauseTime.Sub(*s.StartTime)
	next := s.Clone()
	start := now.UTC().Add(-elapsed)
	next.StartTime = &start
	next.PauseTime = nil
	next.IsPaused = false
	return next, true
}

// restored reconstructs a persisted state against the current wall clock.
// The bool reports whether the tick must run.
func restored(p State, now time.Time) (State, bool) {
	s := p.Clone()
	if s.StartTime != nil {
		t := s.StartTime.UTC()
		s.StartTime = &t
	}
	if s.PauseTime != nil {
		t := s.PauseTime.UTC()
		s.PauseTime = &t
	}

	switch {
	case s.IsRunning && !s.IsPaused && s.StartTime != nil:
		elapsed := floorSeconds(now.Sub(*s.StartTime))
		remaining := clamp(s.TotalTime-elapsed, 0, s.TotalTime)
		if remaining == 0 {
			s.IsRunning = false
			s.TimeRemaining = 0
			return s, false
		}
		start := now.UTC().Add(-time.Duration(s.TotalTime-remaining) * time.Second)
		s.TimeRemaining = remaining
		s.StartTime = &start
		return s, true
	case s.IsPaused && s.PauseTime != nil && s.StartTime != nil:
		elapsed := floorSeconds(s.PauseTime.Sub(*s.StartTime))
		s.TimeRemaining = clamp(s.TotalTime-elapsed, 0, s.TotalTime)
		return s, false
	default:
		return s, false
	}
}

func floorSeconds(d time.Duration) int {
	return int(math.Floor(d.Seconds()))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
