// Package audio plays the timer cues. Playback goes through a Sink so the
// terminal bell, a silent sink and test recorders are interchangeable.
package audio

import (
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Cue names a sound.
type Cue string

const (
	Warning  Cue = "warning"
	RoundEnd Cue = "roundEnd"
)

const (
	WarningVolume  = 0.5
	RoundEndVolume = 0.7
)

// Sink plays a cue at a volume in [0,1].
type Sink interface {
	Play(cue Cue, volume float64) error
}

// Bell rings the terminal bell, twice for the end of a round.
type Bell struct {
	W io.Writer
}

func (b Bell) Play(cue Cue, _ float64) error {
	n := 1
	if cue == RoundEnd {
		n = 2
	}
	_, err := io.WriteString(b.W, strings.Repeat("\a", n))
	return err
}

// Discard plays nothing.
type Discard struct{}

func (Discard) Play(Cue, float64) error { return nil }

// Manager tracks mute state and master volume in front of a Sink.
type Manager struct {
	sink   Sink
	logger zerolog.Logger

	mu     sync.Mutex
	muted  bool
	volume float64
}

// NewManager returns an unmuted manager at full master volume.
func NewManager(sink Sink, logger zerolog.Logger) *Manager {
	if sink == nil {
		sink = Discard{}
	}
	return &Manager{
		sink:   sink,
		logger: logger.With().Str("component", "audio").Logger(),
		volume: 1,
	}
}

// PlaySound plays a known cue unless muted. Playback errors are logged and
// dropped.
func (m *Manager) PlaySound(cue Cue, volume float64) {
	if cue != Warning && cue != RoundEnd {
		return
	}

	m.mu.Lock()
	if m.muted {
		m.mu.Unlock()
		return
	}
	level := clamp(volume) * m.volume
	m.mu.Unlock()

	if err := m.sink.Play(cue, level); err != nil {
		m.logger.Debug().Err(err).Str("cue", string(cue)).Msg("playback failed")
	}
}

// TriggerWarning plays the warning chime.
func (m *Manager) TriggerWarning() {
	m.PlaySound(Warning, WarningVolume)
}

// TriggerRoundEnd plays the round-over sound.
func (m *Manager) TriggerRoundEnd() {
	m.PlaySound(RoundEnd, RoundEndVolume)
}

// SetVolume sets the master volume, clamped to [0,1].
func (m *Manager) SetVolume(v float64) {
	m.mu.Lock()
	m.volume = clamp(v)
	m.mu.Unlock()
}

func (m *Manager) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *Manager) Mute()   { m.SetEnabled(false) }
func (m *Manager) Unmute() { m.SetEnabled(true) }

// SetEnabled follows the audioEnabled setting.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.muted = !enabled
	m.mu.Unlock()
}

func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.muted
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
