package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lox/passthepresent/internal/storage"
)

// Settings are the player preferences kept across games.
type Settings struct {
	AudioEnabled       bool   `json:"audioEnabled"`
	DigitalDiceEnabled bool   `json:"digitalDiceEnabled"`
	Language           string `json:"language"`
}

// DefaultSettings returns the preferences of a fresh install.
func DefaultSettings() Settings {
	return Settings{AudioEnabled: true, DigitalDiceEnabled: true, Language: "nl"}
}

// SettingsPatch changes the fields that are set.
type SettingsPatch struct {
	AudioEnabled       *bool
	DigitalDiceEnabled *bool
	Language           *string
}

// SettingsStore holds the current settings and writes every change through
// to storage. Write failures are logged and otherwise ignored.
type SettingsStore struct {
	store  storage.Store
	logger zerolog.Logger

	mu        sync.Mutex
	settings  Settings
	listeners map[int]func(Settings)
	nextID    int
}

func NewSettingsStore(store storage.Store, logger zerolog.Logger) *SettingsStore {
	return &SettingsStore{
		store:     store,
		logger:    logger.With().Str("component", "settings").Logger(),
		settings:  DefaultSettings(),
		listeners: make(map[int]func(Settings)),
	}
}

// Load replaces the current settings with the saved ones. It reports
// whether saved settings were found.
func (s *SettingsStore) Load(ctx context.Context) bool {
	saved, err := storage.Load[Settings](ctx, s.store, storage.KeySettings)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return false
	case err != nil:
		s.logger.Warn().Err(err).Msg("failed to load settings, using defaults")
		return false
	}

	s.mu.Lock()
	s.settings = saved
	s.mu.Unlock()
	s.notify(saved)
	return true
}

// Get returns the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update applies patch and persists the result.
func (s *SettingsStore) Update(ctx context.Context, patch SettingsPatch) Settings {
	return s.apply(ctx, func(cur Settings) Settings {
		if patch.AudioEnabled != nil {
			cur.AudioEnabled = *patch.AudioEnabled
		}
		if patch.DigitalDiceEnabled != nil {
			cur.DigitalDiceEnabled = *patch.DigitalDiceEnabled
		}
		if patch.Language != nil {
			cur.Language = *patch.Language
		}
		return cur
	})
}

func (s *SettingsStore) ToggleAudio(ctx context.Context) Settings {
	return s.apply(ctx, func(cur Settings) Settings {
		cur.AudioEnabled = !cur.AudioEnabled
		return cur
	})
}

func (s *SettingsStore) ToggleDigitalDice(ctx context.Context) Settings {
	return s.apply(ctx, func(cur Settings) Settings {
		cur.DigitalDiceEnabled = !cur.DigitalDiceEnabled
		return cur
	})
}

// Reset restores and persists the defaults.
func (s *SettingsStore) Reset(ctx context.Context) Settings {
	return s.apply(ctx, func(Settings) Settings { return DefaultSettings() })
}

// Subscribe registers fn for every change and returns a function that
// removes it.
func (s *SettingsStore) Subscribe(fn func(Settings)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SettingsStore) apply(ctx context.Context, fn func(Settings) Settings) Settings {
	s.mu.Lock()
	next := fn(s.settings)
	s.settings = next
	s.mu.Unlock()

	if err := storage.Save(ctx, s.store, storage.KeySettings, next); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist settings")
	}
	s.notify(next)
	return next
}

func (s *SettingsStore) notify(settings Settings) {
	s.mu.Lock()
	listeners := make([]func(Settings), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(settings)
	}
}
