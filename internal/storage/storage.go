// Package storage persists the engine's records in a durable key-value store.
//
// Records are JSON documents addressed by a short key (game-state, settings,
// state-version, language). Backends only move bytes; the typed helpers Load
// and Save own the encoding so every backend stores the same wire format.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Namespace prefixes every key written by the engine.
const Namespace = "pass-the-present:"

// Record keys.
const (
	KeyGameState    = "game-state"
	KeySettings     = "settings"
	KeyStateVersion = "state-version"
	KeyLanguage     = "language"
)

// CurrentVersion is the schema version written alongside the game state.
const CurrentVersion = 1

// ErrNotFound is returned when a key has never been written or was cleared.
var ErrNotFound = errors.New("storage: key not found")

// Store is a durable byte-oriented key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key returns the namespaced form of a record key.
func Key(name string) string {
	if strings.HasPrefix(name, Namespace) {
		return name
	}
	return Namespace + name
}

// Load reads and decodes the record stored under name.
func Load[T any](ctx context.Context, s Store, name string) (T, error) {
	var out T
	data, err := s.Get(ctx, Key(name))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}

// Save encodes v and writes it under name.
func Save[T any](ctx context.Context, s Store, name string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.Set(ctx, Key(name), data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Clear removes the named records. With no names it removes the game state,
// settings and version records, leaving the language choice alone.
func Clear(ctx context.Context, s Store, names ...string) error {
	if len(names) == 0 {
		names = []string{KeyGameState, KeySettings, KeyStateVersion}
	}
	var errs []error
	for _, name := range names {
		if err := s.Delete(ctx, Key(name)); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("clear %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// SaveVersioned writes v under name and stamps the state version record.
func SaveVersioned[T any](ctx context.Context, s Store, name string, v T) error {
	if err := Save(ctx, s, name, v); err != nil {
		return err
	}
	return Save(ctx, s, KeyStateVersion, CurrentVersion)
}

// Version returns the stored schema version, or 0 when none was written.
func Version(ctx context.Context, s Store) (int, error) {
	v, err := Load[int](ctx, s, KeyStateVersion)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return v, err
}
