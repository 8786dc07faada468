package i18n

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/passthepresent/internal/catalog"
	"github.com/lox/passthepresent/internal/deck"
	"github.com/lox/passthepresent/internal/storage"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Five minutes left!", Lookup(English, "timer.fiveMinutes"))
	assert.Equal(t, "Nog vijf minuten!", Lookup(Dutch, "timer.fiveMinutes"))
	assert.Equal(t, "Draw a card.", Lookup(English, "rounds.traditional.round2.diceRules.4"))

	// Missing paths, non-string nodes and unknown languages fall back to the key.
	assert.Equal(t, "timer.never", Lookup(English, "timer.never"))
	assert.Equal(t, "timer", Lookup(English, "timer"))
	assert.Equal(t, "timer.oneMinute", Lookup(Language("fr"), "timer.oneMinute"))
}

func TestEveryCatalogKeyIsTranslated(t *testing.T) {
	t.Parallel()

	c, err := catalog.Default()
	require.NoError(t, err)

	for _, lang := range Supported {
		for _, card := range c.Cards {
			assert.NotEqual(t, card.Text, Lookup(lang, card.Text), "%s: %s", lang, card.Text)
		}
		for _, mode := range deck.Modes {
			rs := c.Ruleset(mode)
			assert.NotEqual(t, rs.Description, Lookup(lang, rs.Description))
			for round := 1; round <= 3; round++ {
				for _, key := range c.DiceRules(mode, round) {
					assert.NotEqual(t, key, Lookup(lang, key), "%s: %s", lang, key)
				}
			}
		}
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want Language
		ok   bool
	}{
		{"nl", Dutch, true},
		{"en", English, true},
		{"en-GB", English, true},
		{"nl-BE", Dutch, true},
		{"not a tag!", "", false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.code)
		assert.Equal(t, tt.ok, ok, tt.code)
		assert.Equal(t, tt.want, got, tt.code)
	}
}

func TestTranslatorPersistsLanguage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemory()

	tr := New(store, zerolog.Nop())
	assert.Equal(t, Dutch, tr.Language())
	assert.Equal(t, "Ronde", tr.T("ui.round"))

	require.NoError(t, tr.SetLanguage(ctx, "en-US"))
	assert.Equal(t, "Round", tr.T("ui.round"))
	assert.Error(t, tr.SetLanguage(ctx, "???"))
	assert.Equal(t, English, tr.Language())

	saved, err := storage.Load[string](ctx, store, storage.KeyLanguage)
	require.NoError(t, err)
	assert.Equal(t, "en", saved)

	fresh := New(store, zerolog.Nop())
	assert.Equal(t, English, fresh.Load(ctx))
	assert.Equal(t, English, fresh.Language())
}

func TestLoadIgnoresMissingAndBadValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemory()

	tr := New(store, zerolog.Nop())
	assert.Equal(t, Dutch, tr.Load(ctx))

	require.NoError(t, storage.Save(ctx, store, storage.KeyLanguage, "!!"))
	assert.Equal(t, Dutch, tr.Load(ctx))

	require.NoError(t, store.Set(ctx, storage.Key(storage.KeyLanguage), []byte("{")))
	assert.Equal(t, Dutch, tr.Load(ctx))

	assert.Equal(t, Dutch, New(nil, zerolog.Nop()).Load(ctx))
}
