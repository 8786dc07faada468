// Package i18n translates dot-path message keys using the embedded locales.
// A key with no string at its path translates to itself.
package i18n

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/text/language"

	"github.com/lox/passthepresent/internal/storage"
)

// Language is a supported locale code.
type Language string

const (
	Dutch   Language = "nl"
	English Language = "en"

	Default = Dutch
)

// Supported lists the locales in matcher order.
var Supported = []Language{Dutch, English}

var matcher = language.NewMatcher([]language.Tag{language.Dutch, language.English})

//go:embed locales/*.json
var localeFS embed.FS

var locales = sync.OnceValue(func() map[Language]string {
	out := make(map[Language]string, len(Supported))
	for _, lang := range Supported {
		data, err := localeFS.ReadFile("locales/" + string(lang) + ".json")
		if err != nil {
			panic(fmt.Sprintf("i18n: missing locale %s: %v", lang, err))
		}
		out[lang] = string(data)
	}
	return out
})

// Parse resolves a BCP 47 code such as "en-GB" to a supported language.
func Parse(code string) (Language, bool) {
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return "", false
	}
	return Supported[index], true
}

// Lookup translates key in lang without touching any Translator state.
func Lookup(lang Language, key string) string {
	doc, ok := locales()[lang]
	if !ok {
		return key
	}
	r := gjson.Get(doc, key)
	if r.Type != gjson.String {
		return key
	}
	return r.String()
}

// Translator holds the active language and persists changes to it.
type Translator struct {
	store  storage.Store
	logger zerolog.Logger

	mu   sync.RWMutex
	lang Language
}

// New returns a translator in the default language. store may be nil.
func New(store storage.Store, logger zerolog.Logger) *Translator {
	return &Translator{
		store:  store,
		logger: logger.With().Str("component", "i18n").Logger(),
		lang:   Default,
	}
}

// T translates key in the active language.
func (t *Translator) T(key string) string {
	return Lookup(t.Language(), key)
}

func (t *Translator) Language() Language {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lang
}

// SetLanguage switches language and persists the choice.
func (t *Translator) SetLanguage(ctx context.Context, code string) error {
	lang, ok := Parse(code)
	if !ok {
		return fmt.Errorf("unsupported language %q", code)
	}

	t.mu.Lock()
	t.lang = lang
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}
	if err := storage.Save(ctx, t.store, storage.KeyLanguage, string(lang)); err != nil {
		return fmt.Errorf("save language: %w", err)
	}
	return nil
}

// Load restores the persisted language. Missing or unsupported values leave
// the current language in place.
func (t *Translator) Load(ctx context.Context) Language {
	if t.store == nil {
		return t.Language()
	}
	saved, err := storage.Load[string](ctx, t.store, storage.KeyLanguage)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return t.Language()
	case err != nil:
		t.logger.Warn().Err(err).Msg("failed to load language")
		return t.Language()
	}

	lang, ok := Parse(saved)
	if !ok {
		t.logger.Warn().Str("language", saved).Msg("ignoring unsupported saved language")
		return t.Language()
	}
	t.mu.Lock()
	t.lang = lang
	t.mu.Unlock()
	return lang
}
