package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/passthepresent/cmd/passthepresent/shared"
	"github.com/lox/passthepresent/internal/audio"
	"github.com/lox/passthepresent/internal/catalog"
	"github.com/lox/passthepresent/internal/config"
	"github.com/lox/passthepresent/internal/deck"
	"github.com/lox/passthepresent/internal/i18n"
	"github.com/lox/passthepresent/internal/randutil"
	"github.com/lox/passthepresent/internal/session"
	"github.com/lox/passthepresent/internal/storage"
)

// App is the composition root shared by every command.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer
	clock  quartz.Clock

	store    storage.Store
	settings *session.SettingsStore
	tr       *i18n.Translator
	audio    *audio.Manager
	game     *session.Controller
	restored bool

	unsubSettings func()
	logFile       io.Closer
}

// LoadConfig reads the configuration file and environment and applies the
// command line flags on top.
func (g Globals) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.StateDir != "" {
		cfg.Storage.Dir = g.StateDir
	}
	if g.Storage != "" {
		cfg.Storage.Backend = g.Storage
	}
	if g.Language != "" {
		cfg.Game.Language = g.Language
	}
	if g.Seed != 0 {
		cfg.Game.Seed = g.Seed
	}
	if g.Debug {
		cfg.Log.Level = zerolog.LevelDebugValue
	}
	if g.LogJSON {
		cfg.Log.JSON = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewApp loads the configuration and builds the app. The interactive UI
// owns the terminal, so its logs go to the configured log file instead.
func (g Globals) NewApp(out io.Writer, logToFile bool) (*App, error) {
	cfg, err := g.LoadConfig()
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	var (
		w       io.Writer = os.Stderr
		logFile *os.File
	)
	if logToFile {
		logFile, err = shared.OpenLogFile(cfg.Storage.Dir, cfg.Log.File)
		if err != nil {
			return nil, err
		}
		w = logFile
	}

	var logger zerolog.Logger
	if cfg.Log.JSON || logToFile {
		logger = shared.SetupStructuredLogger(w, level)
	} else {
		logger = shared.SetupLogger(w, level)
	}

	app, err := newApp(cfg, logger, out, quartz.NewReal())
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}
	if logFile != nil {
		app.logFile = logFile
	}
	return app, nil
}

func newApp(cfg *config.Config, logger zerolog.Logger, out io.Writer, clock quartz.Clock) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog(cfg.Game.Catalog)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	seed := cfg.Game.Seed
	if seed == 0 {
		seed = randutil.NewSeed()
	}
	logger.Debug().Int64("seed", seed).Str("backend", cfg.Storage.Backend).Msg("starting")

	settings := session.NewSettingsStore(store, logger)
	settings.Load(ctx)

	tr := i18n.New(store, logger)
	if err := loadLanguage(ctx, tr, store, cfg.Game.Language); err != nil {
		logger.Warn().Err(err).Msg("failed to set language")
	}

	var sink audio.Sink = audio.Discard{}
	if cfg.Game.Audio == config.AudioBell {
		sink = audio.Bell{W: os.Stderr}
	}
	mgr := audio.NewManager(sink, logger)
	mgr.SetEnabled(settings.Get().AudioEnabled)

	game, err := session.New(session.Deps{
		Store:   store,
		Catalog: cat,
		Clock:   clock,
		Rand:    randutil.New(seed),
		Audio:   mgr,
		Logger:  logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app := &App{
		cfg:      cfg,
		logger:   logger,
		out:      out,
		clock:    clock,
		store:    store,
		settings: settings,
		tr:       tr,
		audio:    mgr,
		game:     game,
		restored: game.Restore(),
	}
	if enabled := settings.Get().AudioEnabled; app.restored && game.Snapshot().AudioEnabled != enabled {
		game.SetAudioEnabled(enabled)
	}
	app.unsubSettings = settings.Subscribe(func(s session.Settings) {
		game.SetAudioEnabled(s.AudioEnabled)
	})
	return app, nil
}

// Close stops the game and releases storage.
func (a *App) Close() error {
	if a.unsubSettings != nil {
		a.unsubSettings()
	}
	err := a.game.Close()
	if a.logFile != nil {
		err = errors.Join(err, a.logFile.Close())
	}
	return err
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// loadLanguage prefers the language chosen in a previous session over the
// configured one.
func loadLanguage(ctx context.Context, tr *i18n.Translator, store storage.Store, configured string) error {
	if _, err := storage.Load[string](ctx, store, storage.KeyLanguage); err == nil {
		tr.Load(ctx)
		return nil
	}
	lang, ok := i18n.Parse(configured)
	if !ok {
		return fmt.Errorf("unsupported language %q", configured)
	}
	if lang == tr.Language() {
		return nil
	}
	return tr.SetLanguage(ctx, string(lang))
}

// overrides builds the settings for a new game from the configuration and
// the command line. Command line values win.
func (a *App) overrides(mode string, players []string, minutes map[int]int) (session.Overrides, error) {
	if mode == "" {
		mode = a.cfg.Game.RuleMode
	}
	m, err := deck.ParseMode(mode)
	if err != nil {
		return session.Overrides{}, err
	}
	o := session.Overrides{
		RuleMode:     m,
		Rounds:       make(map[int]session.RoundSettingsPatch),
		AudioEnabled: ptr(a.settings.Get().AudioEnabled),
		Players:      players,
	}
	for round := 1; round <= 3; round++ {
		rc, ok := a.cfg.RoundOverride(round)
		if !ok {
			continue
		}
		// A zero time_limit in the file leaves the default in place.
		var patch session.RoundSettingsPatch
		if rc.TimeLimit > 0 {
			patch.TimeLimit = ptr(rc.TimeLimit)
		}
		patch.TimeLimitEnabled = rc.Enabled
		o.Rounds[round] = patch
	}
	for round, mins := range minutes {
		patch := o.Rounds[round]
		patch.TimeLimit = ptr(mins)
		patch.TimeLimitEnabled = ptr(mins > 0)
		o.Rounds[round] = patch
	}
	return o, nil
}

func ptr[T any](v T) *T { return &v }
