package main

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/passthepresent/cmd/passthepresent/shared"
	"github.com/lox/passthepresent/internal/tui"
)

type PlayCmd struct {
	Mode    string   `help:"Rule mode for a new game"`
	Players []string `name:"player" short:"p" help:"Add a player to a new game (repeatable)"`
	New     bool     `help:"Start a new game even if one was saved"`
}

func (c *PlayCmd) Run(app *App) error {
	if c.New || !app.restored {
		o, err := app.overrides(c.Mode, c.Players, nil)
		if err != nil {
			return err
		}
		if err := app.game.InitializeGame(o); err != nil {
			return err
		}
	}

	ctx, cancel := shared.SignalContext(context.Background(), app.logger)
	defer cancel()

	var w io.Writer = io.Discard
	if f, ok := app.logFile.(*os.File); ok {
		w = f
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "PLAY",
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return tui.Run(ctx, app.game, app.tr, logger)
	})
	g.Go(func() error {
		<-ctx.Done()
		app.game.Persist()
		return nil
	})
	return g.Wait()
}
