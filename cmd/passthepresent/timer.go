package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/passthepresent/cmd/passthepresent/shared"
	"github.com/lox/passthepresent/internal/session"
	"github.com/lox/passthepresent/internal/timer"
)

type TimerCmd struct {
	Start  TimerStartCmd  `cmd:"" help:"Start the countdown"`
	Pause  TimerPauseCmd  `cmd:"" help:"Pause the countdown"`
	Resume TimerResumeCmd `cmd:"" help:"Resume a paused countdown"`
	Reset  TimerResetCmd  `cmd:"" help:"Stop and clear the countdown"`
}

type TimerStartCmd struct {
	Minutes int `arg:"" optional:"" help:"Countdown length in minutes (defaults to the round's time limit)"`
	Seconds int `help:"Extra seconds added to the countdown"`
}

func (c *TimerStartCmd) Run(app *App) error {
	s := app.game.Snapshot()
	total := c.Minutes*60 + c.Seconds
	if total == 0 {
		total = s.RoundSettings.Get(s.CurrentRound).Seconds()
	}
	if total == 0 {
		return fmt.Errorf("round %d has no time limit; pass a length", s.CurrentRound)
	}
	if err := app.game.StartTimer(total); err != nil {
		return err
	}
	_, err := fmt.Fprintln(app.out, app.formatTimer(app.game.Timer()))
	return err
}

type TimerPauseCmd struct{}

func (c *TimerPauseCmd) Run(app *App) error {
	if !app.game.PauseTimer() {
		return errors.New("the timer is not running")
	}
	_, err := fmt.Fprintln(app.out, app.formatTimer(app.game.Timer()))
	return err
}

type TimerResumeCmd struct{}

func (c *TimerResumeCmd) Run(app *App) error {
	if !app.game.ResumeTimer() {
		return errors.New("the timer is not paused")
	}
	_, err := fmt.Fprintln(app.out, app.formatTimer(app.game.Timer()))
	return err
}

type TimerResetCmd struct{}

func (c *TimerResetCmd) Run(app *App) error {
	app.game.ResetTimer()
	return nil
}

type WatchCmd struct {
	Every time.Duration `default:"30s" help:"How often to print the remaining time"`
}

func (c *WatchCmd) Run(app *App) error {
	ctx, cancel := shared.SignalContext(context.Background(), app.logger)
	defer cancel()
	return app.watch(ctx, c.Every)
}

// watch follows the countdown until it expires or ctx is cancelled, printing
// the remaining time every interval and each warning as it fires.
func (a *App) watch(ctx context.Context, every time.Duration) error {
	if a.game.Timer().Status() != timer.Running {
		_, err := fmt.Fprintln(a.out, a.formatTimer(a.game.Timer()))
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Every state carries the full history, so only the newest one matters.
	updates := make(chan session.GameState, 1)
	unsubscribe := a.game.Subscribe(func(s session.GameState) {
		for {
			select {
			case updates <- s:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	seen := len(a.game.Snapshot().GameHistory)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case s := <-updates:
				var over bool
				seen, over = a.announce(s, seen)
				if over {
					cancel()
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		fmt.Fprintln(a.out, a.formatTimer(a.game.Timer()))
		tk := a.clock.TickerFunc(ctx, every, func() error {
			fmt.Fprintln(a.out, a.formatTimer(a.game.Timer()))
			return nil
		}, "watch")
		if err := tk.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}

// announce prints the warnings and round end recorded after the first seen
// events and reports whether the round is over.
func (a *App) announce(s session.GameState, seen int) (int, bool) {
	if seen > len(s.GameHistory) {
		seen = 0
	}
	over := false
	for _, ev := range s.GameHistory[seen:] {
		switch ev.Type {
		case session.EventTimerWarning:
			var data struct {
				Warning timer.Warning `json:"warning"`
			}
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				a.logger.Warn().Err(err).Msg("unreadable warning event")
				continue
			}
			fmt.Fprintln(a.out, a.tr.T(data.Warning.MessageKey()))
		case session.EventRoundOver:
			fmt.Fprintln(a.out, a.tr.T("timer.roundOver"))
			over = true
		}
	}
	return len(s.GameHistory), over
}
