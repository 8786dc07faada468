package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lox/passthepresent/internal/deck"
	"github.com/lox/passthepresent/internal/session"
	"github.com/lox/passthepresent/internal/storage"
	"github.com/lox/passthepresent/internal/timer"
)

const storageTimeout = 5 * time.Second

var labelStyle = lipgloss.NewStyle().Bold(true)

type StatusCmd struct {
	JSON bool `help:"Print the raw game state as JSON"`
}

func (c *StatusCmd) Run(app *App) error {
	s := app.game.Snapshot()
	if c.JSON {
		enc := json.NewEncoder(app.out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	if !app.restored && s.SessionID == "" {
		_, err := fmt.Fprintln(app.out, "No game in progress. Start one with: passthepresent init")
		return err
	}
	return app.printStatus(s)
}

func (a *App) printStatus(s session.GameState) error {
	t := a.tr.T
	card := t("ui.noCard")
	if s.CardDeck.CurrentCard != nil {
		card = t(s.CardDeck.CurrentCard.Text)
	}

	rows := [][]string{
		{t("ui.round"), fmt.Sprintf("%d · %s", s.CurrentRound, t("status."+string(s.RoundStatus)))},
		{t("ui.mode"), t("modes." + string(s.RuleMode))},
		{t("ui.timeRemaining"), a.formatTimer(s.Timer)},
		{t("ui.currentCard"), card},
		{t("ui.cardsLeft"), fmt.Sprintf("%d", len(s.CardDeck.Available))},
		{t("ui.players"), formatPlayers(s.Players, t("ui.savedCards"))},
	}
	if s.SessionID != "" {
		rows = append([][]string{{"Session", s.SessionID}}, rows...)
	}

	tbl := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return labelStyle
			}
			return lipgloss.NewStyle()
		}).
		Rows(rows...)
	_, err := fmt.Fprintln(a.out, tbl.String())
	return err
}

func (a *App) formatTimer(ts timer.State) string {
	switch ts.Status() {
	case timer.Idle:
		if ts.TotalTime == 0 {
			return a.tr.T("timer.noLimit")
		}
	case timer.Paused:
		return timer.FormatTime(ts.TimeRemaining) + " " + a.tr.T("ui.paused")
	}
	return timer.FormatTime(ts.TimeRemaining)
}

func formatPlayers(players []deck.Player, saved string) string {
	names := make([]string, 0, len(players))
	for _, p := range players {
		if n := len(p.SavedCards); n > 0 {
			names = append(names, fmt.Sprintf("%s (%d %s)", p.Name, n, saved))
			continue
		}
		names = append(names, p.Name)
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

type InitCmd struct {
	Mode    string      `help:"Rule mode: peaceful, traditional, chaos or adult (defaults to the configured mode)"`
	Players []string    `name:"player" short:"p" help:"Add a player (repeatable)"`
	Minutes map[int]int `help:"Round time limits in minutes, for example --minutes 2=20 (0 disables the limit)"`
}

func (c *InitCmd) Run(app *App) error {
	o, err := app.overrides(c.Mode, c.Players, c.Minutes)
	if err != nil {
		return err
	}
	if err := app.game.InitializeGame(o); err != nil {
		return err
	}
	return app.printStatus(app.game.Snapshot())
}

type RoundCmd struct {
	Round int `arg:"" help:"Round number (1-3)"`
}

func (c *RoundCmd) Run(app *App) error {
	if err := app.game.UpdateRound(c.Round); err != nil {
		return err
	}
	return app.printStatus(app.game.Snapshot())
}

type StatusSetCmd struct {
	Status string `arg:"" enum:"setup,explanation,countdown,playing,paused,finished" help:"New round status"`
	Force  bool   `help:"Skip the game flow check"`
}

func (c *StatusSetCmd) Run(app *App) error {
	status := session.RoundStatus(c.Status)
	if c.Force {
		return app.game.UpdateRoundStatus(status)
	}
	if err := app.game.TransitionRoundStatus(status); err != nil {
		cur := app.game.Snapshot().RoundStatus
		return fmt.Errorf("%w (allowed from %s: %v)", err, cur, session.NextStatuses(cur))
	}
	return nil
}

type ModeCmd struct {
	Mode string `arg:"" enum:"peaceful,traditional,chaos,adult" help:"Rule mode"`
}

func (c *ModeCmd) Run(app *App) error {
	if err := app.game.SetRuleMode(deck.Mode(c.Mode)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(app.out, app.tr.T("setup."+c.Mode+"Description"))
	return err
}

type SettingsRoundCmd struct {
	Round   int  `arg:"" help:"Round number (1-3)"`
	Minutes *int `help:"Time limit in minutes"`
	Enable  bool `xor:"limit" help:"Turn the time limit on"`
	Disable bool `xor:"limit" help:"Turn the time limit off"`
}

func (c *SettingsRoundCmd) Run(app *App) error {
	patch := session.RoundSettingsPatch{TimeLimit: c.Minutes}
	switch {
	case c.Enable:
		patch.TimeLimitEnabled = ptr(true)
	case c.Disable:
		patch.TimeLimitEnabled = ptr(false)
	}
	if err := app.game.UpdateRoundSettings(c.Round, patch); err != nil {
		return err
	}
	rs := app.game.Snapshot().RoundSettings.Get(c.Round)
	_, err := fmt.Fprintf(app.out, "%s %d: %d min, enabled=%t\n", app.tr.T("ui.round"), c.Round, rs.TimeLimit, rs.TimeLimitEnabled)
	return err
}

type StartRoundCmd struct{}

func (c *StartRoundCmd) Run(app *App) error {
	if err := app.game.StartRound(); err != nil {
		return err
	}
	return app.printStatus(app.game.Snapshot())
}

type PlayerCmd struct {
	Add  PlayerAddCmd  `cmd:"" help:"Add players"`
	List PlayerListCmd `cmd:"" help:"List players and their saved cards"`
}

type PlayerAddCmd struct {
	Names []string `arg:"" help:"Player names"`
}

func (c *PlayerAddCmd) Run(app *App) error {
	for _, name := range c.Names {
		if !app.game.AddPlayer(name) {
			app.logger.Warn().Str("player", name).Msg("player already present")
		}
	}
	_, err := fmt.Fprintln(app.out, formatPlayers(app.game.Snapshot().Players, app.tr.T("ui.savedCards")))
	return err
}

type PlayerListCmd struct{}

func (c *PlayerListCmd) Run(app *App) error {
	for _, p := range app.game.Snapshot().Players {
		fmt.Fprintln(app.out, p.Name)
		for _, card := range p.SavedCards {
			fmt.Fprintf(app.out, "  %s  %s\n", card.ID, app.tr.T(card.Text))
		}
	}
	return nil
}

type RollCmd struct{}

func (c *RollCmd) Run(app *App) error {
	if !app.settings.Get().DigitalDiceEnabled {
		return fmt.Errorf("the digital die is turned off (passthepresent settings dice on)")
	}
	res, err := app.game.RollDice()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.out, "%d: %s\n", res.Value, app.tr.T(res.Rule))
	return err
}

type ResetCmd struct {
	Settings bool `help:"Reset the settings too"`
}

func (c *ResetCmd) Run(app *App) error {
	app.game.Reset()
	if c.Settings {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		app.settings.Reset(ctx)
		if err := storage.Clear(ctx, app.store, storage.KeyLanguage); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(app.out, "Game reset.")
	return err
}

type HistoryCmd struct {
	Format string `enum:"toml,json" default:"toml" help:"Output format"`
}

type historyExport struct {
	Session string         `toml:"session" json:"session"`
	Events  []historyEntry `toml:"event" json:"events"`
}

type historyEntry struct {
	Type      string    `toml:"type" json:"type"`
	Timestamp time.Time `toml:"timestamp" json:"timestamp"`
	Data      string    `toml:"data,omitempty" json:"data,omitempty"`
}

func (c *HistoryCmd) Run(app *App) error {
	s := app.game.Snapshot()
	export := historyExport{Session: s.SessionID, Events: make([]historyEntry, 0, len(s.GameHistory))}
	for _, ev := range s.GameHistory {
		export.Events = append(export.Events, historyEntry{
			Type:      ev.Type,
			Timestamp: ev.Timestamp,
			Data:      string(ev.Data),
		})
	}

	if c.Format == "json" {
		enc := json.NewEncoder(app.out)
		enc.SetIndent("", "  ")
		return enc.Encode(export)
	}
	return toml.NewEncoder(app.out).Encode(export)
}
