package main

import (
	"context"
	"fmt"

	"github.com/lox/passthepresent/internal/session"
)

type SettingsCmd struct {
	Show     SettingsShowCmd     `cmd:"" default:"1" help:"Show the settings"`
	Audio    SettingsAudioCmd    `cmd:"" help:"Turn sounds on or off"`
	Dice     SettingsDiceCmd     `cmd:"" help:"Turn the digital die on or off"`
	Language SettingsLanguageCmd `cmd:"" help:"Switch language"`
}

// applySwitch resolves an on/off/toggle argument against the current value.
func applySwitch(state string, cur bool) bool {
	switch state {
	case "on":
		return true
	case "off":
		return false
	}
	return !cur
}

func (a *App) printSettings(s session.Settings) error {
	_, err := fmt.Fprintf(a.out, "audio=%t dice=%t language=%s\n", s.AudioEnabled, s.DigitalDiceEnabled, a.tr.Language())
	return err
}

type SettingsShowCmd struct{}

func (c *SettingsShowCmd) Run(app *App) error {
	return app.printSettings(app.settings.Get())
}

type SettingsAudioCmd struct {
	State string `arg:"" optional:"" enum:"on,off,toggle" default:"toggle" help:"on, off or toggle"`
}

func (c *SettingsAudioCmd) Run(app *App) error {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	on := applySwitch(c.State, app.settings.Get().AudioEnabled)
	return app.printSettings(app.settings.Update(ctx, session.SettingsPatch{AudioEnabled: &on}))
}

type SettingsDiceCmd struct {
	State string `arg:"" optional:"" enum:"on,off,toggle" default:"toggle" help:"on, off or toggle"`
}

func (c *SettingsDiceCmd) Run(app *App) error {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	on := applySwitch(c.State, app.settings.Get().DigitalDiceEnabled)
	return app.printSettings(app.settings.Update(ctx, session.SettingsPatch{DigitalDiceEnabled: &on}))
}

type SettingsLanguageCmd struct {
	Code string `arg:"" help:"Language code: nl or en"`
}

func (c *SettingsLanguageCmd) Run(app *App) error {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := app.tr.SetLanguage(ctx, c.Code); err != nil {
		return err
	}
	lang := string(app.tr.Language())
	return app.printSettings(app.settings.Update(ctx, session.SettingsPatch{Language: &lang}))
}
