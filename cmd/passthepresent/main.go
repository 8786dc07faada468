package main

import (
	"os"
	"strings"

	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type Globals struct {
	Config   string `help:"HCL configuration file" type:"path" default:"passthepresent.hcl" env:"PASSTHEPRESENT_CONFIG"`
	StateDir string `help:"Directory holding the saved game" type:"path"`
	Storage  string `help:"Storage backend: file, sqlite or memory"`
	Language string `help:"Language: nl or en"`
	Seed     int64  `help:"Seed for shuffles and dice rolls (0 picks one at random)"`
	Debug    bool   `help:"Enable debug logging"`
	LogJSON  bool   `name:"log-json" help:"Log as JSON"`
}

type CLI struct {
	Globals

	Version       kong.VersionFlag `short:"v" help:"Show version"`
	Play          PlayCmd          `cmd:"" help:"Play interactively in the terminal"`
	Status        StatusCmd        `cmd:"" help:"Show the saved game"`
	Init          InitCmd          `cmd:"" help:"Start a new game"`
	Round         RoundCmd         `cmd:"" help:"Move to another round"`
	StatusSet     StatusSetCmd     `cmd:"" help:"Change the round status"`
	Mode          ModeCmd          `cmd:"" help:"Choose the rule mode"`
	SettingsRound SettingsRoundCmd `cmd:"" help:"Change a round's time limit"`
	StartRound    StartRoundCmd    `cmd:"" help:"Deal the deck and start the round"`
	Timer         TimerCmd         `cmd:"" help:"Control the round timer"`
	Watch         WatchCmd         `cmd:"" help:"Follow the running timer until the round ends"`
	Card          CardCmd          `cmd:"" help:"Draw, return, keep and use cards"`
	Player        PlayerCmd        `cmd:"" help:"Manage players"`
	Roll          RollCmd          `cmd:"" help:"Roll the die"`
	Settings      SettingsCmd      `cmd:"" help:"Show and change settings"`
	Reset         ResetCmd         `cmd:"" help:"Throw away the saved game"`
	History       HistoryCmd       `cmd:"" help:"Export the game history"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("passthepresent"),
		kong.Description("Run a pass-the-present party game: round timer, card deck and dice"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	app, err := cli.Globals.NewApp(os.Stdout, strings.HasPrefix(ctx.Command(), "play"))
	ctx.FatalIfErrorf(err)

	err = ctx.Run(app)
	if cerr := app.Close(); err == nil {
		err = cerr
	}
	ctx.FatalIfErrorf(err)
}
