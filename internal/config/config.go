// Package config loads the optional HCL configuration file and applies
// PASSTHEPRESENT_* environment overrides on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"

	"github.com/lox/passthepresent/internal/deck"
	"github.com/lox/passthepresent/internal/i18n"
	"github.com/lox/passthepresent/internal/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PASSTHEPRESENT_"

// Audio sinks.
const (
	AudioBell = "bell"
	AudioNone = "none"
)

// Config is the complete configuration. Missing blocks are filled from
// Default after decoding.
type Config struct {
	Storage *StorageConfig `hcl:"storage,block"`
	Game    *GameConfig    `hcl:"game,block"`
	Log     *LogConfig     `hcl:"log,block"`
	Rounds  []RoundConfig  `hcl:"round,block"`
}

// StorageConfig selects where state is kept.
type StorageConfig struct {
	Backend string `hcl:"backend,optional"`
	Dir     string `hcl:"dir,optional"`
}

// GameConfig sets the defaults for a new game.
type GameConfig struct {
	RuleMode string `hcl:"rule_mode,optional"`
	Language string `hcl:"language,optional"`
	Catalog  string `hcl:"catalog,optional"`
	Audio    string `hcl:"audio,optional"`
	Seed     int64  `hcl:"seed,optional"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `hcl:"level,optional"`
	File  string `hcl:"file,optional"`
	JSON  bool   `hcl:"json,optional"`
}

// RoundConfig overrides one round's time limit.
type RoundConfig struct {
	Round     string `hcl:"round,label"`
	TimeLimit int    `hcl:"time_limit,optional"`
	Enabled   *bool  `hcl:"enabled,optional"`
}

// Number returns the round number, 0 if the label is not a number.
func (r RoundConfig) Number() int {
	n, err := strconv.Atoi(r.Round)
	if err != nil {
		return 0
	}
	return n
}

type envOverrides struct {
	Backend  string `env:"STORAGE"`
	StateDir string `env:"STATE_DIR"`
	RuleMode string `env:"RULE_MODE"`
	Language string `env:"LANGUAGE"`
	Catalog  string `env:"CATALOG"`
	Audio    string `env:"AUDIO"`
	Seed     int64  `env:"SEED"`
	LogLevel string `env:"LOG_LEVEL"`
	LogFile  string `env:"LOG_FILE"`
	LogJSON  *bool  `env:"LOG_JSON"`
}

// DefaultStateDir is the directory used when none is configured.
func DefaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "passthepresent")
	}
	return ".passthepresent"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: &StorageConfig{
			Backend: storage.BackendFile,
			Dir:     DefaultStateDir(),
		},
		Game: &GameConfig{
			RuleMode: string(deck.Traditional),
			Language: string(i18n.Default),
			Audio:    AudioBell,
		},
		Log: &LogConfig{
			Level: "info",
			File:  "passthepresent.log",
		},
	}
}

// Load reads filename, falling back to Default when it does not exist, and
// applies environment overrides.
func Load(filename string) (*Config, error) {
	cfg, err := LoadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads filename without looking at the environment.
func LoadFile(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Storage == nil {
		c.Storage = def.Storage
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = def.Storage.Dir
	}

	if c.Game == nil {
		c.Game = def.Game
	}
	if c.Game.RuleMode == "" {
		c.Game.RuleMode = def.Game.RuleMode
	}
	if c.Game.Language == "" {
		c.Game.Language = def.Game.Language
	}
	if c.Game.Audio == "" {
		c.Game.Audio = def.Game.Audio
	}

	if c.Log == nil {
		c.Log = def.Log
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.File == "" {
		c.Log.File = def.Log.File
	}
}

// ApplyEnv overrides fields from PASSTHEPRESENT_* variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(env.Options{Prefix: EnvPrefix})
}

func (c *Config) applyEnv(opts env.Options) error {
	var e envOverrides
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c.applyDefaults()

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Storage.Backend, e.Backend)
	set(&c.Storage.Dir, e.StateDir)
	set(&c.Game.RuleMode, e.RuleMode)
	set(&c.Game.Language, e.Language)
	set(&c.Game.Catalog, e.Catalog)
	set(&c.Game.Audio, e.Audio)
	set(&c.Log.Level, e.LogLevel)
	set(&c.Log.File, e.LogFile)
	if e.Seed != 0 {
		c.Game.Seed = e.Seed
	}
	if e.LogJSON != nil {
		c.Log.JSON = *e.LogJSON
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	c.applyDefaults()

	switch c.Storage.Backend {
	case storage.BackendFile, storage.BackendSQLite, storage.BackendMemory:
	default:
		return fmt.Errorf("invalid storage backend: %s", c.Storage.Backend)
	}

	if _, err := deck.ParseMode(c.Game.RuleMode); err != nil {
		return err
	}
	if _, ok := i18n.Parse(c.Game.Language); !ok {
		return fmt.Errorf("unsupported language: %s", c.Game.Language)
	}
	if c.Game.Audio != AudioBell && c.Game.Audio != AudioNone {
		return fmt.Errorf("invalid audio sink: %s", c.Game.Audio)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	seen := make(map[int]bool)
	for _, r := range c.Rounds {
		n := r.Number()
		if n < 1 || n > 3 {
			return fmt.Errorf("round %q: must be 1, 2 or 3", r.Round)
		}
		if seen[n] {
			return fmt.Errorf("round %d configured twice", n)
		}
		seen[n] = true
		if r.TimeLimit < 0 {
			return fmt.Errorf("round %d: time limit must not be negative", n)
		}
	}
	return nil
}

// RoundOverride returns the configured override for round n.
func (c *Config) RoundOverride(n int) (RoundConfig, bool) {
	for _, r := range c.Rounds {
		if r.Number() == n {
			return r, true
		}
	}
	return RoundConfig{}, false
}
