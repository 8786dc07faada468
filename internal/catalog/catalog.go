// Package catalog holds the static game content: every card and the dice
// rules for each rule mode. The built-in catalog is embedded; an alternative
// one can be loaded from a TOML file with the same layout.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/lox/passthepresent/internal/deck"
)

// DiceFaces is the number of faces on the game die.
const DiceFaces = 6

//go:embed catalog.toml
var embedded []byte

// Ruleset maps each die face to a rule key, per round.
type Ruleset struct {
	Description string   `toml:"description"`
	Round1      []string `toml:"round1"`
	Round2      []string `toml:"round2"`
	Round3      []string `toml:"round3"`
}

// Round returns the six rule keys for round, nil when round is out of range.
func (r Ruleset) Round(round int) []string {
	switch round {
	case 1:
		return r.Round1
	case 2:
		return r.Round2
	case 3:
		return r.Round3
	}
	return nil
}

// CardSet is the mode's cards grouped the way the setup screen lists them.
type CardSet struct {
	Mode   deck.Mode
	Round1 []deck.Card
	Round2 []deck.Card
	Round3 []deck.Card
	Chance []deck.Card
}

// Catalog is read-only after it is built.
type Catalog struct {
	Cards    []deck.Card        `toml:"cards"`
	Rulesets map[string]Ruleset `toml:"rulesets"`
}

var builtin = sync.OnceValues(func() (*Catalog, error) {
	return Parse(embedded)
})

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return builtin()
}

// Parse decodes and validates a TOML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode catalog: unknown keys %v", undecoded)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	var c Catalog
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks card ids, types and modes and that every ruleset has one
// rule per die face in each round.
func (c *Catalog) Validate() error {
	var errs []error

	seen := make(map[string]bool, len(c.Cards))
	for _, card := range c.Cards {
		switch {
		case card.ID == "":
			errs = append(errs, errors.New("card with empty id"))
			continue
		case seen[card.ID]:
			errs = append(errs, fmt.Errorf("duplicate card id %q", card.ID))
		}
		seen[card.ID] = true

		if card.Type != deck.TypeGame && card.Type != deck.TypeChance {
			errs = append(errs, fmt.Errorf("card %s: unknown type %q", card.ID, card.Type))
		}
		if len(card.Modes) == 0 {
			errs = append(errs, fmt.Errorf("card %s: no modes", card.ID))
		}
		for _, m := range card.Modes {
			if _, err := deck.ParseMode(string(m)); err != nil {
				errs = append(errs, fmt.Errorf("card %s: %w", card.ID, err))
			}
		}
	}

	if _, ok := c.Rulesets[string(deck.Traditional)]; !ok {
		errs = append(errs, errors.New("missing traditional ruleset"))
	}
	for name, rs := range c.Rulesets {
		if _, err := deck.ParseMode(name); err != nil {
			errs = append(errs, fmt.Errorf("ruleset: %w", err))
		}
		for round := 1; round <= 3; round++ {
			if n := len(rs.Round(round)); n != DiceFaces {
				errs = append(errs, fmt.Errorf("ruleset %s round %d: %d rules, want %d", name, round, n, DiceFaces))
			}
		}
	}
	return errors.Join(errs...)
}

// CardsForRound returns the mode's cards usable in round, including cards
// tagged for all rounds.
func (c *Catalog) CardsForRound(mode deck.Mode, round int) []deck.Card {
	var out []deck.Card
	for _, card := range c.Cards {
		if card.Round.Matches(round) && card.HasMode(mode) {
			out = append(out, card)
		}
	}
	return out
}

// AllCards returns every card in the mode.
func (c *Catalog) AllCards(mode deck.Mode) []deck.Card {
	var out []deck.Card
	for _, card := range c.Cards {
		if card.HasMode(mode) {
			out = append(out, card)
		}
	}
	return out
}

// CardSet groups the mode's cards by round, with chance cards listed apart.
func (c *Catalog) CardSet(mode deck.Mode) CardSet {
	set := CardSet{Mode: mode}
	for _, card := range c.AllCards(mode) {
		switch card.Round {
		case 1:
			set.Round1 = append(set.Round1, card)
		case 2:
			set.Round2 = append(set.Round2, card)
		case 3:
			set.Round3 = append(set.Round3, card)
		}
		if card.Type == deck.TypeChance {
			set.Chance = append(set.Chance, card)
		}
	}
	return set
}

// Card looks a card up by id.
func (c *Catalog) Card(id string) (deck.Card, bool) {
	i := slices.IndexFunc(c.Cards, func(card deck.Card) bool { return card.ID == id })
	if i < 0 {
		return deck.Card{}, false
	}
	return c.Cards[i], true
}

// Ruleset returns the mode's ruleset, falling back to traditional.
func (c *Catalog) Ruleset(mode deck.Mode) Ruleset {
	if rs, ok := c.Rulesets[string(mode)]; ok {
		return rs
	}
	return c.Rulesets[string(deck.Traditional)]
}

// DiceRules returns the rule key for each die face in round.
func (c *Catalog) DiceRules(mode deck.Mode, round int) []string {
	return slices.Clone(c.Ruleset(mode).Round(round))
}

// DiceRule returns the rule key for one die face.
func (c *Catalog) DiceRule(mode deck.Mode, round, value int) (string, error) {
	rules := c.Ruleset(mode).Round(round)
	if rules == nil {
		return "", fmt.Errorf("round %d out of range", round)
	}
	if value < 1 || value > len(rules) {
		return "", fmt.Errorf("die value %d out of range", value)
	}
	return rules[value-1], nil
}
