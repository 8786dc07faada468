// Package dice rolls the game die and looks up what the roll means.
package dice

import (
	"math/rand/v2"

	"github.com/lox/passthepresent/internal/catalog"
	"github.com/lox/passthepresent/internal/deck"
)

// Value is a die face, 1 through 6.
type Value int

// Roll returns a uniform die face.
func Roll(rng *rand.Rand) Value {
	return Value(rng.IntN(catalog.DiceFaces) + 1)
}

// Result is a roll together with the rule key it selects.
type Result struct {
	Value Value  `json:"value"`
	Rule  string `json:"rule"`
}

// Rule returns the rule key for value in the mode's ruleset for round.
func Rule(c *catalog.Catalog, mode deck.Mode, round int, value Value) (string, error) {
	return c.DiceRule(mode, round, int(value))
}

// RollFor rolls and resolves the rule in one step.
func RollFor(rng *rand.Rand, c *catalog.Catalog, mode deck.Mode, round int) (Result, error) {
	v := Roll(rng)
	rule, err := Rule(c, mode, round, v)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: v, Rule: rule}, nil
}
