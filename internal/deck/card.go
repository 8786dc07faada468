package deck

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Type distinguishes round cards from chance cards.
type Type string

const (
	TypeGame   Type = "game"
	TypeChance Type = "chance"
)

// Mode is a ruleset variant. Cards list the modes they belong to.
type Mode string

const (
	Peaceful    Mode = "peaceful"
	Traditional Mode = "traditional"
	Chaos       Mode = "chaos"
	Adult       Mode = "adult"
)

// Modes lists every rule mode in menu order.
var Modes = []Mode{Peaceful, Traditional, Chaos, Adult}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !slices.Contains(Modes, m) {
		return "", fmt.Errorf("unknown rule mode %q", s)
	}
	return m, nil
}

// Round is the round a card belongs to; AllRounds matches every round.
type Round int

const AllRounds Round = 0

// Matches reports whether a card tagged r may be used in round.
func (r Round) Matches(round int) bool {
	return r == AllRounds || int(r) == round
}

func (r Round) String() string {
	if r == AllRounds {
		return "all"
	}
	return strconv.Itoa(int(r))
}

func (r Round) MarshalJSON() ([]byte, error) {
	if r == AllRounds {
		return []byte(`"all"`), nil
	}
	return []byte(strconv.Itoa(int(r))), nil
}

func (r *Round) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return r.set(raw)
}

// UnmarshalTOML accepts an integer round or the string "all".
func (r *Round) UnmarshalTOML(v any) error {
	return r.set(v)
}

func (r *Round) set(v any) error {
	var n int
	switch v := v.(type) {
	case string:
		if v == "all" {
			*r = AllRounds
			return nil
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid round %q", v)
		}
		n = parsed
	case float64:
		n = int(v)
	case int64:
		n = int(v)
	default:
		return fmt.Errorf("invalid round %v", v)
	}
	if n < 1 || n > 3 {
		return fmt.Errorf("round %d out of range", n)
	}
	*r = Round(n)
	return nil
}

// Card is immutable reference data once loaded from the catalog.
type Card struct {
	ID               string `json:"id" toml:"id"`
	Type             Type   `json:"type" toml:"type"`
	Round            Round  `json:"round" toml:"round"`
	Text             string `json:"text" toml:"text"`
	Icon             string `json:"icon,omitempty" toml:"icon"`
	Modes            []Mode `json:"mode" toml:"mode"`
	IsSaveCard       bool   `json:"isSaveCard,omitempty" toml:"save"`
	CanNullifyAction bool   `json:"canNullifyAction,omitempty" toml:"nullify"`
}

// HasMode reports whether the card is part of mode's deck.
func (c Card) HasMode(m Mode) bool {
	return slices.Contains(c.Modes, m)
}

// Player holds the cards a player has saved for later.
type Player struct {
	Name       string `json:"name"`
	SavedCards []Card `json:"savedCards"`
}
