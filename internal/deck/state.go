package deck

import (
	"errors"
	"fmt"
	"slices"
)

// State partitions the round's cards. A card id lives in at most one of
// Available, Drawn or a player's SavedCards; a saved card additionally stays
// listed in Drawn. CurrentCard always points at a card in Drawn.
type State struct {
	Available   []Card   `json:"available"`
	Drawn       []Card   `json:"drawn"`
	Players     []Player `json:"players"`
	CurrentCard *Card    `json:"currentCard,omitempty"`
}

// Empty returns a state with no cards and no players.
func Empty() State {
	return State{Available: []Card{}, Drawn: []Card{}, Players: []Player{}}
}

// Clone returns a copy that shares no pointers with s.
func (s State) Clone() State {
	out := State{
		Available: slices.Clone(s.Available),
		Drawn:     slices.Clone(s.Drawn),
	}
	if s.Players != nil {
		out.Players = make([]Player, len(s.Players))
		for i, p := range s.Players {
			out.Players[i] = Player{Name: p.Name, SavedCards: slices.Clone(p.SavedCards)}
		}
	}
	if s.CurrentCard != nil {
		c := *s.CurrentCard
		out.CurrentCard = &c
	}
	return out
}

func (s State) playerIndex(name string) int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.Name == name })
}

func indexOf(cards []Card, id string) int {
	return slices.IndexFunc(cards, func(c Card) bool { return c.ID == id })
}

func (s State) savedBy(id string) (string, bool) {
	for _, p := range s.Players {
		if indexOf(p.SavedCards, id) >= 0 {
			return p.Name, true
		}
	}
	return "", false
}

// Validate checks the partition invariants.
func (s State) Validate() error {
	var errs []error
	where := make(map[string]string)
	note := func(id, place string) {
		if prev, ok := where[id]; ok {
			errs = append(errs, fmt.Errorf("card %s in both %s and %s", id, prev, place))
			return
		}
		where[id] = place
	}

	for _, c := range s.Available {
		note(c.ID, "available")
	}
	for _, c := range s.Drawn {
		note(c.ID, "drawn")
	}

	names := make(map[string]bool)
	for _, p := range s.Players {
		if names[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate player %q", p.Name))
		}
		names[p.Name] = true
		for _, c := range p.SavedCards {
			if where[c.ID] == "available" {
				errs = append(errs, fmt.Errorf("saved card %s still available", c.ID))
			}
			if prev, ok := where["saved:"+c.ID]; ok {
				errs = append(errs, fmt.Errorf("card %s saved by %s and %s", c.ID, prev, p.Name))
			}
			where["saved:"+c.ID] = p.Name
		}
	}

	if s.CurrentCard != nil && indexOf(s.Drawn, s.CurrentCard.ID) < 0 {
		errs = append(errs, errors.New("current card is not in the drawn pile"))
	}
	return errors.Join(errs...)
}
