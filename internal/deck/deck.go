// Package deck holds the per-round card piles: the shuffled available pile,
// the drawn pile, the face-up current card and each player's saved cards.
package deck

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lox/passthepresent/internal/randutil"
)

// Shuffle returns a uniformly shuffled copy of cards.
func Shuffle(rng *rand.Rand, cards []Card) []Card {
	return randutil.Shuffle(rng, cards)
}

// DrawRandom picks one card uniformly and returns it with the remainder.
// The input slice is not modified.
func DrawRandom(rng *rand.Rand, cards []Card) (Card, []Card, bool) {
	if len(cards) == 0 {
		return Card{}, cards, false
	}
	i := rng.IntN(len(cards))
	rest := make([]Card, 0, len(cards)-1)
	rest = append(rest, cards[:i]...)
	rest = append(rest, cards[i+1:]...)
	return cards[i], rest, true
}

// Engine serialises every deck operation behind one lock.
type Engine struct {
	rng    *rand.Rand
	logger zerolog.Logger

	mu    sync.Mutex
	state State
}

// New returns an engine with an empty deck.
func New(rng *rand.Rand, logger zerolog.Logger) *Engine {
	return &Engine{
		rng:    rng,
		logger: logger.With().Str("component", "deck").Logger(),
		state:  Empty(),
	}
}

// InitializeDeck discards the previous piles and players and shuffles cards
// into the available pile.
func (e *Engine) InitializeDeck(cards []Card) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Available = Shuffle(e.rng, cards)
	e.state.Drawn = []Card{}
	e.state.Players = []Player{}
	e.state.CurrentCard = nil
	e.logger.Debug().Int("cards", len(cards)).Msg("deck initialised")
}

// DrawCard moves a random available card to the drawn pile and makes it
// current. It reports false when the available pile is empty.
func (e *Engine) DrawCard() (Card, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	card, rest, ok := DrawRandom(e.rng, e.state.Available)
	if !ok {
		return Card{}, false
	}
	e.state.Available = rest
	e.state.Drawn = append(e.state.Drawn, card)
	current := card
	e.state.CurrentCard = &current
	return card, true
}

// ReturnCard puts a drawn card back in the available pile. Save cards and
// cards that are not in the drawn pile or are held by a player are left
// where they are. It reports whether the card moved.
func (e *Engine) ReturnCard(card Card) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := indexOf(e.state.Drawn, card.ID)
	if i < 0 {
		e.logger.Debug().Str("card", card.ID).Msg("return of undrawn card ignored")
		return false
	}
	returned := e.state.Drawn[i]
	if returned.IsSaveCard {
		return false
	}
	if _, saved := e.state.savedBy(card.ID); saved {
		return false
	}
	e.state.Drawn = slices.Delete(slices.Clone(e.state.Drawn), i, i+1)
	e.state.Available = append(e.state.Available, returned)
	if e.state.CurrentCard != nil && e.state.CurrentCard.ID == card.ID {
		e.state.CurrentCard = nil
	}
	return true
}

// SaveCard hands card to player, creating the player on first use. The card
// stays in the drawn pile and stops being current if it was. A card already
// saved by someone is not saved again.
func (e *Engine) SaveCard(card Card, playerName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if owner, ok := e.state.savedBy(card.ID); ok {
		e.logger.Debug().Str("card", card.ID).Str("owner", owner).Msg("card already saved")
		return false
	}

	players := e.state.Clone().Players
	if players == nil {
		players = []Player{}
	}
	if i := e.state.playerIndex(playerName); i >= 0 {
		players[i].SavedCards = append(players[i].SavedCards, card)
	} else {
		players = append(players, Player{Name: playerName, SavedCards: []Card{card}})
	}
	e.state.Players = players
	if e.state.CurrentCard != nil && e.state.CurrentCard.ID == card.ID {
		e.state.CurrentCard = nil
	}
	return true
}

// UseSavedCard removes a saved card from the player. It reports whether the
// card was found.
func (e *Engine) UseSavedCard(playerName, cardID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	pi := e.state.playerIndex(playerName)
	if pi < 0 {
		return false
	}
	ci := indexOf(e.state.Players[pi].SavedCards, cardID)
	if ci < 0 {
		return false
	}
	players := e.state.Clone().Players
	players[pi].SavedCards = slices.Delete(players[pi].SavedCards, ci, ci+1)
	e.state.Players = players
	return true
}

// AddPlayer registers a player with no saved cards. Existing players are
// left alone.
func (e *Engine) AddPlayer(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.playerIndex(name) >= 0 {
		return false
	}
	e.state.Players = append(slices.Clone(e.state.Players), Player{Name: name, SavedCards: []Card{}})
	return true
}

// PlayerSavedCards returns a copy of the player's saved cards, empty for an
// unknown player.
func (e *Engine) PlayerSavedCards(playerName string) []Card {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.state.playerIndex(playerName); i >= 0 {
		return slices.Clone(e.state.Players[i].SavedCards)
	}
	return []Card{}
}

// ClearCurrentCard drops the face-up card without moving it.
func (e *Engine) ClearCurrentCard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.CurrentCard = nil
}

// Snapshot returns a deep copy of the piles.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Restore replaces the piles with a persisted state.
func (e *Engine) Restore(s State) {
	next := s.Clone()
	if next.Available == nil {
		next.Available = []Card{}
	}
	if next.Drawn == nil {
		next.Drawn = []Card{}
	}
	if next.Players == nil {
		next.Players = []Player{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = next
}
