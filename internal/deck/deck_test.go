package deck

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/passthepresent/internal/randutil"
)

func testCards(n int) []Card {
	cards := make([]Card, n)
	for i := range cards {
		cards[i] = Card{
			ID:    fmt.Sprintf("r1-%02d", i),
			Type:  TypeGame,
			Round: 1,
			Text:  fmt.Sprintf("card %d", i),
			Modes: []Mode{Traditional},
		}
	}
	return cards
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(randutil.New(42), zerolog.Nop())
}

func TestDrawExhaustsDeckWithoutRepeats(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	cards := testCards(12)
	e.InitializeDeck(cards)

	seen := make(map[string]bool)
	for range cards {
		c, ok := e.DrawCard()
		require.True(t, ok)
		assert.False(t, seen[c.ID], "card %s drawn twice", c.ID)
		seen[c.ID] = true

		s := e.Snapshot()
		require.NotNil(t, s.CurrentCard)
		assert.Equal(t, c.ID, s.CurrentCard.ID)
		assert.Equal(t, len(cards), len(s.Available)+len(s.Drawn))
	}
	assert.Len(t, seen, len(cards))

	before := e.Snapshot()
	_, ok := e.DrawCard()
	assert.False(t, ok)
	assert.Equal(t, before, e.Snapshot())
}

func TestInitializeDeckIsPermutation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	cards := testCards(20)
	e.InitializeDeck(cards)

	s := e.Snapshot()
	assert.ElementsMatch(t, cards, s.Available)
	assert.Empty(t, s.Drawn)
	assert.Nil(t, s.CurrentCard)
	assert.Equal(t, "r1-00", cards[0].ID, "input must not be reordered")
}

func TestInitializeDeckClearsPlayers(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	cards := testCards(3)
	e.InitializeDeck(cards)
	c, _ := e.DrawCard()
	require.True(t, e.SaveCard(c, "Anna"))

	e.InitializeDeck(cards)
	s := e.Snapshot()
	assert.Len(t, s.Available, 3)
	assert.Empty(t, s.Drawn)
	assert.NotNil(t, s.Players)
	assert.Empty(t, s.Players)
	assert.Empty(t, e.PlayerSavedCards("Anna"))
	require.NoError(t, s.Validate())
}

func TestReturnCard(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.InitializeDeck(testCards(4))
	c, ok := e.DrawCard()
	require.True(t, ok)

	assert.True(t, e.ReturnCard(c))
	s := e.Snapshot()
	assert.Nil(t, s.CurrentCard)
	assert.Empty(t, s.Drawn)
	assert.Len(t, s.Available, 4)
	assert.Equal(t, c, s.Available[len(s.Available)-1])
}

func TestReturnSaveCardIsNoop(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	cards := testCards(2)
	cards[0].IsSaveCard = true
	cards[1].IsSaveCard = true
	e.InitializeDeck(cards)
	c, _ := e.DrawCard()

	before := e.Snapshot()
	assert.False(t, e.ReturnCard(c))
	assert.Equal(t, before, e.Snapshot())
}

func TestReturnChecksTheDrawnCopy(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	cards := testCards(1)
	cards[0].IsSaveCard = true
	e.InitializeDeck(cards)
	c, ok := e.DrawCard()
	require.True(t, ok)

	stale := c
	stale.IsSaveCard = false
	assert.False(t, e.ReturnCard(stale))
	assert.Empty(t, e.Snapshot().Available)
}

func TestReturnUndrawnCardIsNoop(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.InitializeDeck(testCards(2))

	before := e.Snapshot()
	assert.False(t, e.ReturnCard(Card{ID: "stranger"}))
	assert.Equal(t, before, e.Snapshot())
}

func TestSaveCard(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.InitializeDeck(testCards(3))

	first, _ := e.DrawCard()
	require.True(t, e.SaveCard(first, "Anna"))

	s := e.Snapshot()
	require.Len(t, s.Players, 1)
	assert.Equal(t, "Anna", s.Players[0].Name)
	assert.Equal(t, []Card{first}, s.Players[0].SavedCards)
	assert.Nil(t, s.CurrentCard)
	assert.Contains(t, s.Drawn, first, "saved cards stay in the drawn pile")

	second, _ := e.DrawCard()
	require.True(t, e.SaveCard(second, "Anna"))
	assert.Equal(t, []Card{first, second}, e.PlayerSavedCards("Anna"))
	assert.Len(t, e.Snapshot().Players, 1)

	assert.False(t, e.SaveCard(first, "Bram"), "a card is saved at most once")
	assert.Empty(t, e.PlayerSavedCards("Bram"))
	require.NoError(t, e.Snapshot().Validate())
}

func TestSaveEarlierCardKeepsCurrent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.InitializeDeck(testCards(3))

	first, _ := e.DrawCard()
	second, _ := e.DrawCard()
	require.True(t, e.SaveCard(first, "Anna"))

	s := e.Snapshot()
	require.NotNil(t, s.CurrentCard)
	assert.Equal(t, second.ID, s.CurrentCard.ID)
	assert.Equal(t, []Card{first}, e.PlayerSavedCards("Anna"))
}

func TestUseSavedCard(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.InitializeDeck(testCards(2))
	c, _ := e.DrawCard()
	e.SaveCard(c, "Anna")

	assert.False(t, e.UseSavedCard("Bram", c.ID))
	assert.False(t, e.UseSavedCard("Anna", "missing"))
	assert.True(t, e.UseSavedCard("Anna", c.ID))
	assert.Empty(t, e.PlayerSavedCards("Anna"))
	assert.False(t, e.UseSavedCard("Anna", c.ID))
}

func TestAddPlayer(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	assert.True(t, e.AddPlayer("Anna"))
	assert.False(t, e.AddPlayer("Anna"))
	assert.Equal(t, []Player{{Name: "Anna", SavedCards: []Card{}}}, e.Snapshot().Players)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.InitializeDeck(testCards(2))
	c, _ := e.DrawCard()
	e.SaveCard(c, "Anna")

	s := e.Snapshot()
	s.Players[0].SavedCards[0].Text = "mutated"
	s.Available[0].Text = "mutated"
	assert.NotEqual(t, "mutated", e.Snapshot().Players[0].SavedCards[0].Text)
	assert.NotEqual(t, "mutated", e.Snapshot().Available[0].Text)
}

func TestRestoreAndJSON(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	cards := testCards(5)
	cards[4].Round = AllRounds
	e.InitializeDeck(cards)
	c, _ := e.DrawCard()
	e.SaveCard(c, "Anna")
	e.DrawCard()

	data, err := json.Marshal(e.Snapshot())
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored := newTestEngine(t)
	restored.Restore(decoded)
	assert.Equal(t, e.Snapshot(), restored.Snapshot())
}

func TestRestoreNormalisesNilSlices(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.Restore(State{})
	assert.Equal(t, Empty(), e.Snapshot())
}

func TestDrawRandom(t *testing.T) {
	t.Parallel()

	rng := randutil.New(7)
	_, rest, ok := DrawRandom(rng, nil)
	assert.False(t, ok)
	assert.Empty(t, rest)

	cards := testCards(3)
	picked, rest, ok := DrawRandom(rng, cards)
	require.True(t, ok)
	assert.Len(t, rest, 2)
	assert.NotContains(t, rest, picked)
	assert.Len(t, cards, 3)
}

func TestStateValidate(t *testing.T) {
	t.Parallel()

	a := Card{ID: "a"}
	b := Card{ID: "b"}

	assert.NoError(t, Empty().Validate())
	assert.NoError(t, State{Drawn: []Card{a}, CurrentCard: &a, Players: []Player{{Name: "x", SavedCards: []Card{a}}}}.Validate())

	assert.Error(t, State{Available: []Card{a}, Drawn: []Card{a}}.Validate())
	assert.Error(t, State{Available: []Card{a}, Players: []Player{{Name: "x", SavedCards: []Card{a}}}}.Validate())
	assert.Error(t, State{Drawn: []Card{a}, Players: []Player{{Name: "x", SavedCards: []Card{a}}, {Name: "y", SavedCards: []Card{a}}}}.Validate())
	assert.Error(t, State{Players: []Player{{Name: "x"}, {Name: "x"}}}.Validate())
	assert.Error(t, State{Drawn: []Card{a}, CurrentCard: &b}.Validate())
}

func TestRoundEncoding(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal([]Round{AllRounds, 2})
	require.NoError(t, err)
	assert.JSONEq(t, `["all", 2]`, string(data))

	var rounds []Round
	require.NoError(t, json.Unmarshal([]byte(`["all", 3, "1"]`), &rounds))
	assert.Equal(t, []Round{AllRounds, 3, 1}, rounds)

	assert.Error(t, json.Unmarshal([]byte(`[4]`), &rounds))
	assert.Error(t, json.Unmarshal([]byte(`["some"]`), &rounds))

	assert.True(t, AllRounds.Matches(2))
	assert.True(t, Round(2).Matches(2))
	assert.False(t, Round(2).Matches(3))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("chaos")
	require.NoError(t, err)
	assert.Equal(t, Chaos, m)

	_, err = ParseMode("wild")
	assert.Error(t, err)
}
