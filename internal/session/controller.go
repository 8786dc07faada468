// Package session is the game's aggregate root. A Controller owns one timer
// engine and one deck engine, mirrors their state into a GameState, records
// the game history and writes the result to storage after every change.
//
// Data flows one way. While restoring, the timer engine is the source of
// truth for the timer sub-state: the controller restores the engine, copies
// its snapshot once and only then subscribes to it. From then on timer
// changes travel engine -> controller -> storage and nothing writes timer
// state back into the engine except Restore.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lox/passthepresent/internal/audio"
	"github.com/lox/passthepresent/internal/catalog"
	"github.com/lox/passthepresent/internal/deck"
	"github.com/lox/passthepresent/internal/dice"
	"github.com/lox/passthepresent/internal/randutil"
	"github.com/lox/passthepresent/internal/storage"
	"github.com/lox/passthepresent/internal/timer"
)

const persistTimeout = 5 * time.Second

// Deps are the collaborators of a Controller. Nil fields get defaults: an
// in-memory store, the embedded catalog, the real clock, a randomly seeded
// generator and a silent audio manager.
type Deps struct {
	Store   storage.Store
	Catalog *catalog.Catalog
	Clock   quartz.Clock
	Rand    *rand.Rand
	Audio   *audio.Manager
	Logger  zerolog.Logger
}

// Overrides customise a new game. Zero fields keep the defaults.
type Overrides struct {
	RuleMode     deck.Mode
	Rounds       map[int]RoundSettingsPatch
	AudioEnabled *bool
	Players      []string
}

// Controller coordinates one game.
type Controller struct {
	store   storage.Store
	catalog *catalog.Catalog
	clock   quartz.Clock
	rng     *rand.Rand
	audio   *audio.Manager
	logger  zerolog.Logger

	timer *timer.Engine
	deck  *deck.Engine

	attach     sync.Once
	attached   atomic.Bool
	unsubTimer func()

	// mu guards the aggregate. It is never held while calling into the
	// timer engine, whose listeners call back into the controller.
	mu            sync.Mutex
	state         GameState
	revision      uint64
	timerRevision uint64

	pmu       sync.Mutex
	published uint64
	listeners map[int]func(GameState)
	nextID    int
}

// New builds a controller holding the default game state.
func New(d Deps) (*Controller, error) {
	if d.Store == nil {
		d.Store = storage.NewMemory()
	}
	if d.Catalog == nil {
		c, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		d.Catalog = c
	}
	if d.Clock == nil {
		d.Clock = quartz.NewReal()
	}
	if d.Rand == nil {
		d.Rand = randutil.New(randutil.NewSeed())
	}
	if d.Audio == nil {
		d.Audio = audio.NewManager(audio.Discard{}, d.Logger)
	}

	return &Controller{
		store:     d.Store,
		catalog:   d.Catalog,
		clock:     d.Clock,
		rng:       d.Rand,
		audio:     d.Audio,
		logger:    d.Logger.With().Str("component", "session").Logger(),
		timer:     timer.New(d.Clock, d.Logger),
		deck:      deck.New(d.Rand, d.Logger),
		state:     Default(),
		listeners: make(map[int]func(GameState)),
	}, nil
}

// Snapshot returns a copy of the game state.
func (c *Controller) Snapshot() GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Timer returns the live timer state, which may be a tick ahead of the
// mirrored copy in Snapshot.
func (c *Controller) Timer() timer.State {
	return c.timer.Snapshot()
}

// Catalog returns the card and ruleset catalog in use.
func (c *Controller) Catalog() *catalog.Catalog {
	return c.catalog
}

// Subscribe registers fn for every published game state and returns a
// function that removes it.
func (c *Controller) Subscribe(fn func(GameState)) func() {
	c.pmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.pmu.Unlock()

	return func() {
		c.pmu.Lock()
		delete(c.listeners, id)
		c.pmu.Unlock()
	}
}

// Restore loads the saved game. It reports false, leaving the defaults in
// place, when nothing was saved or the saved state fails validation.
func (c *Controller) Restore() bool {
	defer c.attachTimer()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if v, err := storage.Version(ctx, c.store); err != nil {
		c.logger.Warn().Err(err).Msg("failed to read state version")
	} else if v != 0 && v != storage.CurrentVersion {
		c.logger.Warn().
			Int("version", v).
			Int("current", storage.CurrentVersion).
			Msg("state version mismatch, loading without migration")
	}

	raw, err := c.store.Get(ctx, storage.Key(storage.KeyGameState))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.logger.Debug().Msg("no saved game")
		return false
	case err != nil:
		c.logger.Error().Err(err).Msg("failed to read saved game")
		return false
	}

	saved, err := DecodeState(raw)
	if err != nil {
		c.logger.Warn().Err(err).Msg("discarding invalid saved game")
		return false
	}
	wasRunning := saved.Timer.IsRunning && !saved.Timer.IsPaused
	// A controller that is already listening has mirrored the restore into
	// the old state and written it, so the restored state must be written too.
	writeBack := c.attached.Load()

	c.timer.RestoreFromPersisted(saved.Timer)

	c.mu.Lock()
	c.deck.Restore(saved.CardDeck)
	c.timerRevision = c.timer.Revision()
	saved.Timer = c.timer.Snapshot()
	saved.CardDeck = c.deck.Snapshot()
	if saved.GameHistory == nil {
		saved.GameHistory = []GameEvent{}
	}
	if saved.Players == nil {
		saved.Players = []deck.Player{}
	}
	c.state = saved
	if wasRunning && saved.Timer.Status() == timer.Expired {
		c.recordLocked(EventRoundOver, map[string]any{"round": saved.Timer.Round, "restored": true})
	}
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.audio.SetEnabled(snap.AudioEnabled)
	c.logger.Info().
		Str("session", snap.SessionID).
		Int("round", snap.CurrentRound).
		Str("status", string(snap.RoundStatus)).
		Msg("restored saved game")
	c.deliver(rev, snap, writeBack)
	return true
}

// Persist writes the current state.
func (c *Controller) Persist() {
	c.mu.Lock()
	rev, snap := c.commitLocked()
	c.mu.Unlock()
	c.deliver(rev, snap, true)
}

// InitializeGame starts a new game from the defaults merged with o. The
// round status becomes explanation.
func (c *Controller) InitializeGame(o Overrides) error {
	next := Default()
	if o.RuleMode != "" {
		if _, err := deck.ParseMode(string(o.RuleMode)); err != nil {
			return err
		}
		next.RuleMode = o.RuleMode
	}
	for round, patch := range o.Rounds {
		if round < 1 || round > 3 {
			return fmt.Errorf("%w: %d", timer.ErrInvalidRound, round)
		}
		rs := patch.apply(next.RoundSettings.Get(round))
		if rs.TimeLimit < 0 {
			return fmt.Errorf("round %d: time limit must not be negative", round)
		}
		next.RoundSettings = next.RoundSettings.with(round, rs)
	}
	if o.AudioEnabled != nil {
		next.AudioEnabled = *o.AudioEnabled
	}
	next.SessionID = newSessionID()
	next.RoundStatus = StatusExplanation

	c.attachTimer()
	c.timer.Reset()

	c.mu.Lock()
	c.deck.Restore(deck.Empty())
	next.Timer = c.timer.Snapshot()
	c.state = next
	c.recordLocked(EventGameInitialized, map[string]any{
		"sessionId": next.SessionID,
		"ruleMode":  next.RuleMode,
	})
	for _, name := range o.Players {
		c.addPlayerLocked(name)
	}
	c.mirrorDeckLocked()
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.audio.SetEnabled(snap.AudioEnabled)
	c.logger.Info().Str("session", snap.SessionID).Str("mode", string(snap.RuleMode)).Msg("game initialised")
	c.deliver(rev, snap, true)
	return nil
}

// UpdateRound moves to round and resets the status to explanation.
func (c *Controller) UpdateRound(round int) error {
	if round < 1 || round > 3 {
		return fmt.Errorf("%w: %d", timer.ErrInvalidRound, round)
	}
	c.mutate(func(s *GameState) {
		s.CurrentRound = round
		s.RoundStatus = StatusExplanation
		c.recordLocked(EventRoundChanged, map[string]any{"round": round})
	})
	return nil
}

// UpdateRoundStatus assigns status without checking the transition. Use
// TransitionRoundStatus to enforce the game flow.
func (c *Controller) UpdateRoundStatus(status RoundStatus) error {
	if _, err := ParseRoundStatus(string(status)); err != nil {
		return err
	}
	c.mutate(func(s *GameState) { s.RoundStatus = status })
	return nil
}

// TransitionRoundStatus assigns status if the flow allows it.
func (c *Controller) TransitionRoundStatus(status RoundStatus) error {
	c.mu.Lock()
	if err := ValidateTransition(c.state.RoundStatus, status); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state.RoundStatus = status
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.deliver(rev, snap, true)
	return nil
}

// SetRuleMode selects the ruleset used for the next round.
func (c *Controller) SetRuleMode(mode deck.Mode) error {
	if _, err := deck.ParseMode(string(mode)); err != nil {
		return err
	}
	c.mutate(func(s *GameState) { s.RuleMode = mode })
	return nil
}

// UpdateRoundSettings merges patch into one round's settings.
func (c *Controller) UpdateRoundSettings(round int, patch RoundSettingsPatch) error {
	if round < 1 || round > 3 {
		return fmt.Errorf("%w: %d", timer.ErrInvalidRound, round)
	}
	if patch.TimeLimit != nil && *patch.TimeLimit < 0 {
		return fmt.Errorf("round %d: time limit must not be negative", round)
	}
	c.mutate(func(s *GameState) {
		s.RoundSettings = s.RoundSettings.with(round, patch.apply(s.RoundSettings.Get(round)))
	})
	return nil
}

// SetAudioEnabled mirrors the audio setting into the game and the audio
// manager.
func (c *Controller) SetAudioEnabled(enabled bool) {
	c.audio.SetEnabled(enabled)
	c.mutate(func(s *GameState) { s.AudioEnabled = enabled })
}

// AddPlayer adds name to the roster. Adding an existing name is a no-op.
func (c *Controller) AddPlayer(name string) bool {
	c.mu.Lock()
	added := c.addPlayerLocked(name)
	if !added {
		c.mu.Unlock()
		return false
	}
	c.mirrorDeckLocked()
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.deliver(rev, snap, true)
	return true
}

// AddGameEvent appends an event to the history. data must encode as JSON.
func (c *Controller) AddGameEvent(eventType string, data any) error {
	raw, err := encodeEventData(data)
	if err != nil {
		return err
	}
	c.mutate(func(s *GameState) {
		s.GameHistory = append(s.GameHistory, GameEvent{
			Type:      eventType,
			Timestamp: c.now(),
			Data:      raw,
		})
	})
	return nil
}

// Reset discards the game and returns to the defaults.
func (c *Controller) Reset() {
	c.attachTimer()
	c.timer.Reset()

	c.mu.Lock()
	c.deck.Restore(deck.Empty())
	c.state = Default()
	c.state.Timer = c.timer.Snapshot()
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.logger.Info().Msg("game reset")
	c.deliver(rev, snap, true)
}

// StartRound deals the deck for the current round and rule mode and starts
// the countdown when the round has a time limit. The status becomes playing.
func (c *Controller) StartRound() error {
	c.attachTimer()

	c.mu.Lock()
	round, mode := c.state.CurrentRound, c.state.RuleMode
	cards := c.catalog.CardsForRound(mode, round)
	c.deck.InitializeDeck(cards)
	c.mirrorDeckLocked()
	seconds := c.state.RoundSettings.Get(round).Seconds()
	c.state.RoundStatus = StatusPlaying
	c.recordLocked(EventRoundStarted, map[string]any{
		"round":     round,
		"mode":      mode,
		"cards":     len(cards),
		"timeLimit": seconds,
	})
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.logger.Info().Int("round", round).Str("mode", string(mode)).Int("cards", len(cards)).Msg("round started")
	c.deliver(rev, snap, true)

	if seconds > 0 {
		return c.timer.Start(seconds, round)
	}
	c.timer.Reset()
	return nil
}

// StartTimer starts a countdown of totalSeconds for the current round.
func (c *Controller) StartTimer(totalSeconds int) error {
	c.attachTimer()
	c.mu.Lock()
	round := c.state.CurrentRound
	c.mu.Unlock()
	return c.timer.Start(totalSeconds, round)
}

// PauseTimer pauses a running countdown. A playing round becomes paused.
func (c *Controller) PauseTimer() bool {
	c.attachTimer()
	if !c.timer.Pause() {
		return false
	}
	c.mutate(func(s *GameState) {
		if s.RoundStatus == StatusPlaying {
			s.RoundStatus = StatusPaused
		}
	})
	return true
}

// ResumeTimer resumes a paused countdown. A paused round becomes playing.
func (c *Controller) ResumeTimer() bool {
	c.attachTimer()
	if !c.timer.Resume() {
		return false
	}
	c.mutate(func(s *GameState) {
		if s.RoundStatus == StatusPaused {
			s.RoundStatus = StatusPlaying
		}
	})
	return true
}

// ResetTimer stops and clears the countdown.
func (c *Controller) ResetTimer() {
	c.attachTimer()
	c.timer.Reset()
}

// DrawCard draws a random card. It reports false when the deck is empty.
func (c *Controller) DrawCard() (deck.Card, bool) {
	c.mu.Lock()
	card, ok := c.deck.DrawCard()
	if !ok {
		c.mu.Unlock()
		return deck.Card{}, false
	}
	c.mirrorDeckLocked()
	c.recordLocked(EventCardDrawn, map[string]any{"card": card.ID})
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.deliver(rev, snap, true)
	return card, true
}

// ReturnCard puts a drawn card back. Save cards stay out of the deck.
func (c *Controller) ReturnCard(card deck.Card) bool {
	return c.deckOp(func() (bool, string, map[string]any) {
		return c.deck.ReturnCard(card), EventCardReturned, map[string]any{"card": card.ID}
	})
}

// SaveCard gives card to player, adding the player if needed.
func (c *Controller) SaveCard(card deck.Card, player string) bool {
	return c.deckOp(func() (bool, string, map[string]any) {
		return c.deck.SaveCard(card, player), EventCardSaved, map[string]any{"card": card.ID, "player": player}
	})
}

// UseSavedCard spends one of the player's saved cards.
func (c *Controller) UseSavedCard(player, cardID string) bool {
	return c.deckOp(func() (bool, string, map[string]any) {
		return c.deck.UseSavedCard(player, cardID), EventCardUsed, map[string]any{"card": cardID, "player": player}
	})
}

// PlayerSavedCards returns the cards player is holding.
func (c *Controller) PlayerSavedCards(player string) []deck.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deck.PlayerSavedCards(player)
}

// ClearCurrentCard drops the face-up card.
func (c *Controller) ClearCurrentCard() {
	c.mu.Lock()
	c.deck.ClearCurrentCard()
	c.mirrorDeckLocked()
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.deliver(rev, snap, true)
}

// RollDice rolls the die and resolves the rule for the current round and
// rule mode.
func (c *Controller) RollDice() (dice.Result, error) {
	c.mu.Lock()
	res, err := dice.RollFor(c.rng, c.catalog, c.state.RuleMode, c.state.CurrentRound)
	if err != nil {
		c.mu.Unlock()
		return dice.Result{}, err
	}
	c.recordLocked(EventDiceRolled, res)
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.deliver(rev, snap, true)
	return res, nil
}

// Close stops the countdown, detaches from the timer and closes the store.
func (c *Controller) Close() error {
	c.attach.Do(func() {})
	if c.unsubTimer != nil {
		c.unsubTimer()
	}
	c.timer.Close()
	return c.store.Close()
}

func (c *Controller) attachTimer() {
	c.attach.Do(func() {
		c.unsubTimer = c.timer.Subscribe(c.onTimerChange)
		c.attached.Store(true)
	})
}

// onTimerChange mirrors a timer change into the aggregate and dispatches
// warnings. Each tick evaluates at most one warning.
func (c *Controller) onTimerChange(ch timer.Change) {
	c.mu.Lock()
	if ch.Revision <= c.timerRevision {
		c.mu.Unlock()
		return
	}
	c.timerRevision = ch.Revision
	c.state.Timer = ch.State

	var (
		warning timer.Warning
		warn    bool
	)
	if ch.Cause == timer.CauseTick && !ch.Expired {
		warning, warn = timer.NextWarning(ch.State.TimeRemaining, ch.State.TotalTime, ch.State.WarningsShown)
	}
	if ch.Expired {
		if c.state.RoundStatus == StatusPlaying || c.state.RoundStatus == StatusPaused {
			c.state.RoundStatus = StatusFinished
		}
		c.recordLocked(EventRoundOver, map[string]any{"round": ch.State.Round})
	}
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.deliver(rev, snap, true)

	if warn {
		c.dispatchWarning(warning, ch.State.TimeRemaining)
	}
	if ch.Expired {
		c.logger.Info().Int("round", ch.State.Round).Msg("round over")
		c.audio.TriggerRoundEnd()
	}
}

func (c *Controller) dispatchWarning(w timer.Warning, remaining int) {
	c.logger.Info().Str("warning", string(w)).Int("remaining", remaining).Msg("timer warning")
	c.audio.TriggerWarning()
	c.timer.MarkWarningShown(w)

	c.mutate(func(*GameState) {
		c.recordLocked(EventTimerWarning, map[string]any{"warning": w, "timeRemaining": remaining})
	})
}

// mutate applies fn under the lock and publishes the result.
func (c *Controller) mutate(fn func(*GameState)) {
	c.mu.Lock()
	fn(&c.state)
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.deliver(rev, snap, true)
}

func (c *Controller) deckOp(op func() (bool, string, map[string]any)) bool {
	c.mu.Lock()
	changed, eventType, data := op()
	if !changed {
		c.mu.Unlock()
		return false
	}
	c.mirrorDeckLocked()
	c.recordLocked(eventType, data)
	rev, snap := c.commitLocked()
	c.mu.Unlock()

	c.deliver(rev, snap, true)
	return true
}

func (c *Controller) addPlayerLocked(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if _, ok := c.state.Player(name); ok {
		return false
	}
	c.deck.AddPlayer(name)
	c.state.Players = append(clonePlayers(c.state.Players), deck.Player{Name: name, SavedCards: []deck.Card{}})
	c.recordLocked(EventPlayerAdded, map[string]any{"player": name})
	return true
}

// mirrorDeckLocked copies the deck snapshot into the aggregate and keeps
// the roster's saved cards in step with the deck. Roster players the deck no
// longer knows hold no cards.
func (c *Controller) mirrorDeckLocked() {
	d := c.deck.Snapshot()
	c.state.CardDeck = d

	players := clonePlayers(c.state.Players)
	if players == nil {
		players = []deck.Player{}
	}
	for i := range players {
		players[i].SavedCards = []deck.Card{}
	}
	for _, dp := range d.Players {
		i := slices.IndexFunc(players, func(p deck.Player) bool { return p.Name == dp.Name })
		if i < 0 {
			players = append(players, deck.Player{Name: dp.Name, SavedCards: slices.Clone(dp.SavedCards)})
			continue
		}
		players[i].SavedCards = slices.Clone(dp.SavedCards)
	}
	c.state.Players = players
}

func (c *Controller) recordLocked(eventType string, data any) {
	raw, err := encodeEventData(data)
	if err != nil {
		c.logger.Error().Err(err).Str("event", eventType).Msg("failed to encode event data")
	}
	c.state.GameHistory = append(c.state.GameHistory, GameEvent{
		Type:      eventType,
		Timestamp: c.now(),
		Data:      raw,
	})
}

func (c *Controller) commitLocked() (uint64, GameState) {
	c.revision++
	return c.revision, c.state.clone()
}

// deliver writes and broadcasts a committed state. Deliveries that arrive
// after a newer revision has gone out are dropped so storage never moves
// backwards.
func (c *Controller) deliver(rev uint64, s GameState, persist bool) {
	c.pmu.Lock()
	if rev <= c.published {
		c.pmu.Unlock()
		return
	}
	c.published = rev
	if persist {
		c.save(s)
	}
	listeners := make([]func(GameState), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.pmu.Unlock()

	for _, l := range listeners {
		l(s)
	}
}

func (c *Controller) save(s GameState) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := storage.SaveVersioned(ctx, c.store, storage.KeyGameState, s); err != nil {
		c.logger.Error().Err(err).Msg("failed to persist game state")
	}
}

func (c *Controller) now() time.Time {
	return c.clock.Now("session", "event").UTC()
}

func encodeEventData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode event data: %w", err)
	}
	return raw, nil
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
