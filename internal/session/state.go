package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lox/passthepresent/internal/deck"
	"github.com/lox/passthepresent/internal/timer"
)

// RoundStatus is the phase of the current round.
type RoundStatus string

const (
	StatusSetup       RoundStatus = "setup"
	StatusExplanation RoundStatus = "explanation"
	StatusCountdown   RoundStatus = "countdown"
	StatusPlaying     RoundStatus = "playing"
	StatusPaused      RoundStatus = "paused"
	StatusFinished    RoundStatus = "finished"
)

// Statuses lists every round status in game order.
var Statuses = []RoundStatus{
	StatusSetup, StatusExplanation, StatusCountdown, StatusPlaying, StatusPaused, StatusFinished,
}

// ParseRoundStatus validates a status name.
func ParseRoundStatus(s string) (RoundStatus, error) {
	st := RoundStatus(s)
	if !slices.Contains(Statuses, st) {
		return "", fmt.Errorf("unknown round status %q", s)
	}
	return st, nil
}

// RoundSettings is one round's time limit. A zero limit means no limit.
type RoundSettings struct {
	TimeLimit        int  `json:"timeLimit"`
	TimeLimitEnabled bool `json:"timeLimitEnabled"`
}

// Seconds returns the countdown length, 0 when the round is untimed.
func (r RoundSettings) Seconds() int {
	if !r.TimeLimitEnabled || r.TimeLimit <= 0 {
		return 0
	}
	return timer.MinutesToSeconds(r.TimeLimit)
}

// RoundSettingsPatch changes the fields that are set.
type RoundSettingsPatch struct {
	TimeLimit        *int
	TimeLimitEnabled *bool
}

func (p RoundSettingsPatch) apply(r RoundSettings) RoundSettings {
	if p.TimeLimit != nil {
		r.TimeLimit = *p.TimeLimit
	}
	if p.TimeLimitEnabled != nil {
		r.TimeLimitEnabled = *p.TimeLimitEnabled
	}
	return r
}

// Rounds holds the settings of all three rounds.
type Rounds struct {
	Round1 RoundSettings `json:"round1"`
	Round2 RoundSettings `json:"round2"`
	Round3 RoundSettings `json:"round3"`
}

// Get returns the settings for round, the zero value when out of range.
func (r Rounds) Get(round int) RoundSettings {
	switch round {
	case 1:
		return r.Round1
	case 2:
		return r.Round2
	case 3:
		return r.Round3
	}
	return RoundSettings{}
}

func (r Rounds) with(round int, s RoundSettings) Rounds {
	switch round {
	case 1:
		r.Round1 = s
	case 2:
		r.Round2 = s
	case 3:
		r.Round3 = s
	}
	return r
}

// GameEvent is one entry in the append-only game history.
type GameEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event types recorded by the controller.
const (
	EventGameInitialized = "game_initialized"
	EventRoundChanged    = "round_changed"
	EventRoundStarted    = "round_started"
	EventRoundOver       = "round_over"
	EventTimerWarning    = "timer_warning"
	EventCardDrawn       = "card_drawn"
	EventCardReturned    = "card_returned"
	EventCardSaved       = "card_saved"
	EventCardUsed        = "card_used"
	EventDiceRolled      = "dice_rolled"
	EventPlayerAdded     = "player_added"
)

// GameState is the aggregate persisted under the game-state key.
type GameState struct {
	SessionID     string        `json:"sessionId,omitempty"`
	CurrentRound  int           `json:"currentRound"`
	RoundStatus   RoundStatus   `json:"roundStatus"`
	RuleMode      deck.Mode     `json:"ruleMode"`
	RoundSettings Rounds        `json:"roundSettings"`
	Timer         timer.State   `json:"timer"`
	CardDeck      deck.State    `json:"cardDeck"`
	GameHistory   []GameEvent   `json:"gameHistory"`
	Players       []deck.Player `json:"players"`
	AudioEnabled  bool          `json:"audioEnabled"`
}

// Default returns the state of a game that has not been set up.
func Default() GameState {
	return GameState{
		CurrentRound: 1,
		RoundStatus:  StatusSetup,
		RuleMode:     deck.Traditional,
		RoundSettings: Rounds{
			Round1: RoundSettings{TimeLimit: 0, TimeLimitEnabled: false},
			Round2: RoundSettings{TimeLimit: 30, TimeLimitEnabled: true},
			Round3: RoundSettings{TimeLimit: 30, TimeLimitEnabled: true},
		},
		Timer:        timer.Default(),
		CardDeck:     deck.Empty(),
		GameHistory:  []GameEvent{},
		Players:      []deck.Player{},
		AudioEnabled: true,
	}
}

func (s GameState) clone() GameState {
	out := s
	out.Timer = s.Timer.Clone()
	out.CardDeck = s.CardDeck.Clone()
	out.GameHistory = slices.Clone(s.GameHistory)
	out.Players = clonePlayers(s.Players)
	return out
}

func clonePlayers(players []deck.Player) []deck.Player {
	if players == nil {
		return nil
	}
	out := make([]deck.Player, len(players))
	for i, p := range players {
		out[i] = deck.Player{Name: p.Name, SavedCards: slices.Clone(p.SavedCards)}
	}
	return out
}

// Validate checks ranges, enums and the nested timer and deck invariants.
func (s GameState) Validate() error {
	var errs []error
	if s.CurrentRound < 1 || s.CurrentRound > 3 {
		errs = append(errs, fmt.Errorf("current round %d out of range", s.CurrentRound))
	}
	if _, err := ParseRoundStatus(string(s.RoundStatus)); err != nil {
		errs = append(errs, err)
	}
	if _, err := deck.ParseMode(string(s.RuleMode)); err != nil {
		errs = append(errs, err)
	}
	for round := 1; round <= 3; round++ {
		if s.RoundSettings.Get(round).TimeLimit < 0 {
			errs = append(errs, fmt.Errorf("round %d: negative time limit", round))
		}
	}
	if err := s.Timer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("timer: %w", err))
	}
	if err := s.CardDeck.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("card deck: %w", err))
	}
	return errors.Join(errs...)
}

// Player returns the roster entry for name.
func (s GameState) Player(name string) (deck.Player, bool) {
	i := slices.IndexFunc(s.Players, func(p deck.Player) bool { return p.Name == name })
	if i < 0 {
		return deck.Player{}, false
	}
	return s.Players[i], true
}
