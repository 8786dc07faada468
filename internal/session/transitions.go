package session

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTransition is returned for a round status change the game flow
// does not allow.
var ErrInvalidTransition = errors.New("invalid round status transition")

var transitions = map[RoundStatus][]RoundStatus{
	StatusSetup:       {StatusExplanation},
	StatusExplanation: {StatusSetup, StatusCountdown, StatusPlaying},
	StatusCountdown:   {StatusExplanation, StatusPlaying},
	StatusPlaying:     {StatusPaused, StatusFinished},
	StatusPaused:      {StatusPlaying, StatusFinished},
	StatusFinished:    {StatusSetup, StatusExplanation},
}

// ValidateTransition reports whether the flow allows moving from one status
// to another. Staying in the same status is always allowed.
func ValidateTransition(from, to RoundStatus) error {
	if _, err := ParseRoundStatus(string(from)); err != nil {
		return err
	}
	if _, err := ParseRoundStatus(string(to)); err != nil {
		return err
	}
	if from == to || slices.Contains(transitions[from], to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// NextStatuses lists the statuses reachable from from.
func NextStatuses(from RoundStatus) []RoundStatus {
	return slices.Clone(transitions[from])
}
