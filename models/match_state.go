package models

import (
	"errors"
	"fmt"
	"time"
)

// MatchStatus is the live status of a match.
type MatchStatus string

const (
	MatchScheduled MatchStatus = "SCHEDULED"
	MatchLive      MatchStatus = "LIVE"
	MatchPaused    MatchStatus = "PAUSED"
	MatchCompleted MatchStatus = "COMPLETED"
	MatchCancelled MatchStatus = "CANCELLED"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchScheduled, MatchLive, MatchPaused, MatchCompleted, MatchCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

// LifecycleAction is a requested match status change.
type LifecycleAction string

const (
	ActionStart    LifecycleAction = "start"
	ActionPause    LifecycleAction = "pause"
	ActionResume   LifecycleAction = "resume"
	ActionComplete LifecycleAction = "complete"
	ActionCancel   LifecycleAction = "cancel"
)

// ErrInvalidTransition is wrapped by every rejected status change.
var ErrInvalidTransition = errors.New("invalid status transition")

var actionTargets = map[LifecycleAction]MatchStatus{
	ActionStart:    MatchLive,
	ActionPause:    MatchPaused,
	ActionResume:   MatchLive,
	ActionComplete: MatchCompleted,
	ActionCancel:   MatchCancelled,
}

var allowedSources = map[LifecycleAction][]MatchStatus{
	ActionStart:    {MatchScheduled, MatchPaused},
	ActionPause:    {MatchLive},
	ActionResume:   {MatchPaused, MatchScheduled},
	ActionComplete: {MatchLive, MatchPaused},
	ActionCancel:   {MatchScheduled, MatchLive, MatchPaused},
}

// NextStatus returns the status reached by applying action to current.
func NextStatus(current MatchStatus, action LifecycleAction) (MatchStatus, error) {
	target, ok := actionTargets[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	for _, src := range allowedSources[action] {
		if src == current {
			return target, nil
		}
	}
	return "", &TransitionError{From: current, To: target}
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From MatchStatus
	To   MatchStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// MatchState is the live-status companion of a Match.
type MatchState struct {
	MatchID             int         `json:"matchId"`
	Status              MatchStatus `json:"status"`
	CurrentPeriod       *int        `json:"currentPeriod"`
	CurrentPeriodType   *PeriodType `json:"currentPeriodType"`
	TotalElapsedSeconds int64       `json:"totalElapsedSeconds"`
	MatchStartedAt      *time.Time  `json:"matchStartedAt"`
	MatchEndedAt        *time.Time  `json:"matchEndedAt"`
	HomeScore           *int        `json:"homeScore,omitempty"`
	AwayScore           *int        `json:"awayScore,omitempty"`
	CancelReason        *string     `json:"cancelReason,omitempty"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// NewMatchState is the implicit state of a match that has never transitioned.
func NewMatchState(matchID int, now time.Time) *MatchState {
	return &MatchState{
		MatchID:   matchID,
		Status:    MatchScheduled,
		UpdatedAt: now,
	}
}
