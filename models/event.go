package models

import "time"

// EventKind is the type of a timeline entry.
type EventKind string

const (
	EventGoal         EventKind = "goal"
	EventOwnGoal      EventKind = "own_goal"
	EventPenaltyGoal  EventKind = "penalty_goal"
	EventYellowCard   EventKind = "yellow_card"
	EventRedCard      EventKind = "red_card"
	EventSubstitution EventKind = "substitution"
	EventNote         EventKind = "note"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventGoal, EventOwnGoal, EventPenaltyGoal, EventYellowCard, EventRedCard, EventSubstitution, EventNote:
		return true
	}
	return false
}

// Scores reports whether the event changes the scoreline.
func (k EventKind) Scores() bool {
	return k == EventGoal || k == EventOwnGoal || k == EventPenaltyGoal
}

// MatchEvent is one entry on a match timeline.
type MatchEvent struct {
	ID              int       `json:"id"`
	MatchID         int       `json:"matchId"`
	Kind            EventKind `json:"kind"`
	TeamID          int       `json:"teamId"`
	PlayerID        *int      `json:"playerId,omitempty"`
	Minute          *int      `json:"minute,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
	Notes           *string   `json:"notes,omitempty"`
	CreatedByUserID int       `json:"createdByUserId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	SoftDelete
}

// Score is a derived home/away scoreline.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Credit applies a scoring event to the scoreline. Own goals count for the
// opposing side. Events for teams outside the match are ignored.
func (s *Score) Credit(m *Match, e *MatchEvent) {
	if !e.Kind.Scores() {
		return
	}
	home, ok := m.SideOf(e.TeamID)
	if !ok {
		return
	}
	if e.Kind == EventOwnGoal {
		home = !home
	}
	if home {
		s.Home++
	} else {
		s.Away++
	}
}
