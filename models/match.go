package models

import "time"

// PeriodFormat describes how regular time is split.
type PeriodFormat string

const (
	PeriodFormatHalf    PeriodFormat = "half"
	PeriodFormatQuarter PeriodFormat = "quarter"
)

func (f PeriodFormat) Valid() bool {
	return f == PeriodFormatHalf || f == PeriodFormatQuarter
}

// RegularPeriods is the number of regular periods implied by the format.
func (f PeriodFormat) RegularPeriods() int {
	if f == PeriodFormatQuarter {
		return 4
	}
	return 2
}

// SoftDelete holds the soft-delete columns present on every persisted row.
type SoftDelete struct {
	IsDeleted       bool       `json:"isDeleted"`
	DeletedAt       *time.Time `json:"deletedAt"`
	DeletedByUserID *int       `json:"deletedByUserId"`
}

// Match is a scheduled fixture between two teams.
type Match struct {
	ID              int          `json:"id"`
	HomeTeamID      int          `json:"homeTeamId"`
	AwayTeamID      int          `json:"awayTeamId"`
	KickoffAt       time.Time    `json:"kickoffAt"`
	Competition     *string      `json:"competition,omitempty"`
	Venue           *string      `json:"venue,omitempty"`
	DurationMinutes int          `json:"durationMinutes"`
	PeriodFormat    PeriodFormat `json:"periodFormat"`
	CreatedByUserID int          `json:"createdByUserId"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	SoftDelete

	HomeTeam *Team       `json:"homeTeam,omitempty"`
	AwayTeam *Team       `json:"awayTeam,omitempty"`
	State    *MatchState `json:"state,omitempty"`
}

// SideOf reports whether teamID plays at home, away, or not at all in the match.
func (m *Match) SideOf(teamID int) (home bool, ok bool) {
	switch teamID {
	case m.HomeTeamID:
		return true, true
	case m.AwayTeamID:
		return false, true
	}
	return false, false
}
