package models

import (
	"fmt"
	"strings"
	"time"
)

// PeriodType is the persisted (uppercase) form of a period's kind.
type PeriodType string

const (
	PeriodRegular         PeriodType = "REGULAR"
	PeriodExtraTime       PeriodType = "EXTRA_TIME"
	PeriodPenaltyShootout PeriodType = "PENALTY_SHOOTOUT"
)

// AllowedPeriodTypes lists the API spellings accepted by ParsePeriodType.
var AllowedPeriodTypes = []string{"regular", "extra_time", "penalty_shootout"}

// ParsePeriodType maps the API form (regular, extra_time, penalty_shootout)
// to the persisted enum.
func ParsePeriodType(s string) (PeriodType, error) {
	switch s {
	case "regular":
		return PeriodRegular, nil
	case "extra_time":
		return PeriodExtraTime, nil
	case "penalty_shootout":
		return PeriodPenaltyShootout, nil
	}
	return "", fmt.Errorf("invalid period type %q: must be one of %s", s, strings.Join(AllowedPeriodTypes, ", "))
}

// APIName is the lowercase form exposed at the API boundary.
func (t PeriodType) APIName() string {
	return strings.ToLower(string(t))
}

// MarshalText keeps JSON in the API form; database/sql still sees the
// uppercase value.
func (t PeriodType) MarshalText() ([]byte, error) {
	return []byte(t.APIName()), nil
}

func (t *PeriodType) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriodType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Period is one timed segment of play within a match.
type Period struct {
	ID              int
	MatchID         int
	PeriodNumber    int
	PeriodType      PeriodType
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationSeconds *int64
	CreatedByUserID int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SoftDelete
}

// IsActive reports whether the period has started and not yet ended.
func (p *Period) IsActive() bool {
	return p.StartedAt != nil && p.EndedAt == nil
}

// Contains reports whether t falls inside the period window. An active
// period is treated as open-ended.
func (p *Period) Contains(t time.Time) bool {
	if p.StartedAt == nil || t.Before(*p.StartedAt) {
		return false
	}
	return p.EndedAt == nil || !t.After(*p.EndedAt)
}

// PeriodView is the public representation of a Period.
type PeriodView struct {
	ID              int        `json:"id"`
	MatchID         int        `json:"matchId"`
	PeriodNumber    int        `json:"periodNumber"`
	PeriodType      string     `json:"periodType"`
	StartedAt       *time.Time `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`
	DurationSeconds *int64     `json:"durationSeconds"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CreatedByUserID int        `json:"createdByUserId"`
	DeletedAt       *time.Time `json:"deletedAt"`
	DeletedByUserID *int       `json:"deletedByUserId"`
	IsDeleted       bool       `json:"isDeleted"`
}

func (p *Period) View() *PeriodView {
	if p == nil {
		return nil
	}
	return &PeriodView{
		ID:              p.ID,
		MatchID:         p.MatchID,
		PeriodNumber:    p.PeriodNumber,
		PeriodType:      p.PeriodType.APIName(),
		StartedAt:       p.StartedAt,
		EndedAt:         p.EndedAt,
		DurationSeconds: p.DurationSeconds,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		CreatedByUserID: p.CreatedByUserID,
		DeletedAt:       p.DeletedAt,
		DeletedByUserID: p.DeletedByUserID,
		IsDeleted:       p.IsDeleted,
	}
}

func PeriodViews(periods []*Period) []PeriodView {
	views := make([]PeriodView, 0, len(periods))
	for _, p := range periods {
		if p != nil {
			views = append(views, *p.View())
		}
	}
	return views
}
