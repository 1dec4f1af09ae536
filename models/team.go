package models

import "time"

type Team struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	ShortName       *string   `json:"shortName,omitempty"`
	CreatedByUserID int       `json:"createdByUserId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	SoftDelete
}

type Player struct {
	ID              int       `json:"id"`
	TeamID          int       `json:"teamId"`
	Name            string    `json:"name"`
	ShirtNumber     *int      `json:"shirtNumber,omitempty"`
	CreatedByUserID int       `json:"createdByUserId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	SoftDelete
}
