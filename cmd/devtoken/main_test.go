package main

import (
	"testing"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/utils"
)

func TestMintRoundTrip(t *testing.T) {
	token, err := mint("dev-secret", 7, models.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	actor, err := utils.ParseToken([]byte("dev-secret"), token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.UserID != 7 || actor.Role != models.RoleAdmin {
		t.Errorf("actor = %+v", actor)
	}
}

func TestMintRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		user   int
		role   models.UserRole
		ttl    time.Duration
	}{
		{"no secret", "", 1, models.RolePlayer, time.Hour},
		{"zero user", "s", 0, models.RolePlayer, time.Hour},
		{"bad role", "s", 1, "referee", time.Hour},
		{"zero ttl", "s", 1, models.RolePlayer, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := mint(tt.secret, tt.user, tt.role, tt.ttl); err == nil {
				t.Error("expected error")
			}
		})
	}
}
