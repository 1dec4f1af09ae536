package models

import "testing"

func TestScoreCredit(t *testing.T) {
	m := &Match{HomeTeamID: 1, AwayTeamID: 2}
	events := []*MatchEvent{
		{Kind: EventGoal, TeamID: 1},
		{Kind: EventGoal, TeamID: 2},
		{Kind: EventOwnGoal, TeamID: 2},
		{Kind: EventPenaltyGoal, TeamID: 2},
		{Kind: EventYellowCard, TeamID: 1},
		{Kind: EventGoal, TeamID: 99},
	}

	var s Score
	for _, e := range events {
		s.Credit(m, e)
	}
	if s.Home != 2 || s.Away != 2 {
		t.Fatalf("score = %d-%d, want 2-2", s.Home, s.Away)
	}
}
