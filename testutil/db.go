package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dosada05/matchday/db"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Connect(db.DriverSQLite, dbPath, 5*time.Second)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if err := db.Migrate(database, db.DriverSQLite); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return database
}

// Fixture is a match between two freshly created teams.
type Fixture struct {
	Home  *models.Team
	Away  *models.Team
	Match *models.Match
}

// SeedMatch creates two teams and a scheduled match owned by ownerID.
func SeedMatch(t *testing.T, database *sql.DB, ownerID int) *Fixture {
	t.Helper()

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	teams := repositories.NewTeamRepository(database)

	home := &models.Team{Name: "Riverside Rovers", CreatedByUserID: ownerID, CreatedAt: now}
	away := &models.Team{Name: "Hilltop United", CreatedByUserID: ownerID, CreatedAt: now}
	for _, team := range []*models.Team{home, away} {
		if err := teams.Create(ctx, nil, team); err != nil {
			t.Fatalf("seed team: %v", err)
		}
	}

	match := &models.Match{
		HomeTeamID:      home.ID,
		AwayTeamID:      away.ID,
		KickoffAt:       now.Add(time.Hour),
		DurationMinutes: 90,
		PeriodFormat:    models.PeriodFormatHalf,
		CreatedByUserID: ownerID,
		CreatedAt:       now,
	}
	if err := repositories.NewMatchRepository(database).Create(ctx, nil, match); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	return &Fixture{Home: home, Away: away, Match: match}
}
