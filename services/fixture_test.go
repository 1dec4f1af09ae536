package services_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
	"github.com/Dosada05/matchday/services"
	"github.com/Dosada05/matchday/storage"
	"github.com/Dosada05/matchday/testutil"
)

const ownerID = 10

var (
	owner    = models.Actor{UserID: ownerID, Role: models.RoleOrganizer}
	stranger = models.Actor{UserID: 99, Role: models.RolePlayer}
	admin    = models.Actor{UserID: 1, Role: models.RoleAdmin}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notification struct {
	matchID   int
	eventType string
	payload   any
}

// recordingNotifier keeps every broadcast. With broken set it panics after
// recording, like a transport that blows up mid-send.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
	broken bool
}

func (n *recordingNotifier) Broadcast(matchID int, eventType string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{matchID, eventType, payload})
	if n.broken {
		panic("broadcast transport failed")
	}
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.eventType)
	}
	return out
}

type fakeUploader struct {
	mu      sync.Mutex
	keys    []string
	body    map[string][]byte
	deleted []string
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, r io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.body == nil {
		u.body = make(map[string][]byte)
	}
	u.keys = append(u.keys, key)
	u.body[key] = data
	return &storage.UploadResult{Key: key}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string { return "https://files.example/" + key }

type env struct {
	db        *sql.DB
	fx        *testutil.Fixture
	clock     *fakeClock
	notifier  *recordingNotifier
	uploader  *fakeUploader
	states    repositories.MatchStateRepository
	periodsDB repositories.PeriodRepository
	events    repositories.EventRepository
	players   repositories.PlayerRepository

	periods   services.PeriodService
	lifecycle services.LifecycleService
	snapshots services.SnapshotService
	timeline  services.EventService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	database := testutil.NewTestDB(t)
	e := &env{
		db:       database,
		fx:       testutil.SeedMatch(t, database, ownerID),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		uploader: &fakeUploader{},
	}

	matches := repositories.NewMatchRepository(database)
	teams := repositories.NewTeamRepository(database)
	e.states = repositories.NewMatchStateRepository(database)
	e.periodsDB = repositories.NewPeriodRepository(database)
	e.events = repositories.NewEventRepository(database)
	e.players = repositories.NewPlayerRepository(database)

	opts := []services.Option{
		services.WithClock(e.clock.Now),
		services.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	e.periods = services.NewPeriodService(database, matches, e.states, e.periodsDB, e.notifier, opts...)
	e.snapshots = services.NewSnapshotService(matches, e.states, e.periodsDB, e.events, teams, e.players, opts...)
	e.lifecycle = services.NewLifecycleService(database, matches, e.states, e.periodsDB, e.notifier, e.snapshots, e.uploader, opts...)
	e.timeline = services.NewEventService(matches, e.states, e.events, e.players, e.notifier, opts...)
	return e
}

func (e *env) matchID() int { return e.fx.Match.ID }

func (e *env) state(t *testing.T) *models.MatchState {
	t.Helper()
	st, err := e.states.Get(context.Background(), nil, e.matchID())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	return st
}
