package routes_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/matchday/broadcast"
	"github.com/Dosada05/matchday/handlers"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
	"github.com/Dosada05/matchday/routes"
	"github.com/Dosada05/matchday/services"
	"github.com/Dosada05/matchday/testutil"
	"github.com/Dosada05/matchday/utils"
)

const ownerID = 10

var secret = []byte("routes-test-secret")

type server struct {
	*httptest.Server
	hub     *broadcast.Hub
	matchID int
	homeID  int
	awayID  int
}

func newServer(t *testing.T) *server {
	t.Helper()

	database := testutil.NewTestDB(t)
	fx := testutil.SeedMatch(t, database, ownerID)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := broadcast.NewHub(logger)

	teams := repositories.NewTeamRepository(database)
	players := repositories.NewPlayerRepository(database)
	matches := repositories.NewMatchRepository(database)
	states := repositories.NewMatchStateRepository(database)
	periods := repositories.NewPeriodRepository(database)
	events := repositories.NewEventRepository(database)

	opt := services.WithLogger(logger)
	snapshots := services.NewSnapshotService(matches, states, periods, events, teams, players, opt)
	router := routes.InitRoutes(routes.Config{
		JWTSecret:      secret,
		AllowedOrigins: []string{"*"},
		Logger:         logger,
	}, routes.Handlers{
		Teams:     handlers.NewTeamHandler(services.NewTeamService(teams, players, opt)),
		Matches:   handlers.NewMatchHandler(services.NewMatchService(matches, states, teams, opt)),
		Lifecycle: handlers.NewLifecycleHandler(services.NewLifecycleService(database, matches, states, periods, hub, snapshots, nil, opt)),
		Periods:   handlers.NewPeriodHandler(services.NewPeriodService(database, matches, states, periods, hub, opt)),
		Events:    handlers.NewEventHandler(services.NewEventService(matches, states, events, players, hub, opt), snapshots),
		Stream:    handlers.NewStreamHandler(hub, snapshots),
		WebSocket: handlers.NewWebSocketHandler(hub, snapshots, nil),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &server{Server: srv, hub: hub, matchID: fx.Match.ID, homeID: fx.Home.ID, awayID: fx.Away.ID}
}

func tokenFor(t *testing.T, actor models.Actor) string {
	t.Helper()
	token, err := utils.GenerateToken(secret, actor, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return token
}

var (
	ownerActor    = models.Actor{UserID: ownerID, Role: models.RoleOrganizer}
	strangerActor = models.Actor{UserID: 77, Role: models.RoleOrganizer}
)

type apiResponse struct {
	status int
	body   map[string]json.RawMessage
}

func (r apiResponse) str(t *testing.T, key string) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(r.body[key], &s); err != nil {
		t.Fatalf("field %s = %s: %v", key, r.body[key], err)
	}
	return s
}

func (s *server) do(t *testing.T, method, path, token, body string) apiResponse {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := apiResponse{status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return out
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	if resp := srv.do(t, http.MethodGet, "/health", "", ""); resp.status != http.StatusOK {
		t.Fatalf("status = %d", resp.status)
	}
}

func TestSwaggerDoc(t *testing.T) {
	srv := newServer(t)
	resp := srv.do(t, http.MethodGet, "/swagger/doc.json", "", "")
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d", resp.status)
	}
	if got := resp.str(t, "swagger"); got != "2.0" {
		t.Errorf("swagger = %q", got)
	}
	if _, ok := resp.body["paths"]; !ok {
		t.Error("doc has no paths")
	}
}

func TestPeriodEndpoints(t *testing.T) {
	srv := newServer(t)
	owner := tokenFor(t, ownerActor)
	base := fmt.Sprintf("/matches/%d", srv.matchID)

	if resp := srv.do(t, http.MethodPost, base+"/periods", "", `{"periodType":"regular"}`); resp.status != http.StatusUnauthorized {
		t.Fatalf("anonymous start status = %d, want 401", resp.status)
	}

	resp := srv.do(t, http.MethodPost, base+"/periods", tokenFor(t, strangerActor), `{"periodType":"regular"}`)
	if resp.status != http.StatusForbidden || resp.str(t, "kind") != "access_denied" {
		t.Fatalf("stranger start = %d %s, want 403 access_denied", resp.status, resp.body["kind"])
	}

	resp = srv.do(t, http.MethodPost, base+"/periods", owner, `{"periodType":"overtime"}`)
	if resp.status != http.StatusBadRequest || !strings.Contains(resp.str(t, "error"), "penalty_shootout") {
		t.Fatalf("invalid type = %d %s", resp.status, resp.body["error"])
	}

	resp = srv.do(t, http.MethodPost, base+"/periods", owner, `{"periodType":"regular"}`)
	if resp.status != http.StatusCreated {
		t.Fatalf("start status = %d, body %v", resp.status, resp.body)
	}
	var period models.PeriodView
	if err := json.Unmarshal(resp.body["period"], &period); err != nil {
		t.Fatalf("decode period: %v", err)
	}
	if period.PeriodType != "regular" || period.PeriodNumber != 1 {
		t.Fatalf("period = %+v", period)
	}

	resp = srv.do(t, http.MethodPost, base+"/periods", owner, `{"periodType":"extra_time"}`)
	if resp.status != http.StatusBadRequest || resp.str(t, "error") != "another period is already active" {
		t.Fatalf("second start = %d %s", resp.status, resp.body["error"])
	}
	if resp.str(t, "kind") != "invalid_state_transition" {
		t.Errorf("kind = %s", resp.body["kind"])
	}

	resp = srv.do(t, http.MethodGet, base+"/periods/active", owner, "")
	if resp.status != http.StatusOK || string(resp.body["period"]) == "null" {
		t.Fatalf("active = %d %s", resp.status, resp.body["period"])
	}

	resp = srv.do(t, http.MethodPost, fmt.Sprintf("%s/periods/%d/end", base, period.ID), owner, "")
	if resp.status != http.StatusOK {
		t.Fatalf("end status = %d, body %v", resp.status, resp.body)
	}
	resp = srv.do(t, http.MethodPost, fmt.Sprintf("%s/periods/%d/end", base, period.ID), owner, "")
	if resp.status != http.StatusBadRequest || resp.str(t, "error") != "Period is already ended" {
		t.Fatalf("second end = %d %s", resp.status, resp.body["error"])
	}

	resp = srv.do(t, http.MethodPost, base+"/periods/999/end", owner, "")
	if resp.status != http.StatusNotFound || resp.str(t, "error") != "Period not found" {
		t.Fatalf("missing end = %d %s", resp.status, resp.body["error"])
	}

	resp = srv.do(t, http.MethodGet, base+"/state", "", "")
	if resp.status != http.StatusOK || !strings.Contains(string(resp.body["state"]), `"PAUSED"`) {
		t.Fatalf("state = %d %s", resp.status, resp.body["state"])
	}

	if resp := srv.do(t, http.MethodGet, base+"/elapsed", owner, ""); resp.status != http.StatusOK {
		t.Fatalf("elapsed status = %d", resp.status)
	}
	if resp := srv.do(t, http.MethodDelete, fmt.Sprintf("%s/periods/%d", base, period.ID), owner, ""); resp.status != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.status)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	srv := newServer(t)
	owner := tokenFor(t, ownerActor)
	base := fmt.Sprintf("/matches/%d", srv.matchID)

	if resp := srv.do(t, http.MethodPost, base+"/pause", owner, ""); resp.status != http.StatusBadRequest {
		t.Fatalf("pause scheduled = %d, want 400", resp.status)
	}
	if resp := srv.do(t, http.MethodPost, base+"/start", owner, ""); resp.status != http.StatusOK {
		t.Fatalf("start = %d", resp.status)
	}
	resp := srv.do(t, http.MethodPost, base+"/complete", owner, `{"homeScore":1,"awayScore":0}`)
	if resp.status != http.StatusOK || !strings.Contains(string(resp.body["state"]), `"COMPLETED"`) {
		t.Fatalf("complete = %d %s", resp.status, resp.body["state"])
	}
	if resp := srv.do(t, http.MethodPost, base+"/cancel", owner, `{"reason":"late"}`); resp.status != http.StatusBadRequest {
		t.Fatalf("cancel completed = %d, want 400", resp.status)
	}
	if resp := srv.do(t, http.MethodGet, "/matches/31337/state", "", ""); resp.status != http.StatusNotFound {
		t.Fatalf("missing state = %d, want 404", resp.status)
	}
}

func TestCreateMatchValidation(t *testing.T) {
	srv := newServer(t)
	owner := tokenFor(t, ownerActor)

	resp := srv.do(t, http.MethodPost, "/matches", owner, fmt.Sprintf(`{"homeTeamId":%d,"awayTeamId":%d}`, srv.homeID, srv.homeID))
	if resp.status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.status)
	}
	var fields map[string]string
	if err := json.Unmarshal(resp.body["error"], &fields); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if _, ok := fields["awayTeamId"]; !ok {
		t.Errorf("fields = %v, want awayTeamId", fields)
	}
	if _, ok := fields["kickoffAt"]; !ok {
		t.Errorf("fields = %v, want kickoffAt", fields)
	}

	body := fmt.Sprintf(`{"homeTeamId":%d,"awayTeamId":%d,"kickoffAt":"2026-05-01T18:00:00Z"}`, srv.homeID, srv.awayID)
	if resp := srv.do(t, http.MethodPost, "/matches", owner, body); resp.status != http.StatusCreated {
		t.Fatalf("create = %d %v", resp.status, resp.body)
	}
	resp = srv.do(t, http.MethodGet, "/matches?status=SCHEDULED", "", "")
	var list []json.RawMessage
	if err := json.Unmarshal(resp.body["matches"], &list); err != nil || len(list) != 2 {
		t.Fatalf("matches = %s (%v), want 2", resp.body["matches"], err)
	}
}

func TestLiveStreamSendsSnapshotThenEvents(t *testing.T) {
	srv := newServer(t)
	owner := tokenFor(t, ownerActor)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/matches/%d/live", srv.URL, srv.matchID), nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	reader := bufio.NewReader(resp.Body)

	if event := readEventType(t, reader); event != broadcast.EventSnapshot {
		t.Fatalf("first event = %q, want snapshot", event)
	}

	// The subscription is registered right after the snapshot is written.
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.SubscriberCount(srv.matchID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if start := srv.do(t, http.MethodPost, fmt.Sprintf("/matches/%d/start", srv.matchID), owner, ""); start.status != http.StatusOK {
		t.Fatalf("start = %d", start.status)
	}

	if event := readEventType(t, reader); event != broadcast.EventMatchStatusChanged {
		t.Fatalf("next event = %q, want %s", event, broadcast.EventMatchStatusChanged)
	}
}

func TestLiveStreamUnknownMatch(t *testing.T) {
	srv := newServer(t)
	if resp := srv.do(t, http.MethodGet, "/matches/4040/live", "", ""); resp.status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.status)
	}
}

// readEventType reads one SSE frame and returns its event name, skipping
// heartbeats.
func readEventType(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		var event string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			if line == "" {
				break
			}
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				event = name
			}
		}
		if event != broadcast.EventHeartbeat {
			return event
		}
	}
}
