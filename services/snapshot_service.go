package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
	"golang.org/x/sync/errgroup"
)

// SnapshotEventLimit bounds the timeline window sent to new subscribers.
const SnapshotEventLimit = 200

type TeamRef struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	ShortName *string `json:"shortName,omitempty"`
}

type MatchSummary struct {
	ID                  int                 `json:"id"`
	HomeTeam            TeamRef             `json:"homeTeam"`
	AwayTeam            TeamRef             `json:"awayTeam"`
	KickoffAt           time.Time           `json:"kickoffAt"`
	Competition         *string             `json:"competition,omitempty"`
	Venue               *string             `json:"venue,omitempty"`
	DurationMinutes     int                 `json:"durationMinutes"`
	PeriodFormat        models.PeriodFormat `json:"periodFormat"`
	Status              models.MatchStatus  `json:"status"`
	CurrentPeriod       *int                `json:"currentPeriod"`
	CurrentPeriodType   *models.PeriodType  `json:"currentPeriodType"`
	TotalElapsedSeconds int64               `json:"totalElapsedSeconds"`
	MatchStartedAt      *time.Time          `json:"matchStartedAt"`
	MatchEndedAt        *time.Time          `json:"matchEndedAt"`
	// Score is the final score entered at completion when there is one,
	// otherwise the tally of the timeline window.
	Score        models.Score `json:"score"`
	FinalScore   bool         `json:"finalScore"`
	CancelReason *string      `json:"cancelReason,omitempty"`
}

// TimelineEvent is a match event with names resolved and its period inferred
// from the period windows.
type TimelineEvent struct {
	ID           int              `json:"id"`
	Kind         models.EventKind `json:"kind"`
	TeamID       int              `json:"teamId"`
	TeamName     string           `json:"teamName"`
	PlayerID     *int             `json:"playerId,omitempty"`
	PlayerName   *string          `json:"playerName,omitempty"`
	Minute       *int             `json:"minute,omitempty"`
	OccurredAt   time.Time        `json:"occurredAt"`
	Notes        *string          `json:"notes,omitempty"`
	PeriodNumber *int             `json:"periodNumber"`
	PeriodType   *string          `json:"periodType"`
}

type Snapshot struct {
	Match       MatchSummary        `json:"match"`
	Periods     []models.PeriodView `json:"periods"`
	Events      []TimelineEvent     `json:"events"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

// SnapshotService assembles the full view a newly connected viewer needs.
// It is read-only.
type SnapshotService interface {
	BuildSnapshot(ctx context.Context, matchID int) (*Snapshot, error)
}

type snapshotService struct {
	matchRepo  repositories.MatchRepository
	stateRepo  repositories.MatchStateRepository
	periodRepo repositories.PeriodRepository
	eventRepo  repositories.EventRepository
	teamRepo   repositories.TeamRepository
	playerRepo repositories.PlayerRepository
	now        func() time.Time
}

func NewSnapshotService(
	matchRepo repositories.MatchRepository,
	stateRepo repositories.MatchStateRepository,
	periodRepo repositories.PeriodRepository,
	eventRepo repositories.EventRepository,
	teamRepo repositories.TeamRepository,
	playerRepo repositories.PlayerRepository,
	opts ...Option,
) SnapshotService {
	o := buildOptions(opts)
	return &snapshotService{
		matchRepo:  matchRepo,
		stateRepo:  stateRepo,
		periodRepo: periodRepo,
		eventRepo:  eventRepo,
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		now:        o.now,
	}
}

func (s *snapshotService) BuildSnapshot(ctx context.Context, matchID int) (*Snapshot, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, storageError("load match", err)
	}

	var (
		home, away  *models.Team
		state       *models.MatchState
		periods     []*models.Period
		events      []*models.MatchEvent
		homePlayers []*models.Player
		awayPlayers []*models.Player
	)
	now := s.now().UTC()

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Команды
	g.Go(func() error {
		t, err := s.teamRepo.GetByID(gCtx, nil, match.HomeTeamID)
		if err != nil {
			return fmt.Errorf("home team: %w", err)
		}
		home = t
		return nil
	})
	g.Go(func() error {
		t, err := s.teamRepo.GetByID(gCtx, nil, match.AwayTeamID)
		if err != nil {
			return fmt.Errorf("away team: %w", err)
		}
		away = t
		return nil
	})

	// 2. Составы, включая удалённых игроков: события могут на них ссылаться
	g.Go(func() error {
		ps, err := s.playerRepo.ListByTeam(gCtx, match.HomeTeamID, true)
		homePlayers = ps
		return err
	})
	g.Go(func() error {
		ps, err := s.playerRepo.ListByTeam(gCtx, match.AwayTeamID, true)
		awayPlayers = ps
		return err
	})

	// 3. Состояние и периоды
	g.Go(func() error {
		st, err := loadState(gCtx, nil, s.stateRepo, matchID, now)
		state = st
		return err
	})
	g.Go(func() error {
		ps, err := s.periodRepo.ListByMatch(gCtx, nil, matchID)
		periods = ps
		return err
	})

	// 4. Последние события
	g.Go(func() error {
		es, err := s.eventRepo.ListRecent(gCtx, matchID, SnapshotEventLimit)
		events = es
		return err
	})

	if err := g.Wait(); err != nil {
		if ErrorKind(err) != KindUnknown {
			return nil, err
		}
		return nil, storageError("build snapshot", err)
	}

	playerNames := make(map[int]string, len(homePlayers)+len(awayPlayers))
	for _, p := range append(homePlayers, awayPlayers...) {
		playerNames[p.ID] = p.Name
	}
	teamNames := map[int]string{home.ID: home.Name, away.ID: away.Name}

	snap := &Snapshot{
		Match: MatchSummary{
			ID:                  match.ID,
			HomeTeam:            TeamRef{ID: home.ID, Name: home.Name, ShortName: home.ShortName},
			AwayTeam:            TeamRef{ID: away.ID, Name: away.Name, ShortName: away.ShortName},
			KickoffAt:           match.KickoffAt,
			Competition:         match.Competition,
			Venue:               match.Venue,
			DurationMinutes:     match.DurationMinutes,
			PeriodFormat:        match.PeriodFormat,
			Status:              state.Status,
			CurrentPeriod:       state.CurrentPeriod,
			CurrentPeriodType:   state.CurrentPeriodType,
			TotalElapsedSeconds: state.TotalElapsedSeconds,
			MatchStartedAt:      state.MatchStartedAt,
			MatchEndedAt:        state.MatchEndedAt,
			CancelReason:        state.CancelReason,
		},
		Periods:     models.PeriodViews(periods),
		Events:      make([]TimelineEvent, 0, len(events)),
		GeneratedAt: now,
	}

	for _, e := range events {
		snap.Match.Score.Credit(match, e)

		te := TimelineEvent{
			ID:         e.ID,
			Kind:       e.Kind,
			TeamID:     e.TeamID,
			TeamName:   teamNames[e.TeamID],
			PlayerID:   e.PlayerID,
			Minute:     e.Minute,
			OccurredAt: e.OccurredAt,
			Notes:      e.Notes,
		}
		if e.PlayerID != nil {
			if name, ok := playerNames[*e.PlayerID]; ok {
				te.PlayerName = &name
			}
		}
		if p := periodAt(periods, e.OccurredAt); p != nil {
			number, pt := p.PeriodNumber, p.PeriodType.APIName()
			te.PeriodNumber, te.PeriodType = &number, &pt
		}
		snap.Events = append(snap.Events, te)
	}

	if state.HomeScore != nil && state.AwayScore != nil {
		snap.Match.Score = models.Score{Home: *state.HomeScore, Away: *state.AwayScore}
		snap.Match.FinalScore = true
	}

	return snap, nil
}

// periodAt is a best-effort guess: the latest-starting period whose window
// contains t.
func periodAt(periods []*models.Period, t time.Time) *models.Period {
	var found *models.Period
	for _, p := range periods {
		if !p.Contains(t) {
			continue
		}
		if found == nil || p.StartedAt.After(*found.StartedAt) {
			found = p
		}
	}
	return found
}
