package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
	"github.com/Dosada05/matchday/storage"
)

const defaultMatchDuration = 90

type CreateMatchInput struct {
	HomeTeamID      int                 `json:"homeTeamId" validate:"required,gt=0"`
	AwayTeamID      int                 `json:"awayTeamId" validate:"required,gt=0,nefield=HomeTeamID"`
	KickoffAt       time.Time           `json:"kickoffAt" validate:"required"`
	Competition     *string             `json:"competition" validate:"omitempty,max=120"`
	Venue           *string             `json:"venue" validate:"omitempty,max=120"`
	DurationMinutes int                 `json:"durationMinutes" validate:"omitempty,min=1,max=240"`
	PeriodFormat    models.PeriodFormat `json:"periodFormat" validate:"omitempty,oneof=half quarter"`
}

type MatchService interface {
	CreateMatch(ctx context.Context, actor models.Actor, input CreateMatchInput) (*models.Match, error)
	// GetMatch returns the match with its teams and live state attached.
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListMatches(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error)
	DeleteMatch(ctx context.Context, actor models.Actor, id int) error
}

type matchService struct {
	matchRepo repositories.MatchRepository
	stateRepo repositories.MatchStateRepository
	teamRepo  repositories.TeamRepository
	archive   storage.FileUploader
	now       func() time.Time
	logger    *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	stateRepo repositories.MatchStateRepository,
	teamRepo repositories.TeamRepository,
	opts ...Option,
) MatchService {
	o := buildOptions(opts)
	return &matchService{
		matchRepo: matchRepo,
		stateRepo: stateRepo,
		teamRepo:  teamRepo,
		archive:   o.archive,
		now:       o.now,
		logger:    o.logger,
	}
}

func (s *matchService) CreateMatch(ctx context.Context, actor models.Actor, input CreateMatchInput) (*models.Match, error) {
	if input.HomeTeamID == input.AwayTeamID {
		return nil, validationError("home and away team must differ")
	}
	if input.KickoffAt.IsZero() {
		return nil, validationError("kickoffAt is required")
	}
	if input.DurationMinutes == 0 {
		input.DurationMinutes = defaultMatchDuration
	}
	if input.DurationMinutes < 0 {
		return nil, validationError("durationMinutes must be positive")
	}
	if input.PeriodFormat == "" {
		input.PeriodFormat = models.PeriodFormatHalf
	}
	if !input.PeriodFormat.Valid() {
		return nil, validationError("periodFormat must be one of half, quarter")
	}

	home, err := s.liveTeam(ctx, input.HomeTeamID)
	if err != nil {
		return nil, err
	}
	away, err := s.liveTeam(ctx, input.AwayTeamID)
	if err != nil {
		return nil, err
	}

	match := &models.Match{
		HomeTeamID:      home.ID,
		AwayTeamID:      away.ID,
		KickoffAt:       input.KickoffAt.UTC(),
		Competition:     input.Competition,
		Venue:           input.Venue,
		DurationMinutes: input.DurationMinutes,
		PeriodFormat:    input.PeriodFormat,
		CreatedByUserID: actor.UserID,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.matchRepo.Create(ctx, nil, match); err != nil {
		return nil, storageError("create match", err)
	}
	match.HomeTeam, match.AwayTeam = home, away
	match.State = models.NewMatchState(match.ID, match.CreatedAt)

	s.logger.Info("match created", slog.Int("match_id", match.ID), slog.Int("user_id", actor.UserID))
	return match, nil
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, storageError("load match", err)
	}

	if match.HomeTeam, err = s.teamRepo.GetByID(ctx, nil, match.HomeTeamID); err != nil {
		return nil, storageError("load home team", err)
	}
	if match.AwayTeam, err = s.teamRepo.GetByID(ctx, nil, match.AwayTeamID); err != nil {
		return nil, storageError("load away team", err)
	}
	if match.State, err = loadState(ctx, nil, s.stateRepo, id, s.now().UTC()); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListMatches(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, validationError("unknown status %q", *filter.Status)
	}
	matches, err := s.matchRepo.List(ctx, filter)
	if err != nil {
		return nil, storageError("list matches", err)
	}
	return matches, nil
}

func (s *matchService) DeleteMatch(ctx context.Context, actor models.Actor, id int) error {
	if _, err := authorizeMatch(ctx, s.matchRepo, actor, id); err != nil {
		return err
	}
	if err := s.matchRepo.SoftDelete(ctx, nil, id, actor.UserID, s.now().UTC()); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return storageError("delete match", err)
	}
	s.logger.Info("match deleted", slog.Int("match_id", id), slog.Int("user_id", actor.UserID))

	if s.archive != nil {
		if err := s.archive.Delete(ctx, storage.FinalReportKey(id)); err != nil {
			s.logger.Warn("final report removal failed", slog.Int("match_id", id), slog.Any("error", err))
		}
	}
	return nil
}

func (s *matchService) liveTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, validationError("team %d does not exist", id)
		}
		return nil, storageError("load team", err)
	}
	if team.IsDeleted {
		return nil, validationError("team %d does not exist", id)
	}
	return team, nil
}
