package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

type CreateTeamInput struct {
	Name      string  `json:"name" validate:"required,min=2,max=100"`
	ShortName *string `json:"shortName" validate:"omitempty,min=2,max=10"`
}

type AddPlayerInput struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	ShirtNumber *int   `json:"shirtNumber" validate:"omitempty,min=1,max=99"`
}

type TeamService interface {
	CreateTeam(ctx context.Context, actor models.Actor, input CreateTeamInput) (*models.Team, error)
	GetTeam(ctx context.Context, id int) (*models.Team, error)
	ListTeams(ctx context.Context, limit, offset int) ([]*models.Team, error)
	AddPlayer(ctx context.Context, actor models.Actor, teamID int, input AddPlayerInput) (*models.Player, error)
	ListPlayers(ctx context.Context, teamID int) ([]*models.Player, error)
}

type teamService struct {
	teamRepo   repositories.TeamRepository
	playerRepo repositories.PlayerRepository
	now        func() time.Time
	logger     *slog.Logger
}

func NewTeamService(teamRepo repositories.TeamRepository, playerRepo repositories.PlayerRepository, opts ...Option) TeamService {
	o := buildOptions(opts)
	return &teamService{
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		now:        o.now,
		logger:     o.logger,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, actor models.Actor, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("team name is required")
	}

	team := &models.Team{
		Name:            name,
		ShortName:       input.ShortName,
		CreatedByUserID: actor.UserID,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.teamRepo.Create(ctx, nil, team); err != nil {
		return nil, storageError("create team", err)
	}
	s.logger.Info("team created", slog.Int("team_id", team.ID), slog.Int("user_id", actor.UserID))
	return team, nil
}

func (s *teamService) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	return s.getLiveTeam(ctx, id)
}

func (s *teamService) ListTeams(ctx context.Context, limit, offset int) ([]*models.Team, error) {
	teams, err := s.teamRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, storageError("list teams", err)
	}
	return teams, nil
}

func (s *teamService) AddPlayer(ctx context.Context, actor models.Actor, teamID int, input AddPlayerInput) (*models.Player, error) {
	team, err := s.getLiveTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && team.CreatedByUserID != actor.UserID {
		return nil, fmt.Errorf("%w: only the team owner can add players", ErrAccessDenied)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("player name is required")
	}

	player := &models.Player{
		TeamID:          teamID,
		Name:            name,
		ShirtNumber:     input.ShirtNumber,
		CreatedByUserID: actor.UserID,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.playerRepo.Create(ctx, nil, player); err != nil {
		return nil, storageError("add player", err)
	}
	return player, nil
}

func (s *teamService) ListPlayers(ctx context.Context, teamID int) ([]*models.Player, error) {
	if _, err := s.getLiveTeam(ctx, teamID); err != nil {
		return nil, err
	}
	players, err := s.playerRepo.ListByTeam(ctx, teamID, false)
	if err != nil {
		return nil, storageError("list players", err)
	}
	return players, nil
}

func (s *teamService) getLiveTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, storageError("load team", err)
	}
	if team.IsDeleted {
		return nil, ErrTeamNotFound
	}
	return team, nil
}
