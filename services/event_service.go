package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/matchday/broadcast"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

type RecordEventInput struct {
	Kind       models.EventKind `json:"kind" validate:"required,oneof=goal own_goal penalty_goal yellow_card red_card substitution note"`
	TeamID     int              `json:"teamId" validate:"required,gt=0"`
	PlayerID   *int             `json:"playerId" validate:"omitempty,gt=0"`
	Minute     *int             `json:"minute" validate:"omitempty,min=0,max=200"`
	OccurredAt *time.Time       `json:"occurredAt"`
	Notes      *string          `json:"notes" validate:"omitempty,max=500"`
}

// EventService maintains the match timeline.
type EventService interface {
	RecordEvent(ctx context.Context, actor models.Actor, matchID int, input RecordEventInput) (*models.MatchEvent, error)
	ListEvents(ctx context.Context, matchID, limit, offset int) ([]*models.MatchEvent, error)
	DeleteEvent(ctx context.Context, actor models.Actor, matchID, eventID int) error
}

type eventService struct {
	matchRepo  repositories.MatchRepository
	stateRepo  repositories.MatchStateRepository
	eventRepo  repositories.EventRepository
	playerRepo repositories.PlayerRepository
	notifier   broadcast.Notifier
	now        func() time.Time
	logger     *slog.Logger
}

func NewEventService(
	matchRepo repositories.MatchRepository,
	stateRepo repositories.MatchStateRepository,
	eventRepo repositories.EventRepository,
	playerRepo repositories.PlayerRepository,
	notifier broadcast.Notifier,
	opts ...Option,
) EventService {
	o := buildOptions(opts)
	return &eventService{
		matchRepo:  matchRepo,
		stateRepo:  stateRepo,
		eventRepo:  eventRepo,
		playerRepo: playerRepo,
		notifier:   notifier,
		now:        o.now,
		logger:     o.logger,
	}
}

func (s *eventService) RecordEvent(ctx context.Context, actor models.Actor, matchID int, input RecordEventInput) (*models.MatchEvent, error) {
	match, err := authorizeMatch(ctx, s.matchRepo, actor, matchID)
	if err != nil {
		return nil, err
	}

	if !input.Kind.Valid() {
		return nil, validationError("unknown event kind %q", input.Kind)
	}
	if _, ok := match.SideOf(input.TeamID); !ok {
		return nil, validationError("team %d does not play in match %d", input.TeamID, matchID)
	}
	if input.PlayerID != nil {
		player, err := s.playerRepo.GetByID(ctx, nil, *input.PlayerID)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return nil, validationError("player %d does not exist", *input.PlayerID)
			}
			return nil, storageError("load player", err)
		}
		if player.TeamID != input.TeamID {
			return nil, validationError("player %d is not in team %d", player.ID, input.TeamID)
		}
	}

	now := s.now().UTC()
	state, err := loadState(ctx, nil, s.stateRepo, matchID, now)
	if err != nil {
		return nil, err
	}
	if state.Status == models.MatchCancelled {
		return nil, fmt.Errorf("%w: match %d is cancelled", ErrInvalidStateTransition, matchID)
	}

	occurredAt := now
	if input.OccurredAt != nil {
		occurredAt = input.OccurredAt.UTC()
	}

	event := &models.MatchEvent{
		MatchID:         matchID,
		Kind:            input.Kind,
		TeamID:          input.TeamID,
		PlayerID:        input.PlayerID,
		Minute:          input.Minute,
		OccurredAt:      occurredAt,
		Notes:           input.Notes,
		CreatedByUserID: actor.UserID,
		CreatedAt:       now,
	}
	if err := s.eventRepo.Create(ctx, nil, event); err != nil {
		return nil, storageError("record event", err)
	}

	notify(s.notifier, s.logger, matchID, broadcast.EventMatchEventRecorded, event)
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, matchID, limit, offset int) ([]*models.MatchEvent, error) {
	if _, err := s.matchRepo.GetByID(ctx, nil, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, storageError("load match", err)
	}
	if limit <= 0 || limit > SnapshotEventLimit {
		limit = SnapshotEventLimit
	}
	events, err := s.eventRepo.List(ctx, matchID, limit, offset)
	if err != nil {
		return nil, storageError("list events", err)
	}
	return events, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, actor models.Actor, matchID, eventID int) error {
	if _, err := authorizeMatch(ctx, s.matchRepo, actor, matchID); err != nil {
		return err
	}
	if err := s.eventRepo.SoftDelete(ctx, nil, matchID, eventID, actor.UserID, s.now().UTC()); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return storageError("delete event", err)
	}

	notify(s.notifier, s.logger, matchID, broadcast.EventMatchEventDeleted, map[string]int{
		"matchId": matchID,
		"eventId": eventID,
	})
	return nil
}
