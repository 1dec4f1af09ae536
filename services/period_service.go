package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/matchday/broadcast"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

// PeriodService tracks the timed segments of a match and keeps the match
// clock in MatchState consistent with them.
type PeriodService interface {
	StartPeriod(ctx context.Context, actor models.Actor, matchID int, periodType string) (*models.PeriodView, error)
	EndPeriod(ctx context.Context, actor models.Actor, matchID, periodID int) (*models.PeriodView, error)
	CalculateElapsedTime(ctx context.Context, actor models.Actor, matchID int) (int64, error)
	// GetActivePeriod returns (nil, nil) when no period is running.
	GetActivePeriod(ctx context.Context, actor models.Actor, matchID int) (*models.PeriodView, error)
	GetCurrentPeriod(ctx context.Context, actor models.Actor, matchID int) (*models.PeriodView, error)
	ListPeriods(ctx context.Context, actor models.Actor, matchID int) ([]models.PeriodView, error)
	DeletePeriod(ctx context.Context, actor models.Actor, matchID, periodID int) error
}

// StateSummary is the aggregate match clock sent along with period events.
type StateSummary struct {
	Status              models.MatchStatus `json:"status"`
	CurrentPeriod       *int               `json:"currentPeriod"`
	CurrentPeriodType   *models.PeriodType `json:"currentPeriodType"`
	TotalElapsedSeconds int64              `json:"totalElapsedSeconds"`
}

func summarize(st *models.MatchState) *StateSummary {
	return &StateSummary{
		Status:              st.Status,
		CurrentPeriod:       st.CurrentPeriod,
		CurrentPeriodType:   st.CurrentPeriodType,
		TotalElapsedSeconds: st.TotalElapsedSeconds,
	}
}

type periodEvent struct {
	MatchID    int                `json:"matchId"`
	Period     *models.PeriodView `json:"period"`
	MatchState *StateSummary      `json:"matchState,omitempty"`
}

type periodService struct {
	db         *sql.DB
	matchRepo  repositories.MatchRepository
	stateRepo  repositories.MatchStateRepository
	periodRepo repositories.PeriodRepository
	notifier   broadcast.Notifier
	now        func() time.Time
	logger     *slog.Logger
}

func NewPeriodService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	stateRepo repositories.MatchStateRepository,
	periodRepo repositories.PeriodRepository,
	notifier broadcast.Notifier,
	opts ...Option,
) PeriodService {
	o := buildOptions(opts)
	return &periodService{
		db:         db,
		matchRepo:  matchRepo,
		stateRepo:  stateRepo,
		periodRepo: periodRepo,
		notifier:   notifier,
		now:        o.now,
		logger:     o.logger,
	}
}

func (s *periodService) StartPeriod(ctx context.Context, actor models.Actor, matchID int, periodType string) (*models.PeriodView, error) {
	if _, err := authorizeMatch(ctx, s.matchRepo, actor, matchID); err != nil {
		return nil, err
	}

	pt, err := models.ParsePeriodType(periodType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	now := s.now().UTC()
	var (
		period *models.Period
		state  *models.MatchState
	)

	// Check, numbering and write share one transaction; the unique indexes
	// on periods catch whatever a concurrent writer slips in between.
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		st, err := loadState(ctx, tx, s.stateRepo, matchID, now)
		if err != nil {
			return err
		}
		if st.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot start a period on a %s match", ErrInvalidStateTransition, st.Status)
		}

		active, err := s.periodRepo.FindActive(ctx, tx, matchID)
		if err != nil {
			return storageError("find active period", err)
		}
		if active != nil {
			return ErrPeriodAlreadyActive
		}

		last, err := s.periodRepo.MaxPeriodNumber(ctx, tx, matchID, pt)
		if err != nil {
			return storageError("allocate period number", err)
		}

		p := &models.Period{
			MatchID:         matchID,
			PeriodNumber:    last + 1,
			PeriodType:      pt,
			StartedAt:       &now,
			CreatedByUserID: actor.UserID,
			UpdatedAt:       now,
		}
		if err := s.periodRepo.UpsertStarted(ctx, tx, p); err != nil {
			if errors.Is(err, repositories.ErrPeriodConflict) {
				return ErrPeriodAlreadyActive
			}
			return storageError("start period", err)
		}

		// Only regular periods move the match clock's period counter.
		if pt == models.PeriodRegular {
			number := p.PeriodNumber
			st.CurrentPeriod = &number
			st.CurrentPeriodType = &pt
			st.UpdatedAt = now
			if err := s.stateRepo.Upsert(ctx, tx, st); err != nil {
				return storageError("update match state", err)
			}
		}

		period, state = p, st
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("period started",
		slog.Int("match_id", matchID), slog.Int("period_id", period.ID),
		slog.Int("period_number", period.PeriodNumber), slog.String("period_type", pt.APIName()))

	view := period.View()
	notify(s.notifier, s.logger, matchID, broadcast.EventPeriodStarted, periodEvent{
		MatchID: matchID, Period: view, MatchState: summarize(state),
	})
	return view, nil
}

func (s *periodService) EndPeriod(ctx context.Context, actor models.Actor, matchID, periodID int) (*models.PeriodView, error) {
	if _, err := authorizeMatch(ctx, s.matchRepo, actor, matchID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var (
		period *models.Period
		state  *models.MatchState
	)

	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := s.periodRepo.GetByID(ctx, tx, matchID, periodID)
		if err != nil {
			if errors.Is(err, repositories.ErrPeriodNotFound) {
				return ErrPeriodNotFound
			}
			return storageError("load period", err)
		}

		st, err := settlePeriod(ctx, tx, s.periodRepo, s.stateRepo, p, now)
		if err != nil {
			return err
		}

		// No clock is running any more, whatever the period type was.
		st.Status = models.MatchPaused
		if err := s.stateRepo.Upsert(ctx, tx, st); err != nil {
			return storageError("update match state", err)
		}

		period, state = p, st
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("period ended",
		slog.Int("match_id", matchID), slog.Int("period_id", period.ID),
		slog.Int64("duration_seconds", *period.DurationSeconds),
		slog.Int64("total_elapsed_seconds", state.TotalElapsedSeconds))

	view := period.View()
	notify(s.notifier, s.logger, matchID, broadcast.EventPeriodEnded, periodEvent{
		MatchID: matchID, Period: view, MatchState: summarize(state),
	})
	return view, nil
}

// settlePeriod ends p at now and recomputes the match total. The returned
// state carries the new total but is not yet persisted.
func settlePeriod(
	ctx context.Context,
	tx *sql.Tx,
	periods repositories.PeriodRepository,
	states repositories.MatchStateRepository,
	p *models.Period,
	now time.Time,
) (*models.MatchState, error) {
	if p.EndedAt != nil {
		return nil, ErrPeriodAlreadyEnded
	}
	if p.StartedAt == nil {
		return nil, ErrPeriodNeverStarted
	}

	duration := ceilSeconds(now.Sub(*p.StartedAt))
	p.EndedAt = &now
	p.DurationSeconds = &duration
	p.UpdatedAt = now
	if err := periods.MarkEnded(ctx, tx, p); err != nil {
		if errors.Is(err, repositories.ErrPeriodNotActive) {
			return nil, ErrPeriodAlreadyEnded
		}
		return nil, storageError("end period", err)
	}

	total, err := periods.SumCompletedDurations(ctx, tx, p.MatchID)
	if err != nil {
		return nil, storageError("sum period durations", err)
	}

	st, err := loadState(ctx, tx, states, p.MatchID, now)
	if err != nil {
		return nil, err
	}
	st.TotalElapsedSeconds = total
	st.UpdatedAt = now
	return st, nil
}

func (s *periodService) CalculateElapsedTime(ctx context.Context, actor models.Actor, matchID int) (int64, error) {
	if _, err := authorizeMatch(ctx, s.matchRepo, actor, matchID); err != nil {
		return 0, err
	}

	total, err := s.periodRepo.SumCompletedDurations(ctx, nil, matchID)
	if err != nil {
		return 0, storageError("sum period durations", err)
	}

	active, err := s.periodRepo.FindActive(ctx, nil, matchID)
	if err != nil {
		return 0, storageError("find active period", err)
	}
	if active != nil {
		// A running period is estimated downwards; settling rounds up.
		total += floorSeconds(s.now().Sub(*active.StartedAt))
	}
	return total, nil
}

func (s *periodService) GetActivePeriod(ctx context.Context, actor models.Actor, matchID int) (*models.PeriodView, error) {
	if _, err := authorizeMatch(ctx, s.matchRepo, actor, matchID); err != nil {
		return nil, err
	}

	active, err := s.periodRepo.FindActive(ctx, nil, matchID)
	if err != nil {
		return nil, storageError("find active period", err)
	}
	return active.View(), nil
}

func (s *periodService) GetCurrentPeriod(ctx context.Context, actor models.Actor, matchID int) (*models.PeriodView, error) {
	return s.GetActivePeriod(ctx, actor, matchID)
}

func (s *periodService) ListPeriods(ctx context.Context, actor models.Actor, matchID int) ([]models.PeriodView, error) {
	if _, err := authorizeMatch(ctx, s.matchRepo, actor, matchID); err != nil {
		return nil, err
	}

	periods, err := s.periodRepo.ListByMatch(ctx, nil, matchID)
	if err != nil {
		return nil, storageError("list periods", err)
	}
	return models.PeriodViews(periods), nil
}

// DeletePeriod soft-deletes a period. Settled totals on MatchState are left
// as they were.
func (s *periodService) DeletePeriod(ctx context.Context, actor models.Actor, matchID, periodID int) error {
	if _, err := authorizeMatch(ctx, s.matchRepo, actor, matchID); err != nil {
		return err
	}

	err := s.periodRepo.SoftDelete(ctx, nil, matchID, periodID, actor.UserID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrPeriodNotFound) {
			return ErrPeriodNotFound
		}
		return storageError("delete period", err)
	}

	s.logger.Info("period deleted", slog.Int("match_id", matchID), slog.Int("period_id", periodID), slog.Int("user_id", actor.UserID))
	notify(s.notifier, s.logger, matchID, broadcast.EventPeriodDeleted, map[string]int{
		"matchId":  matchID,
		"periodId": periodID,
	})
	return nil
}
