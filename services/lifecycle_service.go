package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Dosada05/matchday/broadcast"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
	"github.com/Dosada05/matchday/storage"
)

const defaultCancelReason = "No reason provided"

const archiveTimeout = 30 * time.Second

// CompleteInput carries the optional final score.
type CompleteInput struct {
	HomeScore *int `json:"homeScore" validate:"omitempty,min=0"`
	AwayScore *int `json:"awayScore" validate:"omitempty,min=0"`
}

// LifecycleService drives the match status state machine.
type LifecycleService interface {
	Start(ctx context.Context, actor models.Actor, matchID int) (*models.MatchState, error)
	Pause(ctx context.Context, actor models.Actor, matchID int) (*models.MatchState, error)
	Resume(ctx context.Context, actor models.Actor, matchID int) (*models.MatchState, error)
	Complete(ctx context.Context, actor models.Actor, matchID int, input CompleteInput) (*models.MatchState, error)
	Cancel(ctx context.Context, actor models.Actor, matchID int, reason string) (*models.MatchState, error)
	// GetState is a public read; unknown or deleted matches are not found.
	GetState(ctx context.Context, matchID int) (*models.MatchState, error)
}

type statusChangedEvent struct {
	MatchID int                `json:"matchId"`
	From    models.MatchStatus `json:"from"`
	Action  string             `json:"action"`
	State   *models.MatchState `json:"state"`
	// SettledPeriod is set when completing or cancelling stopped a running period.
	SettledPeriod *models.PeriodView `json:"settledPeriod,omitempty"`
}

type lifecycleService struct {
	db         *sql.DB
	matchRepo  repositories.MatchRepository
	stateRepo  repositories.MatchStateRepository
	periodRepo repositories.PeriodRepository
	notifier   broadcast.Notifier
	snapshots  SnapshotService
	archive    storage.FileUploader
	now        func() time.Time
	logger     *slog.Logger
}

// NewLifecycleService wires the state machine. snapshots and archive may be
// nil, which disables the final report upload.
func NewLifecycleService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	stateRepo repositories.MatchStateRepository,
	periodRepo repositories.PeriodRepository,
	notifier broadcast.Notifier,
	snapshots SnapshotService,
	archive storage.FileUploader,
	opts ...Option,
) LifecycleService {
	o := buildOptions(opts)
	return &lifecycleService{
		db:         db,
		matchRepo:  matchRepo,
		stateRepo:  stateRepo,
		periodRepo: periodRepo,
		notifier:   notifier,
		snapshots:  snapshots,
		archive:    archive,
		now:        o.now,
		logger:     o.logger,
	}
}

func (s *lifecycleService) Start(ctx context.Context, actor models.Actor, matchID int) (*models.MatchState, error) {
	return s.transition(ctx, actor, matchID, models.ActionStart, markStarted)
}

func (s *lifecycleService) Pause(ctx context.Context, actor models.Actor, matchID int) (*models.MatchState, error) {
	return s.transition(ctx, actor, matchID, models.ActionPause, nil)
}

func (s *lifecycleService) Resume(ctx context.Context, actor models.Actor, matchID int) (*models.MatchState, error) {
	return s.transition(ctx, actor, matchID, models.ActionResume, markStarted)
}

func (s *lifecycleService) Complete(ctx context.Context, actor models.Actor, matchID int, input CompleteInput) (*models.MatchState, error) {
	if (input.HomeScore == nil) != (input.AwayScore == nil) {
		return nil, validationError("homeScore and awayScore must be given together")
	}
	if (input.HomeScore != nil && *input.HomeScore < 0) || (input.AwayScore != nil && *input.AwayScore < 0) {
		return nil, validationError("scores cannot be negative")
	}

	state, err := s.transition(ctx, actor, matchID, models.ActionComplete, func(st *models.MatchState, now time.Time) {
		st.MatchEndedAt = &now
		st.HomeScore = input.HomeScore
		st.AwayScore = input.AwayScore
	})
	if err != nil {
		return nil, err
	}

	s.archiveReport(ctx, matchID)
	return state, nil
}

func (s *lifecycleService) Cancel(ctx context.Context, actor models.Actor, matchID int, reason string) (*models.MatchState, error) {
	if reason == "" {
		reason = defaultCancelReason
	}
	return s.transition(ctx, actor, matchID, models.ActionCancel, func(st *models.MatchState, now time.Time) {
		st.MatchEndedAt = &now
		st.CancelReason = &reason
	})
}

func (s *lifecycleService) GetState(ctx context.Context, matchID int) (*models.MatchState, error) {
	if _, err := s.matchRepo.GetByID(ctx, nil, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, storageError("load match", err)
	}
	return loadState(ctx, nil, s.stateRepo, matchID, s.now().UTC())
}

func markStarted(st *models.MatchState, now time.Time) {
	if st.MatchStartedAt == nil {
		st.MatchStartedAt = &now
	}
}

// transition applies action inside one transaction. Terminal actions also
// settle a period that is still running so the clock total stays complete.
func (s *lifecycleService) transition(
	ctx context.Context,
	actor models.Actor,
	matchID int,
	action models.LifecycleAction,
	mutate func(st *models.MatchState, now time.Time),
) (*models.MatchState, error) {
	if _, err := authorizeMatch(ctx, s.matchRepo, actor, matchID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var (
		state   *models.MatchState
		from    models.MatchStatus
		settled *models.Period
	)

	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		st, err := loadState(ctx, tx, s.stateRepo, matchID, now)
		if err != nil {
			return err
		}

		next, err := models.NextStatus(st.Status, action)
		if err != nil {
			return err
		}
		from = st.Status

		if next.IsTerminal() {
			active, err := s.periodRepo.FindActive(ctx, tx, matchID)
			if err != nil {
				return storageError("find active period", err)
			}
			if active != nil {
				if st, err = settlePeriod(ctx, tx, s.periodRepo, s.stateRepo, active, now); err != nil {
					return err
				}
				settled = active
			}
		}

		st.Status = next
		st.UpdatedAt = now
		if mutate != nil {
			mutate(st, now)
		}
		if err := s.stateRepo.Upsert(ctx, tx, st); err != nil {
			return storageError("update match state", err)
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match status changed",
		slog.Int("match_id", matchID), slog.String("action", string(action)),
		slog.String("from", string(from)), slog.String("to", string(state.Status)),
		slog.Int("user_id", actor.UserID))

	notify(s.notifier, s.logger, matchID, broadcast.EventMatchStatusChanged, statusChangedEvent{
		MatchID:       matchID,
		From:          from,
		Action:        string(action),
		State:         state,
		SettledPeriod: settled.View(),
	})
	return state, nil
}

// archiveReport uploads the final snapshot. Failures are logged only; the
// match is already completed.
func (s *lifecycleService) archiveReport(ctx context.Context, matchID int) {
	if s.archive == nil || s.snapshots == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	snap, err := s.snapshots.BuildSnapshot(ctx, matchID)
	if err != nil {
		s.logger.Warn("final report: snapshot failed", slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}
	body, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("final report: encoding failed", slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}

	key := storage.FinalReportKey(matchID)
	result, err := s.archive.Upload(ctx, key, storage.ContentTypeJSON, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("final report: upload failed", slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}
	s.logger.Info("final report archived", slog.Int("match_id", matchID), slog.String("key", result.Key), slog.String("location", result.Location))
}
