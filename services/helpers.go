package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/matchday/broadcast"
	"github.com/Dosada05/matchday/db"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
	"github.com/Dosada05/matchday/storage"
)

// Option configures the services that keep time or publish events.
type Option func(*options)

type options struct {
	now     func() time.Time
	logger  *slog.Logger
	archive storage.FileUploader
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithArchive lets match deletion remove the archived final report.
func WithArchive(archive storage.FileUploader) Option {
	return func(o *options) { o.archive = archive }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// --- Общие хелперы ---

// authorizeMatch loads the match and checks the actor may manage it. A
// missing match is reported as access denied so its existence is not leaked.
func authorizeMatch(ctx context.Context, matches repositories.MatchRepository, actor models.Actor, matchID int) (*models.Match, error) {
	match, err := matches.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: match %d", ErrAccessDenied, matchID)
		}
		return nil, storageError("load match", err)
	}
	if !canManage(actor, match) {
		return nil, fmt.Errorf("%w: match %d", ErrAccessDenied, matchID)
	}
	return match, nil
}

func canManage(actor models.Actor, match *models.Match) bool {
	return actor.IsAdmin() || match.CreatedByUserID == actor.UserID
}

// loadState returns the persisted state or the implicit SCHEDULED one.
func loadState(ctx context.Context, exec repositories.SQLExecutor, states repositories.MatchStateRepository, matchID int, now time.Time) (*models.MatchState, error) {
	state, err := states.Get(ctx, exec, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchStateNotFound) {
			return models.NewMatchState(matchID, now), nil
		}
		return nil, storageError("load match state", err)
	}
	return state, nil
}

// inTx runs fn in a transaction. Errors that do not already carry a kind are
// reported as storage failures.
func inTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) error {
	err := db.RunInTx(ctx, database, fn)
	if err != nil && ErrorKind(err) == KindUnknown {
		return storageError("transaction", err)
	}
	return err
}

// notify is best effort: the mutation is already committed.
func notify(n broadcast.Notifier, logger *slog.Logger, matchID int, eventType string, payload any) {
	if n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("broadcast failed", slog.Int("match_id", matchID), slog.String("event", eventType), slog.Any("panic", r))
		}
	}()
	n.Broadcast(matchID, eventType, payload)
}

// ceilSeconds counts any started second as a full one.
func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

func floorSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}
