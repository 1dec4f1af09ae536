package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/models"
)

var ErrMatchStateNotFound = errors.New("match state not found")

type MatchStateRepository interface {
	// Get returns ErrMatchStateNotFound for a match that has never
	// transitioned.
	Get(ctx context.Context, exec SQLExecutor, matchID int) (*models.MatchState, error)
	// Upsert materialises the row on first use and overwrites it afterwards.
	Upsert(ctx context.Context, exec SQLExecutor, state *models.MatchState) error
}

type sqlMatchStateRepository struct {
	baseRepository
}

func NewMatchStateRepository(db *sql.DB) MatchStateRepository {
	return &sqlMatchStateRepository{baseRepository{db: db}}
}

func (r *sqlMatchStateRepository) Get(ctx context.Context, exec SQLExecutor, matchID int) (*models.MatchState, error) {
	query := `
		SELECT match_id, status, current_period, current_period_type, total_elapsed_seconds,
			match_started_at, match_ended_at, home_score, away_score, cancel_reason, updated_at
		FROM match_states
		WHERE match_id = $1`

	var (
		st         models.MatchState
		periodType sql.NullString
	)
	err := r.getExecutor(exec).QueryRowContext(ctx, query, matchID).Scan(
		&st.MatchID,
		&st.Status,
		&st.CurrentPeriod,
		&periodType,
		&st.TotalElapsedSeconds,
		&st.MatchStartedAt,
		&st.MatchEndedAt,
		&st.HomeScore,
		&st.AwayScore,
		&st.CancelReason,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchStateNotFound
		}
		return nil, fmt.Errorf("failed to get state of match %d: %w", matchID, err)
	}
	if periodType.Valid {
		pt := models.PeriodType(periodType.String)
		st.CurrentPeriodType = &pt
	}
	return &st, nil
}

func (r *sqlMatchStateRepository) Upsert(ctx context.Context, exec SQLExecutor, state *models.MatchState) error {
	query := `
		INSERT INTO match_states (match_id, status, current_period, current_period_type, total_elapsed_seconds,
			match_started_at, match_ended_at, home_score, away_score, cancel_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (match_id) DO UPDATE SET
			status = excluded.status,
			current_period = excluded.current_period,
			current_period_type = excluded.current_period_type,
			total_elapsed_seconds = excluded.total_elapsed_seconds,
			match_started_at = excluded.match_started_at,
			match_ended_at = excluded.match_ended_at,
			home_score = excluded.home_score,
			away_score = excluded.away_score,
			cancel_reason = excluded.cancel_reason,
			updated_at = excluded.updated_at`

	var periodType any
	if state.CurrentPeriodType != nil {
		periodType = string(*state.CurrentPeriodType)
	}

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		state.MatchID,
		string(state.Status),
		intPtrArg(state.CurrentPeriod),
		periodType,
		state.TotalElapsedSeconds,
		utcPtr(state.MatchStartedAt),
		utcPtr(state.MatchEndedAt),
		intPtrArg(state.HomeScore),
		intPtrArg(state.AwayScore),
		stringPtrArg(state.CancelReason),
		utc(state.UpdatedAt),
	)
	if err != nil {
		return mapConstraintError(fmt.Sprintf("upsert state of match %d", state.MatchID), err)
	}
	return nil
}
