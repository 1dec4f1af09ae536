package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/matchday/models"
)

var (
	ErrPeriodNotFound = errors.New("period not found")
	// ErrPeriodConflict means the natural key or the one-active-period index
	// is already held by a live row.
	ErrPeriodConflict  = errors.New("period conflicts with an existing live period")
	ErrPeriodNotActive = errors.New("period is not active")
)

type PeriodRepository interface {
	// FindActive returns (nil, nil) when the match has no running period.
	FindActive(ctx context.Context, exec SQLExecutor, matchID int) (*models.Period, error)
	// MaxPeriodNumber is the highest non-deleted number for the type, or 0.
	MaxPeriodNumber(ctx context.Context, exec SQLExecutor, matchID int, periodType models.PeriodType) (int, error)
	// UpsertStarted inserts a started period, or restores a soft-deleted row
	// holding the same (match, number, type) key, in a single statement.
	UpsertStarted(ctx context.Context, exec SQLExecutor, period *models.Period) error
	GetByID(ctx context.Context, exec SQLExecutor, matchID, id int) (*models.Period, error)
	MarkEnded(ctx context.Context, exec SQLExecutor, period *models.Period) error
	SumCompletedDurations(ctx context.Context, exec SQLExecutor, matchID int) (int64, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Period, error)
	SoftDelete(ctx context.Context, exec SQLExecutor, matchID, id, actorID int, at time.Time) error
}

type sqlPeriodRepository struct {
	baseRepository
}

func NewPeriodRepository(db *sql.DB) PeriodRepository {
	return &sqlPeriodRepository{baseRepository{db: db}}
}

const periodColumns = `id, match_id, period_number, period_type, started_at, ended_at, duration_seconds,
	created_by_user_id, created_at, updated_at, is_deleted, deleted_at, deleted_by_user_id`

func scanPeriod(row interface{ Scan(...any) error }) (*models.Period, error) {
	var (
		p          models.Period
		periodType string
	)
	err := row.Scan(&p.ID, &p.MatchID, &p.PeriodNumber, &periodType, &p.StartedAt, &p.EndedAt, &p.DurationSeconds,
		&p.CreatedByUserID, &p.CreatedAt, &p.UpdatedAt, &p.IsDeleted, &p.DeletedAt, &p.DeletedByUserID)
	if err != nil {
		return nil, err
	}
	p.PeriodType = models.PeriodType(periodType)
	return &p, nil
}

func (r *sqlPeriodRepository) FindActive(ctx context.Context, exec SQLExecutor, matchID int) (*models.Period, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM periods
		WHERE match_id = $1 AND started_at IS NOT NULL AND ended_at IS NULL AND is_deleted = FALSE
		ORDER BY started_at DESC
		LIMIT 1`

	p, err := scanPeriod(r.getExecutor(exec).QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active period for match %d: %w", matchID, err)
	}
	return p, nil
}

func (r *sqlPeriodRepository) MaxPeriodNumber(ctx context.Context, exec SQLExecutor, matchID int, periodType models.PeriodType) (int, error) {
	query := `
		SELECT COALESCE(MAX(period_number), 0)
		FROM periods
		WHERE match_id = $1 AND period_type = $2 AND is_deleted = FALSE`

	var last int
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, matchID, string(periodType)).Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to get max period number for match %d: %w", matchID, err)
	}
	return last, nil
}

func (r *sqlPeriodRepository) UpsertStarted(ctx context.Context, exec SQLExecutor, period *models.Period) error {
	// The WHERE on the update arm only lets a soft-deleted row be reclaimed;
	// a conflict with a live row updates nothing and returns no row.
	query := `
		INSERT INTO periods (match_id, period_number, period_type, started_at, ended_at, duration_seconds,
			created_by_user_id, created_at, updated_at, is_deleted, deleted_at, deleted_by_user_id)
		VALUES ($1, $2, $3, $4, NULL, NULL, $5, $6, $6, FALSE, NULL, NULL)
		ON CONFLICT (match_id, period_number, period_type) DO UPDATE SET
			started_at = excluded.started_at,
			ended_at = NULL,
			duration_seconds = NULL,
			updated_at = excluded.updated_at,
			is_deleted = FALSE,
			deleted_at = NULL,
			deleted_by_user_id = NULL
		WHERE periods.is_deleted = TRUE
		RETURNING id`

	executor := r.getExecutor(exec)
	var id int
	err := executor.QueryRowContext(ctx, query,
		period.MatchID,
		period.PeriodNumber,
		string(period.PeriodType),
		utcPtr(period.StartedAt),
		period.CreatedByUserID,
		utc(period.UpdatedAt),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return ErrPeriodConflict
		}
		return mapConstraintError("upsert started period", err)
	}

	// Re-read so a restored row reports its original created_at.
	stored, err := r.GetByID(ctx, executor, period.MatchID, id)
	if err != nil {
		return err
	}
	*period = *stored
	return nil
}

func (r *sqlPeriodRepository) GetByID(ctx context.Context, exec SQLExecutor, matchID, id int) (*models.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM periods WHERE id = $1 AND match_id = $2 AND is_deleted = FALSE`

	p, err := scanPeriod(r.getExecutor(exec).QueryRowContext(ctx, query, id, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPeriodNotFound
		}
		return nil, fmt.Errorf("failed to get period %d: %w", id, err)
	}
	return p, nil
}

func (r *sqlPeriodRepository) MarkEnded(ctx context.Context, exec SQLExecutor, period *models.Period) error {
	query := `
		UPDATE periods
		SET ended_at = $1, duration_seconds = $2, updated_at = $3
		WHERE id = $4 AND match_id = $5 AND ended_at IS NULL AND is_deleted = FALSE`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		utcPtr(period.EndedAt),
		int64PtrArg(period.DurationSeconds),
		utc(period.UpdatedAt),
		period.ID,
		period.MatchID,
	)
	if err != nil {
		return fmt.Errorf("failed to end period %d: %w", period.ID, err)
	}
	return checkAffectedRows(result, ErrPeriodNotActive)
}

func (r *sqlPeriodRepository) SumCompletedDurations(ctx context.Context, exec SQLExecutor, matchID int) (int64, error) {
	query := `
		SELECT COALESCE(SUM(duration_seconds), 0)
		FROM periods
		WHERE match_id = $1 AND ended_at IS NOT NULL AND is_deleted = FALSE`

	var total int64
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, matchID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum period durations for match %d: %w", matchID, err)
	}
	return total, nil
}

func (r *sqlPeriodRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Period, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM periods
		WHERE match_id = $1 AND is_deleted = FALSE
		ORDER BY started_at, id`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods for match %d: %w", matchID, err)
	}
	defer rows.Close()

	periods := make([]*models.Period, 0)
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan period row: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating period rows: %w", err)
	}
	return periods, nil
}

func (r *sqlPeriodRepository) SoftDelete(ctx context.Context, exec SQLExecutor, matchID, id, actorID int, at time.Time) error {
	query := `
		UPDATE periods
		SET is_deleted = TRUE, deleted_at = $1, deleted_by_user_id = $2, updated_at = $1
		WHERE id = $3 AND match_id = $4 AND is_deleted = FALSE`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, utc(at), actorID, id, matchID)
	if err != nil {
		return fmt.Errorf("failed to soft delete period %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPeriodNotFound)
}
