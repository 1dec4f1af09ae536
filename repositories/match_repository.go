package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/matchday/models"
)

var ErrMatchNotFound = errors.New("match not found")

// MatchFilter narrows List. Zero values mean "no filter".
type MatchFilter struct {
	Status *models.MatchStatus
	TeamID *int
	Limit  int
	Offset int
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	// GetByID ignores soft-deleted matches.
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	List(ctx context.Context, filter MatchFilter) ([]*models.Match, error)
	SoftDelete(ctx context.Context, exec SQLExecutor, id, actorID int, at time.Time) error
}

type sqlMatchRepository struct {
	baseRepository
}

func NewMatchRepository(db *sql.DB) MatchRepository {
	return &sqlMatchRepository{baseRepository{db: db}}
}

const matchColumns = `m.id, m.home_team_id, m.away_team_id, m.kickoff_at, m.competition, m.venue,
	m.duration_minutes, m.period_format, m.created_by_user_id, m.created_at, m.updated_at,
	m.is_deleted, m.deleted_at, m.deleted_by_user_id`

func scanMatch(row interface{ Scan(...any) error }) (*models.Match, error) {
	var m models.Match
	err := row.Scan(&m.ID, &m.HomeTeamID, &m.AwayTeamID, &m.KickoffAt, &m.Competition, &m.Venue,
		&m.DurationMinutes, &m.PeriodFormat, &m.CreatedByUserID, &m.CreatedAt, &m.UpdatedAt,
		&m.IsDeleted, &m.DeletedAt, &m.DeletedByUserID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *sqlMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches (home_team_id, away_team_id, kickoff_at, competition, venue,
			duration_minutes, period_format, created_by_user_id, created_at, updated_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, FALSE)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		match.HomeTeamID,
		match.AwayTeamID,
		utc(match.KickoffAt),
		stringPtrArg(match.Competition),
		stringPtrArg(match.Venue),
		match.DurationMinutes,
		string(match.PeriodFormat),
		match.CreatedByUserID,
		utc(match.CreatedAt),
	).Scan(&match.ID)
	if err != nil {
		return mapConstraintError("create match", err)
	}
	match.UpdatedAt = match.CreatedAt
	return nil
}

func (r *sqlMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches m WHERE m.id = $1 AND m.is_deleted = FALSE`

	m, err := scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return m, nil
}

func (r *sqlMatchRepository) List(ctx context.Context, filter MatchFilter) ([]*models.Match, error) {
	var (
		where = []string{"m.is_deleted = FALSE"}
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status), string(models.MatchScheduled))
		// Matches without a state row are implicitly scheduled.
		where = append(where, fmt.Sprintf("$%d = COALESCE(s.status, $%d)", len(args)-1, len(args)))
	}
	if filter.TeamID != nil {
		args = append(args, *filter.TeamID)
		where = append(where, fmt.Sprintf("(m.home_team_id = $%d OR m.away_team_id = $%d)", len(args), len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM matches m LEFT JOIN match_states s ON s.match_id = m.id
		WHERE %s ORDER BY m.kickoff_at, m.id LIMIT $%d OFFSET $%d`,
		matchColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *sqlMatchRepository) SoftDelete(ctx context.Context, exec SQLExecutor, id, actorID int, at time.Time) error {
	query := `
		UPDATE matches
		SET is_deleted = TRUE, deleted_at = $1, deleted_by_user_id = $2, updated_at = $1
		WHERE id = $3 AND is_deleted = FALSE`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, utc(at), actorID, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
