package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/models"
)

var ErrTeamNotFound = errors.New("team not found")

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	List(ctx context.Context, limit, offset int) ([]*models.Team, error)
}

type sqlTeamRepository struct {
	baseRepository
}

func NewTeamRepository(db *sql.DB) TeamRepository {
	return &sqlTeamRepository{baseRepository{db: db}}
}

const teamColumns = `id, name, short_name, created_by_user_id, created_at, updated_at,
	is_deleted, deleted_at, deleted_by_user_id`

func scanTeam(row interface{ Scan(...any) error }) (*models.Team, error) {
	var t models.Team
	err := row.Scan(&t.ID, &t.Name, &t.ShortName, &t.CreatedByUserID, &t.CreatedAt, &t.UpdatedAt,
		&t.IsDeleted, &t.DeletedAt, &t.DeletedByUserID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *sqlTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	query := `
		INSERT INTO teams (name, short_name, created_by_user_id, created_at, updated_at, is_deleted)
		VALUES ($1, $2, $3, $4, $4, FALSE)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		team.Name, stringPtrArg(team.ShortName), team.CreatedByUserID, utc(team.CreatedAt),
	).Scan(&team.ID)
	if err != nil {
		return mapConstraintError("create team", err)
	}
	team.UpdatedAt = team.CreatedAt
	return nil
}

func (r *sqlTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`

	team, err := scanTeam(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", id, err)
	}
	return team, nil
}

func (r *sqlTeamRepository) List(ctx context.Context, limit, offset int) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE is_deleted = FALSE ORDER BY name, id LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team rows: %w", err)
	}
	return teams, nil
}
