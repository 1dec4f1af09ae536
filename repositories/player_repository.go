package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/models"
)

var ErrPlayerNotFound = errors.New("player not found")

type PlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, player *models.Player) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error)
	// ListByTeam returns the squad ordered by shirt number. Soft-deleted
	// players are included only when includeDeleted is set, which the
	// snapshot builder needs to resolve names on historical events.
	ListByTeam(ctx context.Context, teamID int, includeDeleted bool) ([]*models.Player, error)
}

type sqlPlayerRepository struct {
	baseRepository
}

func NewPlayerRepository(db *sql.DB) PlayerRepository {
	return &sqlPlayerRepository{baseRepository{db: db}}
}

const playerColumns = `id, team_id, name, shirt_number, created_by_user_id, created_at, updated_at,
	is_deleted, deleted_at, deleted_by_user_id`

func scanPlayer(row interface{ Scan(...any) error }) (*models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.TeamID, &p.Name, &p.ShirtNumber, &p.CreatedByUserID, &p.CreatedAt, &p.UpdatedAt,
		&p.IsDeleted, &p.DeletedAt, &p.DeletedByUserID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *sqlPlayerRepository) Create(ctx context.Context, exec SQLExecutor, player *models.Player) error {
	query := `
		INSERT INTO players (team_id, name, shirt_number, created_by_user_id, created_at, updated_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $5, FALSE)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		player.TeamID, player.Name, intPtrArg(player.ShirtNumber), player.CreatedByUserID, utc(player.CreatedAt),
	).Scan(&player.ID)
	if err != nil {
		return mapConstraintError("create player", err)
	}
	player.UpdatedAt = player.CreatedAt
	return nil
}

func (r *sqlPlayerRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`

	p, err := scanPlayer(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player %d: %w", id, err)
	}
	return p, nil
}

func (r *sqlPlayerRepository) ListByTeam(ctx context.Context, teamID int, includeDeleted bool) ([]*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE team_id = $1 AND (is_deleted = FALSE OR $2)
		ORDER BY COALESCE(shirt_number, 999), name, id`

	rows, err := r.db.QueryContext(ctx, query, teamID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for team %d: %w", teamID, err)
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player rows: %w", err)
	}
	return players, nil
}
