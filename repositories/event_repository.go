package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/matchday/models"
)

var ErrEventNotFound = errors.New("match event not found")

type EventRepository interface {
	Create(ctx context.Context, exec SQLExecutor, event *models.MatchEvent) error
	GetByID(ctx context.Context, exec SQLExecutor, matchID, id int) (*models.MatchEvent, error)
	// List returns the timeline in chronological order.
	List(ctx context.Context, matchID, limit, offset int) ([]*models.MatchEvent, error)
	// ListRecent returns the newest limit events, still in chronological order.
	ListRecent(ctx context.Context, matchID, limit int) ([]*models.MatchEvent, error)
	SoftDelete(ctx context.Context, exec SQLExecutor, matchID, id, actorID int, at time.Time) error
}

type sqlEventRepository struct {
	baseRepository
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &sqlEventRepository{baseRepository{db: db}}
}

const eventColumns = `id, match_id, kind, team_id, player_id, minute, occurred_at, notes,
	created_by_user_id, created_at, updated_at, is_deleted, deleted_at, deleted_by_user_id`

func scanEvent(row interface{ Scan(...any) error }) (*models.MatchEvent, error) {
	var e models.MatchEvent
	err := row.Scan(&e.ID, &e.MatchID, &e.Kind, &e.TeamID, &e.PlayerID, &e.Minute, &e.OccurredAt, &e.Notes,
		&e.CreatedByUserID, &e.CreatedAt, &e.UpdatedAt, &e.IsDeleted, &e.DeletedAt, &e.DeletedByUserID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *sqlEventRepository) Create(ctx context.Context, exec SQLExecutor, event *models.MatchEvent) error {
	query := `
		INSERT INTO match_events (match_id, kind, team_id, player_id, minute, occurred_at, notes,
			created_by_user_id, created_at, updated_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, FALSE)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		event.MatchID,
		string(event.Kind),
		event.TeamID,
		intPtrArg(event.PlayerID),
		intPtrArg(event.Minute),
		utc(event.OccurredAt),
		stringPtrArg(event.Notes),
		event.CreatedByUserID,
		utc(event.CreatedAt),
	).Scan(&event.ID)
	if err != nil {
		return mapConstraintError("create match event", err)
	}
	event.UpdatedAt = event.CreatedAt
	return nil
}

func (r *sqlEventRepository) GetByID(ctx context.Context, exec SQLExecutor, matchID, id int) (*models.MatchEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM match_events WHERE id = $1 AND match_id = $2 AND is_deleted = FALSE`

	e, err := scanEvent(r.getExecutor(exec).QueryRowContext(ctx, query, id, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get match event %d: %w", id, err)
	}
	return e, nil
}

func (r *sqlEventRepository) List(ctx context.Context, matchID, limit, offset int) ([]*models.MatchEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM match_events
		WHERE match_id = $1 AND is_deleted = FALSE
		ORDER BY occurred_at, id
		LIMIT $2 OFFSET $3`

	return r.query(ctx, query, matchID, limit, offset)
}

func (r *sqlEventRepository) ListRecent(ctx context.Context, matchID, limit int) ([]*models.MatchEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM match_events
		WHERE match_id = $1 AND is_deleted = FALSE
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2`

	events, err := r.query(ctx, query, matchID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (r *sqlEventRepository) query(ctx context.Context, query string, args ...any) ([]*models.MatchEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list match events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.MatchEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match event rows: %w", err)
	}
	return events, nil
}

func (r *sqlEventRepository) SoftDelete(ctx context.Context, exec SQLExecutor, matchID, id, actorID int, at time.Time) error {
	query := `
		UPDATE match_events
		SET is_deleted = TRUE, deleted_at = $1, deleted_by_user_id = $2, updated_at = $1
		WHERE id = $3 AND match_id = $4 AND is_deleted = FALSE`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, utc(at), actorID, id, matchID)
	if err != nil {
		return fmt.Errorf("failed to soft delete match event %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}
