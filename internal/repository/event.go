package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kintsugi/eventsync/internal/domain/model"
)

type eventRepo struct {
	db DBTX
}

// NewEventRepository creates the events repository.
func NewEventRepository(db DBTX) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	query := `
		SELECT id, title, manager_id, status, start_date, end_date, created_at
		FROM events
		WHERE id = $1`

	e := &model.Event{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.ManagerID, &e.Status, &e.StartDate, &e.EndDate, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}
