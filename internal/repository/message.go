package repository

import (
	"context"
	"fmt"

	"github.com/kintsugi/eventsync/internal/domain/model"
)

type messageRepo struct {
	db DBTX
}

// NewMessageRepository creates the event_messages repository.
func NewMessageRepository(db DBTX) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, m *model.EventMessage) error {
	query := `
		INSERT INTO event_messages (event_id, manager_id, manager_name, title, content, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		m.EventID, m.ManagerID, m.ManagerName, m.Title, m.Content, string(m.Priority),
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create event message: %w", err)
	}
	return nil
}

func (r *messageRepo) ListByEvent(ctx context.Context, eventID string) ([]*model.EventMessage, error) {
	query := `
		SELECT id, event_id, manager_id, manager_name, title, content, priority, created_at, updated_at
		FROM event_messages
		WHERE event_id = $1
		ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event messages: %w", err)
	}
	defer rows.Close()

	var result []*model.EventMessage
	for rows.Next() {
		m := &model.EventMessage{}
		var priority string
		if err := rows.Scan(
			&m.ID, &m.EventID, &m.ManagerID, &m.ManagerName, &m.Title, &m.Content,
			&priority, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event message: %w", err)
		}
		m.Priority = model.Priority(priority)
		result = append(result, m)
	}
	return result, rows.Err()
}
