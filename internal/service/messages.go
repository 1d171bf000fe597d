// messages.go - event announcements.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kintsugi/eventsync/internal/domain/model"
	"github.com/kintsugi/eventsync/internal/domain/rbac"
	"github.com/kintsugi/eventsync/internal/repository"
)

const (
	maxMessageTitleLen   = 255
	maxMessageContentLen = 10000
)

// MessageService posts and lists event announcements.
type MessageService struct {
	repo   repository.MessageRepository
	events *EventCache
	logger *slog.Logger
}

// NewMessageService creates the announcement service.
func NewMessageService(repo repository.MessageRepository, events *EventCache, logger *slog.Logger) *MessageService {
	return &MessageService{
		repo:   repo,
		events: events,
		logger: logger.With(slog.String("component", "message_service")),
	}
}

// PostRequest is a new announcement.
type PostRequest struct {
	Title    string
	Content  string
	Priority string
}

// List returns the event's announcements, newest first.
func (s *MessageService) List(ctx context.Context, eventID string) ([]*model.EventMessage, error) {
	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Post publishes an announcement. Only the event owner or an admin may post.
func (s *MessageService) Post(ctx context.Context, actor rbac.Actor, eventID string, req PostRequest) (*model.EventMessage, error) {
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrValidation)
	}
	if len([]rune(title)) > maxMessageTitleLen {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrValidation, maxMessageTitleLen)
	}
	if len([]rune(content)) > maxMessageContentLen {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrValidation, maxMessageContentLen)
	}
	priority, err := model.ParsePriority(req.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !rbac.Can(actor, rbac.PostAnnouncement, rbac.Subject{EventManagerID: event.ManagerID}) {
		return nil, fmt.Errorf("%w: post announcement on event %s", ErrForbidden, eventID)
	}

	msg := &model.EventMessage{
		EventID:     eventID,
		ManagerID:   actor.UserID,
		ManagerName: actor.DisplayName(),
		Title:       title,
		Content:     content,
		Priority:    priority,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.logger.Info("Announcement posted",
		slog.String("event_id", eventID),
		slog.String("message_id", msg.ID),
		slog.String("priority", string(priority)),
	)
	return msg, nil
}
