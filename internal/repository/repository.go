// Package repository is the PostgreSQL data access layer.
// Plain SQL through pgx, no ORM.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kintsugi/eventsync/internal/domain/model"
)

// Repository errors.
var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned on a uniqueness or state conflict.
	ErrConflict = errors.New("conflict: record already exists or changed")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so repositories
// work inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TrackingRepository stores issued QR codes.
type TrackingRepository interface {
	// FindByIdentity returns the record with the given identity tuple.
	FindByIdentity(ctx context.Context, id model.Identity) (*model.TrackingRecord, error)
	// Reserve inserts rec with its placeholder image, marks it pending and
	// fills ID and timestamps. A duplicate identity returns ErrConflict.
	Reserve(ctx context.Context, rec *model.TrackingRecord) error
	// SetQRCode stores the final image of a record and clears pending.
	SetQRCode(ctx context.Context, id, qrCodeData string) error
	// GetDetails returns a record joined with its team name and event manager.
	GetDetails(ctx context.Context, id string) (*model.TrackingDetails, error)
	// MarkScanned moves an unscanned record to scanned in one statement.
	// ErrConflict means the record was already scanned.
	MarkScanned(ctx context.Context, id string, at time.Time, by, byName string) (*model.TrackingRecord, error)
	// ListByTeam returns the team's records of an event, oldest first.
	ListByTeam(ctx context.Context, eventID, teamID string) ([]*model.TrackingDetails, error)
	// Summary counts issued and scanned records per tracking type.
	Summary(ctx context.Context, eventID string) ([]model.TrackingTypeSummary, error)
}

// EventRepository reads events.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// TeamRepository reads teams, members and registrations.
type TeamRepository interface {
	GetByID(ctx context.Context, id string) (*model.Team, error)
	// IsRegistered reports whether the team is registered for the event.
	IsRegistered(ctx context.Context, eventID, teamID string) (bool, error)
	// ListRegistered returns all teams registered for the event.
	ListRegistered(ctx context.Context, eventID string) ([]*model.Team, error)
	// GetMember returns a member of the given team.
	GetMember(ctx context.Context, teamID, memberID string) (*model.TeamMember, error)
	// FindAcceptedMemberByEmail matches case-insensitively.
	FindAcceptedMemberByEmail(ctx context.Context, teamID, email string) (*model.TeamMember, error)
	// ListAcceptedMembers returns accepted members, oldest first.
	ListAcceptedMembers(ctx context.Context, teamID string) ([]*model.TeamMember, error)
}

// MessageRepository stores event announcements.
type MessageRepository interface {
	Create(ctx context.Context, m *model.EventMessage) error
	// ListByEvent returns announcements newest first.
	ListByEvent(ctx context.Context, eventID string) ([]*model.EventMessage, error)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// nullIfEmpty maps "" to SQL NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
