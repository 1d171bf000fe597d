// tracking.go - tracking service: issuance, scanning and the team read path.
// Issuance lives in issuer.go, scanning in scanner.go.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kintsugi/eventsync/internal/domain/model"
	"github.com/kintsugi/eventsync/internal/domain/rbac"
	"github.com/kintsugi/eventsync/internal/qrpayload"
	"github.com/kintsugi/eventsync/internal/repository"
)

// TrackingService owns the QR tracking lifecycle.
type TrackingService struct {
	tracking repository.TrackingRepository
	teams    repository.TeamRepository
	events   *EventCache
	codec    *qrpayload.Codec
	now      func() time.Time
	logger   *slog.Logger
}

// NewTrackingService creates the tracking service.
func NewTrackingService(
	tracking repository.TrackingRepository,
	teams repository.TeamRepository,
	events *EventCache,
	codec *qrpayload.Codec,
	logger *slog.Logger,
) *TrackingService {
	return &TrackingService{
		tracking: tracking,
		teams:    teams,
		events:   events,
		codec:    codec,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "tracking_service")),
	}
}

// TeamCode is one entry of a team's code list.
type TeamCode struct {
	*model.TrackingDetails
	IsScanned bool
}

// authorizeEvent loads the event and checks an owner-level capability.
func (s *TrackingService) authorizeEvent(ctx context.Context, actor rbac.Actor, eventID string, c rbac.Capability) (*model.Event, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !rbac.Can(actor, c, rbac.Subject{EventManagerID: event.ManagerID}) {
		return nil, fmt.Errorf("%w: %s on event %s", ErrForbidden, c, eventID)
	}
	return event, nil
}

// requireRegistered loads a team and checks it is registered for the event.
func (s *TrackingService) requireRegistered(ctx context.Context, eventID, teamID string) (*model.Team, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Team not found", "team %s", teamID)
		}
		return nil, fmt.Errorf("load team: %w", err)
	}
	ok, err := s.teams.IsRegistered(ctx, eventID, teamID)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	if !ok {
		return nil, notFound("Team is not registered for this event", "team %s is not registered for event %s", teamID, eventID)
	}
	return team, nil
}

// ListTeamCodes returns the team's codes for an event.
//
// Owners and admins see any registered team; other actors must be accepted
// members of the team, matched by email. Records still carrying the
// placeholder image are rendered and persisted on the way out. Scan state is never touched.
func (s *TrackingService) ListTeamCodes(ctx context.Context, actor rbac.Actor, eventID, teamID string) ([]TeamCode, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	// Non-members get ErrForbidden whether or not the team is registered.
	subject := rbac.Subject{EventManagerID: event.ManagerID}
	if !rbac.Can(actor, rbac.ViewTeamCodes, subject) {
		subject.AcceptedMember, err = s.isAcceptedMember(ctx, teamID, actor.Email)
		if err != nil {
			return nil, err
		}
		if !rbac.Can(actor, rbac.ViewTeamCodes, subject) {
			return nil, fmt.Errorf("%w: not an accepted member of team %s", ErrForbidden, teamID)
		}
	}
	if _, err := s.requireRegistered(ctx, eventID, teamID); err != nil {
		return nil, err
	}

	records, err := s.tracking.ListByTeam(ctx, eventID, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team codes: %w", err)
	}

	result := make([]TeamCode, 0, len(records))
	for _, rec := range records {
		if rec.QRPending {
			if err := s.finalize(ctx, &rec.TrackingRecord); err != nil {
				// The record stays pending; the next read retries.
				s.logger.Warn("Lazy QR render failed",
					slog.String("tracking_id", rec.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		result = append(result, TeamCode{TrackingDetails: rec, IsScanned: rec.ScannedAt != nil})
	}
	return result, nil
}

func (s *TrackingService) isAcceptedMember(ctx context.Context, teamID, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	_, err := s.teams.FindAcceptedMemberByEmail(ctx, teamID, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

// Summary returns issued and scanned counters per tracking type.
func (s *TrackingService) Summary(ctx context.Context, actor rbac.Actor, eventID string) ([]model.TrackingTypeSummary, error) {
	if _, err := s.authorizeEvent(ctx, actor, eventID, rbac.ViewSummary); err != nil {
		return nil, err
	}
	summary, err := s.tracking.Summary(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("tracking summary: %w", err)
	}
	return summary, nil
}

// finalize renders the QR image of the real tracking id and stores it.
// On success rec.QRCodeData holds the image.
func (s *TrackingService) finalize(ctx context.Context, rec *model.TrackingRecord) error {
	img, err := s.codec.Encode(qrDocument(rec, rec.ID))
	if err != nil {
		return err
	}
	if err := s.tracking.SetQRCode(ctx, rec.ID, img); err != nil {
		return fmt.Errorf("store QR code: %w", err)
	}
	rec.QRCodeData = img
	rec.QRPending = false
	return nil
}

// qrDocument builds the QR document of rec under trackingID.
func qrDocument(rec *model.TrackingRecord, trackingID string) qrpayload.Payload {
	p := qrpayload.Payload{
		TrackingID: trackingID,
		EventID:    rec.EventID,
		TeamID:     rec.TeamID,
		Type:       string(rec.TrackingType),
		Label:      rec.Label,
	}
	if rec.MemberID != nil {
		p.MemberID = *rec.MemberID
	}
	return p
}

// validUUID reports whether s parses as a UUID.
func validUUID(s string) bool {
	return uuid.Validate(s) == nil
}
