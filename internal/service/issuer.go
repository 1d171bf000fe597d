// issuer.go - tracking record issuance.
//
// Every issue goes through reserve -> finalize: the row is inserted with an
// empty image so the store assigns its id, then the QR payload embedding
// that id is rendered and written back. The identity tuple is unique in the
// store; losing a reserve race is reported as Skipped, like an existing row.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kintsugi/eventsync/internal/domain/model"
	"github.com/kintsugi/eventsync/internal/domain/rbac"
	"github.com/kintsugi/eventsync/internal/qrpayload"
	"github.com/kintsugi/eventsync/internal/repository"
)

// MaxLabelLen bounds labels, including the member suffix of member-scoped codes.
const MaxLabelLen = 255

// OutcomeStatus is the result of issuing one identity tuple.
type OutcomeStatus string

const (
	OutcomeCreated OutcomeStatus = "created"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeError   OutcomeStatus = "error"
)

// Outcome reports one (target, template) pair.
type Outcome struct {
	Status       OutcomeStatus
	Record       *model.TrackingRecord // nil when Status is error
	MemberID     string
	MemberName   string
	TrackingType model.TrackingType
	Label        string
	Message      string
}

// IssueRequest describes a single record to issue.
type IssueRequest struct {
	EventID      string
	TeamID       string
	MemberID     string // empty for team-scoped
	TrackingType model.TrackingType
	Label        string
	Metadata     json.RawMessage
}

// BatchReport aggregates a bulk issuance.
type BatchReport struct {
	CreatedCount int
	SkippedCount int
	ErrorCount   int
	Results      []Outcome
}

func (b *BatchReport) add(o Outcome) {
	switch o.Status {
	case OutcomeCreated:
		b.CreatedCount++
	case OutcomeSkipped:
		b.SkippedCount++
	default:
		b.ErrorCount++
	}
	b.Results = append(b.Results, o)
}

// TeamReport is the per-team part of an event-wide issuance.
type TeamReport struct {
	TeamID   string
	TeamName string
	Results  []Outcome
}

// EventReport aggregates an event-wide issuance.
type EventReport struct {
	TotalTeams   int
	CreatedCount int
	SkippedCount int
	ErrorCount   int
	PerTeam      []TeamReport
}

// IssueOne issues a single team- or member-scoped record.
// An identical identity tuple yields Skipped with the existing record.
func (s *TrackingService) IssueOne(ctx context.Context, actor rbac.Actor, req IssueRequest) (*Outcome, error) {
	label, err := normalizeTemplate(req.TrackingType, req.Label)
	if err != nil {
		return nil, err
	}
	if req.MemberID != "" && !validUUID(req.MemberID) {
		return nil, fmt.Errorf("%w: memberId must be a UUID", ErrValidation)
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return nil, err
	}

	if _, err := s.authorizeEvent(ctx, actor, req.EventID, rbac.IssueTracking); err != nil {
		return nil, err
	}
	if _, err := s.requireRegistered(ctx, req.EventID, req.TeamID); err != nil {
		return nil, err
	}

	var memberName string
	if req.MemberID != "" {
		m, err := s.teams.GetMember(ctx, req.TeamID, req.MemberID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFound("Team member not found", "member %s in team %s", req.MemberID, req.TeamID)
			}
			return nil, fmt.Errorf("load member: %w", err)
		}
		if m.Status != model.MemberAccepted {
			return nil, fmt.Errorf("%w: member %s has not accepted the team invitation", ErrValidation, req.MemberID)
		}
		memberName = m.DisplayName()
	}

	rec := &model.TrackingRecord{
		EventID:      req.EventID,
		TeamID:       req.TeamID,
		TrackingType: req.TrackingType,
		Label:        label,
		Metadata:     req.Metadata,
	}
	if req.MemberID != "" {
		memberID := req.MemberID
		rec.MemberID = &memberID
	}

	out, err := s.issue(ctx, rec)
	if err != nil {
		return nil, err
	}
	out.MemberName = memberName
	return &out, nil
}

// IssueForEvent issues team-scoped records for every template across teams.
//
// With no teamIDs every registered team is targeted. Templates default to
// DefaultTemplates. Per-item failures are reported in the result and never
// abort the batch.
func (s *TrackingService) IssueForEvent(ctx context.Context, actor rbac.Actor, eventID string, templates []model.Template, teamIDs []string) (*EventReport, error) {
	templates, err := normalizeTemplates(templates)
	if err != nil {
		return nil, err
	}
	for _, id := range teamIDs {
		if !validUUID(id) {
			return nil, fmt.Errorf("%w: teamIds must contain UUIDs", ErrValidation)
		}
	}

	if _, err := s.authorizeEvent(ctx, actor, eventID, rbac.IssueTracking); err != nil {
		return nil, err
	}

	teams, err := s.targetTeams(ctx, eventID, teamIDs)
	if err != nil {
		return nil, err
	}

	report := &EventReport{TotalTeams: len(teams), PerTeam: make([]TeamReport, 0, len(teams))}
	for _, team := range teams {
		tr := TeamReport{TeamID: team.ID, TeamName: team.Name}
		for _, tpl := range templates {
			out := s.issueItem(ctx, &model.TrackingRecord{
				EventID:      eventID,
				TeamID:       team.ID,
				TrackingType: tpl.TrackingType,
				Label:        tpl.Label,
			})
			switch out.Status {
			case OutcomeCreated:
				report.CreatedCount++
			case OutcomeSkipped:
				report.SkippedCount++
			default:
				report.ErrorCount++
			}
			tr.Results = append(tr.Results, out)
		}
		report.PerTeam = append(report.PerTeam, tr)
	}

	s.logger.Info("Event tracking issued",
		slog.String("event_id", eventID),
		slog.Int("teams", report.TotalTeams),
		slog.Int("created", report.CreatedCount),
		slog.Int("skipped", report.SkippedCount),
		slog.Int("errors", report.ErrorCount),
	)
	return report, nil
}

func (s *TrackingService) targetTeams(ctx context.Context, eventID string, teamIDs []string) ([]*model.Team, error) {
	if len(teamIDs) == 0 {
		teams, err := s.teams.ListRegistered(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("list registered teams: %w", err)
		}
		if len(teams) == 0 {
			return nil, notFound("No teams registered for this event", "no teams registered for event %s", eventID)
		}
		return teams, nil
	}

	seen := make(map[string]struct{}, len(teamIDs))
	teams := make([]*model.Team, 0, len(teamIDs))
	for _, id := range teamIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		team, err := s.requireRegistered(ctx, eventID, id)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// IssueForTeamMembers issues member-scoped records for every accepted member
// of a registered team. The stored label is "<template label> - <member name>".
func (s *TrackingService) IssueForTeamMembers(ctx context.Context, actor rbac.Actor, eventID, teamID string, templates []model.Template) (*BatchReport, error) {
	templates, err := normalizeTemplates(templates)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeEvent(ctx, actor, eventID, rbac.IssueTracking); err != nil {
		return nil, err
	}
	if _, err := s.requireRegistered(ctx, eventID, teamID); err != nil {
		return nil, err
	}

	members, err := s.teams.ListAcceptedMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list accepted members: %w", err)
	}
	if len(members) == 0 {
		return nil, notFound("No accepted members in this team", "no accepted members in team %s", teamID)
	}

	report := &BatchReport{}
	for _, m := range members {
		name := m.DisplayName()
		for _, tpl := range templates {
			memberID := m.ID
			out := s.issueItem(ctx, &model.TrackingRecord{
				EventID:      eventID,
				TeamID:       teamID,
				MemberID:     &memberID,
				TrackingType: tpl.TrackingType,
				Label:        memberLabel(tpl.Label, name),
			})
			out.MemberID = m.ID
			out.MemberName = name
			report.add(out)
		}
	}

	s.logger.Info("Member tracking issued",
		slog.String("event_id", eventID),
		slog.String("team_id", teamID),
		slog.Int("members", len(members)),
		slog.Int("created", report.CreatedCount),
		slog.Int("skipped", report.SkippedCount),
		slog.Int("errors", report.ErrorCount),
	)
	return report, nil
}

// memberLabel joins a template label and a member name, truncated to MaxLabelLen runes.
func memberLabel(label, name string) string {
	l := []rune(label + " - " + name)
	if len(l) > MaxLabelLen {
		l = l[:MaxLabelLen]
	}
	return string(l)
}

// issueItem is issue for batches: errors become an error outcome.
func (s *TrackingService) issueItem(ctx context.Context, rec *model.TrackingRecord) Outcome {
	out, err := s.issue(ctx, rec)
	if err != nil {
		s.logger.Error("Tracking issue failed",
			slog.String("event_id", rec.EventID),
			slog.String("team_id", rec.TeamID),
			slog.String("tracking_type", string(rec.TrackingType)),
			slog.String("label", rec.Label),
			slog.String("error", err.Error()),
		)
		trackingIssuedTotal.WithLabelValues(string(rec.TrackingType), string(OutcomeError)).Inc()
		return Outcome{
			Status:       OutcomeError,
			TrackingType: rec.TrackingType,
			Label:        rec.Label,
			Message:      "failed to issue tracking record",
		}
	}
	return out
}

// issue runs lookup -> reserve -> finalize for one identity tuple.
// The reserved row carries an image of the placeholder id; finalize swaps
// in the image of the real id once the row exists.
func (s *TrackingService) issue(ctx context.Context, rec *model.TrackingRecord) (Outcome, error) {
	out := Outcome{TrackingType: rec.TrackingType, Label: rec.Label}

	existing, err := s.tracking.FindByIdentity(ctx, rec.Identity())
	switch {
	case err == nil:
		return s.skipped(out, existing), nil
	case !errors.Is(err, repository.ErrNotFound):
		return out, fmt.Errorf("find tracking record: %w", err)
	}

	placeholder, err := s.codec.Encode(qrDocument(rec, qrpayload.PlaceholderTrackingID))
	if err != nil {
		return out, fmt.Errorf("render placeholder QR code: %w", err)
	}
	rec.QRCodeData = placeholder

	if err := s.tracking.Reserve(ctx, rec); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return out, fmt.Errorf("reserve tracking record: %w", err)
		}
		// A concurrent issue won the race.
		existing, ferr := s.tracking.FindByIdentity(ctx, rec.Identity())
		if ferr != nil {
			return out, fmt.Errorf("find tracking record after conflict: %w", ferr)
		}
		return s.skipped(out, existing), nil
	}

	if err := s.finalize(ctx, rec); err != nil {
		// The reserved row keeps its placeholder image and stays pending
		// until the first read renders it.
		return out, fmt.Errorf("finalize tracking record %s: %w", rec.ID, err)
	}

	trackingIssuedTotal.WithLabelValues(string(rec.TrackingType), string(OutcomeCreated)).Inc()
	out.Status = OutcomeCreated
	out.Record = rec
	out.Message = "tracking record created"
	return out, nil
}

func (s *TrackingService) skipped(out Outcome, existing *model.TrackingRecord) Outcome {
	trackingIssuedTotal.WithLabelValues(string(existing.TrackingType), string(OutcomeSkipped)).Inc()
	out.Status = OutcomeSkipped
	out.Record = existing
	out.Message = "tracking record already exists"
	return out
}

// normalizeTemplate validates a (type, label) pair and returns the trimmed label.
func normalizeTemplate(t model.TrackingType, label string) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown tracking type %q", ErrValidation, t)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("%w: label is required", ErrValidation)
	}
	if len([]rune(label)) > MaxLabelLen {
		return "", fmt.Errorf("%w: label exceeds %d characters", ErrValidation, MaxLabelLen)
	}
	return label, nil
}

// normalizeTemplates validates templates, falling back to the defaults.
// Duplicate pairs collapse to one.
func normalizeTemplates(templates []model.Template) ([]model.Template, error) {
	if len(templates) == 0 {
		return model.DefaultTemplates(), nil
	}
	seen := make(map[model.Template]struct{}, len(templates))
	result := make([]model.Template, 0, len(templates))
	for i, tpl := range templates {
		label, err := normalizeTemplate(tpl.TrackingType, tpl.Label)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		tpl.Label = label
		if _, dup := seen[tpl]; dup {
			continue
		}
		seen[tpl] = struct{}{}
		result = append(result, tpl)
	}
	return result, nil
}

// validateMetadata accepts nothing, JSON null or a JSON object.
func validateMetadata(m json.RawMessage) error {
	if len(m) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(m, &obj); err != nil {
		return fmt.Errorf("%w: metadata must be a JSON object", ErrValidation)
	}
	return nil
}
