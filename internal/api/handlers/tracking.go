// tracking.go - tracking issuance, team code list and summary endpoints.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kintsugi/eventsync/internal/domain/model"
	"github.com/kintsugi/eventsync/internal/service"
)

// InitializeEventTracking - POST /api/v1/events/{eventId}/tracking/initialize.
// Issues team-scoped codes for every registered team, or for teamIds.
// Per-item failures are reported inline; the request itself still succeeds.
// Access: event owner or admin.
func (h *APIHandler) InitializeEventTracking(w http.ResponseWriter, r *http.Request, eventID uuid.UUID) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	var req initializeRequest
	if !h.decodeBody(w, r, &req, true) {
		return
	}

	report, err := h.tracking.IssueForEvent(r.Context(), a, eventID.String(), toTemplates(req.QRTypes), req.TeamIDs)
	if err != nil {
		h.writeServiceError(w, err, "Initialize event tracking", slog.String("event_id", eventID.String()))
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("Tracking initialized for %d teams: %d created, %d skipped, %d failed",
			report.TotalTeams, report.CreatedCount, report.SkippedCount, report.ErrorCount),
		Data: mapEventReport(report),
	})
}

// GenerateTeamTracking - POST /api/v1/events/{eventId}/teams/{teamId}/tracking/generate.
// Issues member-scoped codes for every accepted member of the team.
// Access: event owner or admin.
func (h *APIHandler) GenerateTeamTracking(w http.ResponseWriter, r *http.Request, eventID, teamID uuid.UUID) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if !h.decodeBody(w, r, &req, true) {
		return
	}

	report, err := h.tracking.IssueForTeamMembers(r.Context(), a, eventID.String(), teamID.String(), toTemplates(req.QRTypes))
	if err != nil {
		h.writeServiceError(w, err, "Generate team tracking",
			slog.String("event_id", eventID.String()),
			slog.String("team_id", teamID.String()),
		)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("Generated %d QR codes, skipped %d existing, %d failed",
			report.CreatedCount, report.SkippedCount, report.ErrorCount),
		Data: batchResponse{
			CreatedCount: report.CreatedCount,
			SkippedCount: report.SkippedCount,
			ErrorCount:   report.ErrorCount,
			Results:      mapOutcomes(report.Results),
		},
	})
}

// IssueTracking - POST /api/v1/events/{eventId}/teams/{teamId}/tracking.
// 201 when created, 200 when the identity already existed.
// Access: event owner or admin.
func (h *APIHandler) IssueTracking(w http.ResponseWriter, r *http.Request, eventID, teamID uuid.UUID) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	var req issueRequest
	if !h.decodeBody(w, r, &req, false) {
		return
	}

	out, err := h.tracking.IssueOne(r.Context(), a, service.IssueRequest{
		EventID:      eventID.String(),
		TeamID:       teamID.String(),
		MemberID:     req.MemberID,
		TrackingType: model.TrackingType(req.TrackingType),
		Label:        req.Label,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, err, "Issue tracking",
			slog.String("event_id", eventID.String()),
			slog.String("team_id", teamID.String()),
		)
		return
	}

	resp := issueResponse{Status: out.Status, trackingResponse: mapTracking(out.Record)}
	if out.MemberName != "" {
		name := out.MemberName
		resp.MemberName = &name
	}

	status, msg := http.StatusCreated, "QR code created"
	if out.Status == service.OutcomeSkipped {
		status, msg = http.StatusOK, "QR code already exists"
	}
	writeJSON(w, status, envelope{Success: true, Message: msg, Data: resp})
}

// ListTeamTracking - GET /api/v1/events/{eventId}/teams/{teamId}/tracking.
// Missing images are rendered on the way out.
// Access: event owner, admin or an accepted team member.
func (h *APIHandler) ListTeamTracking(w http.ResponseWriter, r *http.Request, eventID, teamID uuid.UUID) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	codes, err := h.tracking.ListTeamCodes(r.Context(), a, eventID.String(), teamID.String())
	if err != nil {
		h.writeServiceError(w, err, "List team tracking",
			slog.String("event_id", eventID.String()),
			slog.String("team_id", teamID.String()),
		)
		return
	}

	data := make([]trackingResponse, 0, len(codes))
	for _, c := range codes {
		data = append(data, mapTeamCode(c))
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// GetTrackingSummary - GET /api/v1/events/{eventId}/tracking/summary.
// Access: event owner or admin.
func (h *APIHandler) GetTrackingSummary(w http.ResponseWriter, r *http.Request, eventID uuid.UUID) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	byType, err := h.tracking.Summary(r.Context(), a, eventID.String())
	if err != nil {
		h.writeServiceError(w, err, "Tracking summary", slog.String("event_id", eventID.String()))
		return
	}

	resp := summaryResponse{EventID: eventID.String(), ByType: byType}
	if resp.ByType == nil {
		resp.ByType = []model.TrackingTypeSummary{}
	}
	for _, s := range byType {
		resp.TotalIssued += s.Issued
		resp.TotalScanned += s.Scanned
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: resp})
}
