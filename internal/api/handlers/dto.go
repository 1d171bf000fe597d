// dto.go - request and response bodies.
package handlers

import (
	"encoding/json"
	"time"

	"github.com/kintsugi/eventsync/internal/domain/model"
	"github.com/kintsugi/eventsync/internal/service"
)

// envelope wraps successful responses.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// --- Requests ---

type templateRequest struct {
	TrackingType string `json:"trackingType" validate:"required,tracking_type"`
	Label        string `json:"label" validate:"notblank,max=255"`
}

type initializeRequest struct {
	QRTypes []templateRequest `json:"qrTypes" validate:"omitempty,max=20,dive"`
	TeamIDs []string          `json:"teamIds" validate:"omitempty,max=500,dive,uuid"`
}

type generateRequest struct {
	QRTypes []templateRequest `json:"qrTypes" validate:"omitempty,max=20,dive"`
}

type issueRequest struct {
	TrackingType string          `json:"trackingType" validate:"required,tracking_type"`
	Label        string          `json:"label" validate:"notblank,max=255"`
	MemberID     string          `json:"memberId" validate:"omitempty,uuid"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

type scanRequest struct {
	QRData string `json:"qrData"`
}

type postMessageRequest struct {
	Title    string `json:"title" validate:"notblank,max=255"`
	Content  string `json:"content" validate:"notblank,max=10000"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

func toTemplates(in []templateRequest) []model.Template {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Template, 0, len(in))
	for _, t := range in {
		out = append(out, model.Template{TrackingType: model.TrackingType(t.TrackingType), Label: t.Label})
	}
	return out
}

// --- Responses ---

type trackingResponse struct {
	ID            string             `json:"id"`
	EventID       string             `json:"eventId"`
	TeamID        string             `json:"teamId"`
	TeamName      string             `json:"teamName,omitempty"`
	MemberID      *string            `json:"memberId"`
	MemberName    *string            `json:"memberName,omitempty"`
	TrackingType  model.TrackingType `json:"trackingType"`
	Label         string             `json:"label"`
	QRCodeData    string             `json:"qrCodeData"`
	Metadata      json.RawMessage    `json:"metadata,omitempty"`
	IsScanned     bool               `json:"isScanned"`
	ScannedAt     *time.Time         `json:"scannedAt"`
	ScannedBy     *string            `json:"scannedBy"`
	ScannedByName *string            `json:"scannedByName,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

func mapTracking(r *model.TrackingRecord) trackingResponse {
	return trackingResponse{
		ID:            r.ID,
		EventID:       r.EventID,
		TeamID:        r.TeamID,
		MemberID:      r.MemberID,
		TrackingType:  r.TrackingType,
		Label:         r.Label,
		QRCodeData:    r.QRCodeData,
		Metadata:      r.Metadata,
		IsScanned:     r.ScannedAt != nil,
		ScannedAt:     r.ScannedAt,
		ScannedBy:     r.ScannedBy,
		ScannedByName: r.ScannedByName,
		CreatedAt:     r.CreatedAt,
	}
}

func mapTeamCode(c service.TeamCode) trackingResponse {
	resp := mapTracking(&c.TrackingRecord)
	resp.TeamName = c.TeamName
	resp.MemberName = c.MemberName
	resp.IsScanned = c.IsScanned
	return resp
}

type issueResponse struct {
	Status service.OutcomeStatus `json:"status"`
	trackingResponse
}

type outcomeResponse struct {
	ID           string                `json:"id,omitempty"`
	MemberID     string                `json:"memberId,omitempty"`
	MemberName   string                `json:"memberName,omitempty"`
	TrackingType model.TrackingType    `json:"trackingType"`
	Label        string                `json:"label"`
	Status       service.OutcomeStatus `json:"status"`
	Message      string                `json:"message,omitempty"`
	QRCodeData   string                `json:"qrCodeData,omitempty"`
}

func mapOutcomes(in []service.Outcome) []outcomeResponse {
	out := make([]outcomeResponse, 0, len(in))
	for _, o := range in {
		r := outcomeResponse{
			MemberID:     o.MemberID,
			MemberName:   o.MemberName,
			TrackingType: o.TrackingType,
			Label:        o.Label,
			Status:       o.Status,
			Message:      o.Message,
		}
		if o.Record != nil {
			r.ID = o.Record.ID
			r.QRCodeData = o.Record.QRCodeData
		}
		out = append(out, r)
	}
	return out
}

type teamResultResponse struct {
	TeamID   string            `json:"teamId"`
	TeamName string            `json:"teamName"`
	Results  []outcomeResponse `json:"results"`
}

type eventIssueResponse struct {
	TotalTeams   int                  `json:"totalTeams"`
	CreatedCount int                  `json:"createdCount"`
	SkippedCount int                  `json:"skippedCount"`
	ErrorCount   int                  `json:"errorCount"`
	PerTeam      []teamResultResponse `json:"perTeam"`
}

func mapEventReport(r *service.EventReport) eventIssueResponse {
	resp := eventIssueResponse{
		TotalTeams:   r.TotalTeams,
		CreatedCount: r.CreatedCount,
		SkippedCount: r.SkippedCount,
		ErrorCount:   r.ErrorCount,
		PerTeam:      make([]teamResultResponse, 0, len(r.PerTeam)),
	}
	for _, t := range r.PerTeam {
		resp.PerTeam = append(resp.PerTeam, teamResultResponse{
			TeamID:   t.TeamID,
			TeamName: t.TeamName,
			Results:  mapOutcomes(t.Results),
		})
	}
	return resp
}

type batchResponse struct {
	CreatedCount int               `json:"createdCount"`
	SkippedCount int               `json:"skippedCount"`
	ErrorCount   int               `json:"errorCount"`
	Results      []outcomeResponse `json:"results"`
}

type scanResponse struct {
	ID           string             `json:"id"`
	TeamName     string             `json:"teamName"`
	MemberName   *string            `json:"memberName,omitempty"`
	Label        string             `json:"label"`
	TrackingType model.TrackingType `json:"trackingType"`
	ScannedAt    time.Time          `json:"scannedAt"`
	ScannedBy    string             `json:"scannedBy"`
}

type alreadyScannedDetails struct {
	ScannedAt time.Time `json:"scannedAt"`
	ScannedBy string    `json:"scannedBy"`
}

type summaryResponse struct {
	EventID      string                      `json:"eventId"`
	TotalIssued  int                         `json:"totalIssued"`
	TotalScanned int                         `json:"totalScanned"`
	ByType       []model.TrackingTypeSummary `json:"byType"`
}

type messageResponse struct {
	ID          string         `json:"id"`
	EventID     string         `json:"eventId"`
	ManagerID   string         `json:"managerId"`
	ManagerName string         `json:"managerName"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Priority    model.Priority `json:"priority"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func mapMessage(m *model.EventMessage) messageResponse {
	return messageResponse{
		ID:          m.ID,
		EventID:     m.EventID,
		ManagerID:   m.ManagerID,
		ManagerName: m.ManagerName,
		Title:       m.Title,
		Content:     m.Content,
		Priority:    m.Priority,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
