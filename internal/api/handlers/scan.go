// scan.go - scan verification endpoint.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// ScanTracking - POST /api/v1/events/{eventId}/scan.
// Body {qrData}: the decoded QR text, either the JSON payload or a bare id.
// Access: event owner or admin.
func (h *APIHandler) ScanTracking(w http.ResponseWriter, r *http.Request, eventID uuid.UUID) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	var req scanRequest
	if !h.decodeBody(w, r, &req, false) {
		return
	}

	sum, err := h.tracking.Scan(r.Context(), a, eventID.String(), req.QRData)
	if err != nil {
		h.writeServiceError(w, err, "Scan tracking", slog.String("event_id", eventID.String()))
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "QR code scanned",
		Data: scanResponse{
			ID:           sum.ID,
			TeamName:     sum.TeamName,
			MemberName:   sum.MemberName,
			Label:        sum.Label,
			TrackingType: sum.TrackingType,
			ScannedAt:    sum.ScannedAt,
			ScannedBy:    sum.ScannedBy,
		},
	})
}
