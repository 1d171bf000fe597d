// messages.go - event announcement endpoints.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kintsugi/eventsync/internal/service"
)

// ListMessages - GET /api/v1/events/{eventId}/messages. Newest first.
// Access: any authenticated caller.
func (h *APIHandler) ListMessages(w http.ResponseWriter, r *http.Request, eventID uuid.UUID) {
	if _, ok := actor(w, r); !ok {
		return
	}

	msgs, err := h.messages.List(r.Context(), eventID.String())
	if err != nil {
		h.writeServiceError(w, err, "List messages", slog.String("event_id", eventID.String()))
		return
	}

	data := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		data = append(data, mapMessage(m))
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// PostMessage - POST /api/v1/events/{eventId}/messages.
// Access: event owner or admin.
func (h *APIHandler) PostMessage(w http.ResponseWriter, r *http.Request, eventID uuid.UUID) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	var req postMessageRequest
	if !h.decodeBody(w, r, &req, false) {
		return
	}

	msg, err := h.messages.Post(r.Context(), a, eventID.String(), service.PostRequest{
		Title:    req.Title,
		Content:  req.Content,
		Priority: req.Priority,
	})
	if err != nil {
		h.writeServiceError(w, err, "Post message", slog.String("event_id", eventID.String()))
		return
	}

	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "Announcement posted", Data: mapMessage(msg)})
}
