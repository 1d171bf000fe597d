// handler.go - APIHandler implements ServerInterface and delegates to the services.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/kintsugi/eventsync/internal/api/errors"
	"github.com/kintsugi/eventsync/internal/api/middleware"
	"github.com/kintsugi/eventsync/internal/domain/rbac"
	"github.com/kintsugi/eventsync/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// APIHandler is the EventSync API.
type APIHandler struct {
	health    *HealthHandler
	tracking  *service.TrackingService
	messages  *service.MessageService
	validator *requestValidator
	logger    *slog.Logger
}

var _ ServerInterface = (*APIHandler)(nil)

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	health *HealthHandler,
	tracking *service.TrackingService,
	messages *service.MessageService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		tracking:  tracking,
		messages:  messages,
		validator: newRequestValidator(),
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive delegates to HealthHandler.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady delegates to HealthHandler.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics delegates to HealthHandler.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// actor returns the authenticated actor or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (rbac.Actor, bool) {
	a := middleware.ActorFromContext(r.Context())
	if a == nil {
		apierrors.Unauthorized(w, "Authentication required")
		return rbac.Actor{}, false
	}
	return *a, true
}

// decodeBody decodes and validates a JSON body into dst.
// With optional set, an empty body leaves dst at its zero value.
func (h *APIHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	switch {
	case errors.Is(err, io.EOF) && optional:
	case err != nil:
		apierrors.ValidationError(w, "Invalid JSON: "+err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		apierrors.ValidationError(w, err.Error())
		return false
	}
	return true
}

// writeServiceError maps service errors to API errors. Unknown errors are
// logged and answered with a generic 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, op string, attrs ...any) {
	var (
		already  *service.AlreadyScannedError
		notFound *service.NotFoundError
	)
	switch {
	case errors.As(err, &already):
		apierrors.AlreadyScanned(w, "QR code already scanned", alreadyScannedDetails{
			ScannedAt: already.ScannedAt,
			ScannedBy: already.ScannedBy,
		})
	case errors.Is(err, service.ErrMalformedPayload):
		apierrors.MalformedPayload(w, "Invalid QR code data")
	case errors.Is(err, service.ErrWrongEvent):
		apierrors.WrongEvent(w, "QR code belongs to a different event")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.As(err, &notFound):
		apierrors.NotFound(w, notFound.Message)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Resource not found")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Insufficient permissions for this event")
	default:
		h.logger.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
		apierrors.InternalError(w, "Internal server error")
	}
}
