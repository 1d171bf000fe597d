package paynull

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 64 << 10

// Handler serves the PayNull JSON API.
type Handler struct {
	svc     *Service
	version string
	logger  *slog.Logger
}

// NewHandler creates the handler.
func NewHandler(svc *Service, version string, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, version: version, logger: logger.With(slog.String("component", "paynull_api"))}
}

// Routes registers the API, health and metrics endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health/live", h.healthLive)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/paynull", func(r chi.Router) {
		r.Post("/create-intent", h.createIntent)
		r.Post("/confirm", h.confirm)
		r.Post("/cancel", h.cancel)
		r.Post("/session", h.session)
		r.Post("/webhook-test", h.webhookTest)
		r.Get("/intents", h.listIntents)
		r.Get("/intents/{id}", h.getIntent)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

type createIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type intentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

type webhookTestRequest struct {
	URL             string `json:"url"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type intentResponse struct {
	OK            bool           `json:"ok"`
	PaymentIntent *PaymentIntent `json:"paymentIntent"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (h *Handler) healthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "paynull",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// POST /api/paynull/create-intent {amount, currency}
func (h *Handler) createIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if !decode(w, r, &req) {
		return
	}
	pi, err := h.svc.CreateIntent(r.Context(), req.Amount, req.Currency)
	if err != nil {
		h.writeServiceError(w, err, "create intent")
		return
	}
	writeJSON(w, http.StatusOK, intentResponse{OK: true, PaymentIntent: pi})
}

// POST /api/paynull/confirm {paymentIntentId}
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !decode(w, r, &req) {
		return
	}
	pi, err := h.svc.Confirm(r.Context(), req.PaymentIntentID)
	if err != nil {
		h.writeServiceError(w, err, "confirm intent")
		return
	}
	writeJSON(w, http.StatusOK, intentResponse{OK: true, PaymentIntent: pi})
}

// POST /api/paynull/cancel {paymentIntentId}
func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !decode(w, r, &req) {
		return
	}
	pi, err := h.svc.Cancel(r.Context(), req.PaymentIntentID)
	if err != nil {
		h.writeServiceError(w, err, "cancel intent")
		return
	}
	writeJSON(w, http.StatusOK, intentResponse{OK: true, PaymentIntent: pi})
}

// GET /api/paynull/intents/{id}
func (h *Handler) getIntent(w http.ResponseWriter, r *http.Request) {
	pi, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "get intent")
		return
	}
	writeJSON(w, http.StatusOK, intentResponse{OK: true, PaymentIntent: pi})
}

// GET /api/paynull/intents - dashboard listing, newest first.
func (h *Handler) listIntents(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list intents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "paymentIntents": list})
}

// POST /api/paynull/session {paymentIntentId}
func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !decode(w, r, &req) {
		return
	}
	url, err := h.svc.SessionURL(r.Context(), req.PaymentIntentID)
	if err != nil {
		h.writeServiceError(w, err, "create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": url})
}

// POST /api/paynull/webhook-test {url, paymentIntentId}
func (h *Handler) webhookTest(w http.ResponseWriter, r *http.Request) {
	var req webhookTestRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SendTestWebhook(r.Context(), req.URL, req.PaymentIntentID); err != nil {
		if errors.Is(err, ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "Webhook delivery failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Invalid ID")
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("PayNull request failed", slog.String("op", op), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{OK: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
