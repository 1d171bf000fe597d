// routes.go - route table and path parameter binding.
// Wrappers bind {eventId} and {teamId} as UUIDs before calling the
// ServerInterface method; a malformed id is a 400 VALIDATION_ERROR.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/kintsugi/eventsync/internal/api/errors"
)

// ServerInterface lists every EventSync endpoint.
type ServerInterface interface {
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)

	// (POST /api/v1/events/{eventId}/tracking/initialize)
	InitializeEventTracking(w http.ResponseWriter, r *http.Request, eventID uuid.UUID)
	// (GET /api/v1/events/{eventId}/tracking/summary)
	GetTrackingSummary(w http.ResponseWriter, r *http.Request, eventID uuid.UUID)
	// (POST /api/v1/events/{eventId}/teams/{teamId}/tracking/generate)
	GenerateTeamTracking(w http.ResponseWriter, r *http.Request, eventID, teamID uuid.UUID)
	// (POST /api/v1/events/{eventId}/teams/{teamId}/tracking)
	IssueTracking(w http.ResponseWriter, r *http.Request, eventID, teamID uuid.UUID)
	// (GET /api/v1/events/{eventId}/teams/{teamId}/tracking)
	ListTeamTracking(w http.ResponseWriter, r *http.Request, eventID, teamID uuid.UUID)
	// (POST /api/v1/events/{eventId}/scan)
	ScanTracking(w http.ResponseWriter, r *http.Request, eventID uuid.UUID)

	// (GET /api/v1/events/{eventId}/messages)
	ListMessages(w http.ResponseWriter, r *http.Request, eventID uuid.UUID)
	// (POST /api/v1/events/{eventId}/messages)
	PostMessage(w http.ResponseWriter, r *http.Request, eventID uuid.UUID)
}

// HandlerFromMux registers si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	r.Get("/health/live", si.HealthLive)
	r.Get("/health/ready", si.HealthReady)
	r.Get("/metrics", si.GetMetrics)

	r.Route("/api/v1/events/{eventId}", func(r chi.Router) {
		r.Post("/tracking/initialize", withEvent(si.InitializeEventTracking))
		r.Get("/tracking/summary", withEvent(si.GetTrackingSummary))
		r.Post("/teams/{teamId}/tracking/generate", withEventTeam(si.GenerateTeamTracking))
		r.Post("/teams/{teamId}/tracking", withEventTeam(si.IssueTracking))
		r.Get("/teams/{teamId}/tracking", withEventTeam(si.ListTeamTracking))
		r.Post("/scan", withEvent(si.ScanTracking))
		r.Get("/messages", withEvent(si.ListMessages))
		r.Post("/messages", withEvent(si.PostMessage))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeValidationError, "Method not allowed")
	})
	return r
}

func withEvent(fn func(http.ResponseWriter, *http.Request, uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := bindUUID(r, "eventId")
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		fn(w, r, eventID)
	}
}

func withEventTeam(fn func(http.ResponseWriter, *http.Request, uuid.UUID, uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := bindUUID(r, "eventId")
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		teamID, err := bindUUID(r, "teamId")
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		fn(w, r, eventID, teamID)
	}
}

func bindUUID(r *http.Request, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid format for parameter %s: expected UUID", name)
	}
	return id, nil
}
