package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func denyAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func TestWithExclusions(t *testing.T) {
	srv := New(Config{Port: 0}, testLogger(), func(r chi.Router) {
		ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
		r.Get("/health/live", ok)
		r.Get("/metrics", ok)
		r.Get("/api/v1/events/x/messages", ok)
	}, WithExclusions(denyAll, "/health/", "/metrics"))

	tests := []struct {
		path string
		want int
	}{
		{"/health/live", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/v1/events/x/messages", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	srv := New(Config{}, testLogger(), func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {})
	}, mark("metrics"), mark("logger"), mark("auth"))

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 3 || order[0] != "metrics" || order[1] != "logger" || order[2] != "auth" {
		t.Errorf("order = %v", order)
	}
}

func TestRunContext_Shutdown(t *testing.T) {
	srv := New(Config{Port: 0, ShutdownTimeout: time.Second}, testLogger(), func(chi.Router) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.RunContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunContext() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("RunContext did not return after cancel")
	}
}
