// logging.go - access log for the tracking API.
// One line per request, tagged with the route pattern, the event and team
// the request addressed and the actor that made it.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// statusRecorder remembers the status and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the original writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// RequestLogger writes the access log. Health checks and scrapes log at
// DEBUG; other requests at INFO, 4xx at WARN and 5xx at ERROR.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "access_log"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("route", routePattern(r)),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.bytes),
			}
			attrs = append(attrs, routeParams(r)...)
			if actor := ActorFromContext(r.Context()); actor != nil {
				attrs = append(attrs,
					slog.String("user_id", actor.UserID),
					slog.String("role", string(actor.Role)),
				)
			}
			logger.LogAttrs(r.Context(), accessLevel(r.URL.Path, rec.status), "Request served", attrs...)
		})
	}
}

func accessLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health/") || path == "/metrics":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// routePattern returns the matched chi pattern, or the raw path when no
// route matched, so ids stay out of the route attribute.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// routeParams turns path parameters into snake_case attributes:
// {eventId} becomes event_id, {teamId} becomes team_id.
func routeParams(r *http.Request) []slog.Attr {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	attrs := make([]slog.Attr, 0, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		attrs = append(attrs, slog.String(snakeCase(key), rctx.URLParams.Values[i]))
	}
	return attrs
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, c := range s {
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			c += 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}
