// auth.go - JWT authentication at the identity provider boundary.
// Validates RS256 Bearer tokens against the provider JWKS and puts the
// resolved rbac.Actor into the request context. Authorization per event is
// decided later by the services.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/kintsugi/eventsync/internal/api/errors"
	"github.com/kintsugi/eventsync/internal/domain/rbac"
)

type contextKey string

// ContextKeyActor holds the *rbac.Actor of the request.
const ContextKeyActor contextKey = "actor"

// providerClaims are the raw token claims.
type providerClaims struct {
	jwt.RegisteredClaims
	Email             string       `json:"email"`
	Name              string       `json:"name"`
	PreferredUsername string       `json:"preferred_username"`
	Role              string       `json:"role,omitempty"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
}

type realmAccess struct {
	Roles []string `json:"roles"`
}

// JWTAuth authenticates requests through the provider JWKS.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	logger    *slog.Logger
	issuer    string
	jwtLeeway time.Duration
}

// JWTAuthConfig configures NewJWTAuth.
type JWTAuthConfig struct {
	JWKSURL string
	// CACertPath is an optional PEM bundle trusted in addition to the system pool.
	CACertPath string
	// Issuer is checked when non-empty.
	Issuer          string
	ClientTimeout   time.Duration
	RefreshInterval time.Duration
	Leeway          time.Duration
}

// NewJWTAuth creates the middleware with a background-refreshed JWKS.
// Startup does not fail when the provider is still unreachable.
func NewJWTAuth(cfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	httpClient := &http.Client{Timeout: cfg.ClientTimeout}
	if cfg.CACertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(cfg.CACertPath, cfg.ClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("load CA certificate %s: %w", cfg.CACertPath, err)
		}
		logger.Info("CA certificate added to the JWKS trust pool",
			slog.String("ca_cert", cfg.CACertPath),
		)
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("JWKS refresh failed",
				slog.String("error", err.Error()),
				slog.String("url", cfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:      k,
		logger:    logger.With(slog.String("component", "jwt_auth")),
		issuer:    cfg.Issuer,
		jwtLeeway: cfg.Leeway,
	}, nil
}

// httpClientWithCA returns a client trusting the system pool plus caCertPath.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no PEM certificates in %s", caCertPath)
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// NewJWTAuthWithKeyfunc creates the middleware with the given keyfunc. Used by tests.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:   kf,
		logger: logger.With(slog.String("component", "jwt_auth")),
		issuer: issuer,
	}
}

// Middleware rejects requests without a valid Bearer token with 401.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Invalid Authorization format: expected Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Empty Bearer token")
				return
			}

			raw := &providerClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, raw, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				if err != nil {
					j.logger.Debug("JWT validation failed",
						slog.String("error", err.Error()),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				apierrors.Unauthorized(w, "Invalid or expired token")
				return
			}

			if raw.Subject == "" {
				apierrors.Unauthorized(w, "Token has no sub claim")
				return
			}

			actor := buildActor(raw)
			ctx := context.WithValue(r.Context(), ContextKeyActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// buildActor maps claims to an actor. The role claim wins; otherwise the
// strongest known realm role is used, defaulting to user.
func buildActor(raw *providerClaims) *rbac.Actor {
	actor := &rbac.Actor{
		UserID: raw.Subject,
		Email:  raw.Email,
		Name:   raw.Name,
	}
	if actor.Name == "" {
		actor.Name = raw.PreferredUsername
	}

	if role, ok := rbac.ParseRole(raw.Role); ok {
		actor.Role = role
		return actor
	}
	var roles []string
	if raw.RealmAccess != nil {
		roles = raw.RealmAccess.Roles
	}
	actor.Role = rbac.HighestRole(roles)
	return actor
}

// ActorFromContext returns the authenticated actor, or nil.
func ActorFromContext(ctx context.Context) *rbac.Actor {
	actor, _ := ctx.Value(ContextKeyActor).(*rbac.Actor)
	return actor
}

// WithActor stores actor in ctx. Tests use it to skip token handling.
func WithActor(ctx context.Context, actor *rbac.Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// --- JWKS readiness ---

// JWKSReadinessChecker reports whether the provider JWKS is reachable.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker creates the checker. timeout bounds one probe.
func NewJWKSReadinessChecker(jwksURL, caCertPath string, timeout time.Duration) (*JWKSReadinessChecker, error) {
	client := &http.Client{Timeout: timeout}
	if caCertPath != "" {
		var err error
		client, err = httpClientWithCA(caCertPath, timeout)
		if err != nil {
			return nil, fmt.Errorf("load CA for readiness checker: %w", err)
		}
	}
	return &JWKSReadinessChecker{jwksURL: jwksURL, client: client}, nil
}

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// CheckReady fetches the JWKS document and counts its keys.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "build request: " + err.Error()
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return statusFail, fmt.Sprintf("JWKS unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("JWKS returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return statusDegraded, fmt.Sprintf("JWKS: invalid JSON: %v", err)
	}
	if len(doc.Keys) == 0 {
		return statusDegraded, "JWKS: no keys"
	}
	return statusOK, fmt.Sprintf("JWKS reachable, keys: %d", len(doc.Keys))
}
