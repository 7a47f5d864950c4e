package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskflow/taskflow/internal/apperr"
	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/httputil"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

// TokenVerifier checks a bearer token and returns the identity it asserts.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// UserLoader reloads the caller on every request.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Tokens  TokenVerifier
	Users   UserLoader
	Metrics metrics.Recorder
	Errors  httputil.ErrorWriter
}

var (
	errNoToken      = apperr.Unauthenticated("No token provided").WithReason("missing_token")
	errInvalidToken = apperr.Unauthenticated("Invalid token").WithReason("invalid_token")
	errExpiredToken = apperr.Unauthenticated("Token expired").WithReason("expired_token")
	errUnknownUser  = apperr.Unauthenticated("User not found").WithReason("user_not_found")
	errDeactivated  = apperr.Unauthenticated("Account deactivated").WithReason("account_deactivated")
)

// Auth returns a middleware that authenticates API requests.
// It verifies the bearer token, reloads the user it names and injects
// that user into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := cfg.authenticate(r)
			if err != nil {
				cfg.reject(w, r, err)
				return
			}

			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the caller when a valid token of an active user is
// present and otherwise continues anonymously. Store failures still fail
// the request.
func OptionalAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := cfg.authenticate(r)
			if err != nil {
				if !apperr.Is(err, apperr.KindUnauthenticated) {
					cfg.reject(w, r, err)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (cfg AuthConfig) withDefaults() AuthConfig {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Errors.Logger == nil {
		cfg.Errors.Logger = cfg.Logger
	}
	return cfg
}

func (cfg AuthConfig) authenticate(r *http.Request) (*model.User, error) {
	token := extractBearerToken(r)
	if token == "" {
		return nil, errNoToken
	}

	identity, err := cfg.Tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, errExpiredToken
		}
		return nil, errInvalidToken
	}

	user, err := cfg.Users.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errUnknownUser
		}
		return nil, apperr.Internal(err)
	}
	if !user.IsActive {
		return nil, errDeactivated
	}
	return user, nil
}

func (cfg AuthConfig) reject(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperr.As(err); ok && appErr.Kind == apperr.KindUnauthenticated {
		cfg.Logger.Warn("authentication failed",
			slog.String("reason", appErr.Reason),
			slog.String("ip", r.RemoteAddr),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		cfg.Metrics.IncAuthFailure(appErr.Reason)
	}
	cfg.Errors.Write(w, r, err)
}

// extractBearerToken reads "Authorization: Bearer <token>". The scheme is
// matched case-insensitively.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
