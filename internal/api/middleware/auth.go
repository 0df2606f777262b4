package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/uibattles/uibattles-api/internal/api/shared"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"github.com/uibattles/uibattles-api/internal/redact"
	"github.com/uibattles/uibattles-api/internal/service/auth"
)

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
	logger     *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{
		jwtService: jwtService,
		logger:     log.With(slog.String("component", "auth_middleware")),
	}
}

// Authenticate rejects requests without a valid bearer token and adds the
// user ID to the context of the others.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrWrongTokenType),
				errors.Is(err, auth.ErrTokenNotYetValid):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				logger.FromContextOrDefault(r.Context(), m.logger).
					Error("failed to validate token", "error", redact.Error(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithUserID(r.Context(), claims.UserID)))
	})
}

// OptionalAuth adds the user ID to the context when a valid bearer token is
// present. Requests without a token, or with one that does not validate,
// continue as anonymous.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			logger.FromContextOrDefault(r.Context(), m.logger).
				Debug("ignoring invalid optional token", "error", redact.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithUserID(r.Context(), claims.UserID)))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", auth.ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}
