package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/streamhub-io/streamhub/config"
	"github.com/streamhub-io/streamhub/internal/api"
)

// Define typed context keys
type contextKey string

const UserIDKey contextKey = "userID"
const UserRoleKey contextKey = "userRole"
const UsernameKey contextKey = "username"

// SessionCookieName is the HttpOnly cookie carrying the session token.
// Browser clients use the cookie; API clients may send a Bearer header
// instead, and a well-formed Bearer header wins when both are present.
const SessionCookieName = "token"

// extractToken pulls the session token from the Authorization header or,
// failing that, the session cookie. A header that does not parse as Bearer
// is ignored rather than shadowing a valid cookie. Empty string means no
// credential.
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) == 2 && strings.ToLower(headerParts[0]) == "bearer" {
			return headerParts[1]
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate is middleware to validate session tokens. Requests without
// a valid credential are rejected with 401 before reaching the handler.
func Authenticate(logger *slog.Logger, jwtCfg config.JWTConfig) func(next http.Handler) http.Handler {
	if jwtCfg.SecretKey == "" {
		logger.Error("FATAL: JWT Secret Key is not configured!")
		panic("JWT Secret Key cannot be empty")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			tokenString := extractToken(r)
			if tokenString == "" {
				l.WarnContext(ctx, "Missing credentials", slog.String("path", r.URL.Path))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Not authorized to access this route")
				return
			}

			claims, err := ValidateSessionToken(jwtCfg, tokenString)
			if err != nil {
				l.WarnContext(ctx, "Token validation failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Not authorized to access this route")
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticate attaches claims when a valid credential is present
// but lets anonymous requests through untouched. Feed and video-detail
// routes use it to adjust responses for the viewer without requiring login.
func OptionalAuthenticate(logger *slog.Logger, jwtCfg config.JWTConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString := extractToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ValidateSessionToken(jwtCfg, tokenString)
			if err != nil {
				// A bad token on an optional route degrades to anonymous
				// rather than failing the request.
				logger.DebugContext(ctx, "Ignoring invalid token on optional route", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route group on the authenticated user's role. Runs
// AFTER the Authenticate middleware.
func RequireRole(logger *slog.Logger, allowedRoles ...string) func(next http.Handler) http.Handler {
	roleMap := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		roleMap[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			role, ok := GetUserRoleFromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "Role claim missing from context; is Authenticate mounted?")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Not authorized to access this route")
				return
			}

			if _, allowed := roleMap[role]; !allowed {
				logger.WarnContext(ctx, "Role check failed",
					slog.String("actual_role", role),
					slog.Any("allowed_roles", allowedRoles),
				)
				api.ErrorResponse(w, r, http.StatusForbidden, "You do not have permission to perform this action")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Helper functions to get claims from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// RequireUserID parses the authenticated user's ID out of the context.
// Handlers behind Authenticate call this instead of re-checking claims.
func RequireUserID(ctx context.Context) (uuid.UUID, bool) {
	raw, ok := GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
