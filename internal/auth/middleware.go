package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// UserIDKey is the context key for storing user_id in request context
const UserIDKey contextKey = "user_id"

// SessionCookie is the cookie carrying the session token
const SessionCookie = "session_token"

// AuthMiddleware validates the session token on non-public paths and injects
// the user_id into the request context.
func AuthMiddleware(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			sessionToken, err := store.GetSessionToken(r.Context(), token)
			if err != nil || sessionToken == nil {
				writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, sessionToken.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose authenticated user is not an admin.
// It must run inside AuthMiddleware.
func RequireAdmin(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := GetUserID(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			user, err := store.GetUserByID(r.Context(), userID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
				return
			}
			if !user.IsAdmin() {
				writeError(w, http.StatusForbidden, ErrNotAdmin.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the session token from the Authorization header, then
// the session cookie. Websocket upgrades may also pass it as ?token=.
func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}

	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}

	return ""
}

// ExtractToken exposes the token lookup for logout handlers
func ExtractToken(r *http.Request) string {
	return extractToken(r)
}

// isPublicEndpoint checks if a path should bypass authentication
func isPublicEndpoint(path string) bool {
	publicPaths := []string{
		"/api/login",
		"/api/admin/login",
		"/api/register",
		"/api/quick-info",
		"/healthz",
	}

	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// GetUserID extracts the user_id from request context
func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, ErrUserIDNotFound
	}
	return userID, nil
}

// WithUserID returns a context carrying userID, as AuthMiddleware would
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
