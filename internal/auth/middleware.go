package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the user ID stored in the request context.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth enforces authentication on protected routes.
//
// It reads the JWT from the "session" HttpOnly cookie, validates it, and
// stores the user ID in the request context. If the cookie is missing or
// the token is invalid or expired, it returns a uniform 401 before any
// domain logic runs.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the identity if a valid session cookie is present
// but never blocks the request. Handlers distinguish the cases through
// UserIDFromContext.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				ctx := context.WithValue(r.Context(), userIDKey, userID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns (0, false) if the request carries no valid session.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// extractUserID reads the session cookie and validates its JWT.
func extractUserID(r *http.Request, tokens *TokenService) (int64, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return 0, err
	}
	return tokens.ValidateSession(cookie.Value)
}
