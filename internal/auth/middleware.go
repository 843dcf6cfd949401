package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// CookieName is the session cookie set by the host platform.
const CookieName = "chatowl_session"

// Middleware returns an HTTP middleware that authenticates the caller and
// stores the resulting Identity in the request context.
//
// Authentication precedence:
//  1. Authorization: Bearer <token>  →  Redis session lookup
//  2. chatowl_session cookie         →  Redis session lookup
//  3. X-Debug-User: <user-id>        →  Development-only fallback
//
// Requests with no resolvable identity pass through without one; RequireAuth
// rejects them.
func Middleware(sessions *SessionStore, devMode bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity *Identity

			token := bearerToken(r)
			if token == "" {
				if c, err := r.Cookie(CookieName); err == nil {
					token = c.Value
				}
			}

			if token != "" {
				userID, err := sessions.Validate(r.Context(), token)
				switch {
				case err == nil:
					identity = &Identity{UserID: userID, Method: MethodSession}
				case errors.Is(err, ErrSessionNotFound):
					logger.Debug("unknown session token presented")
				default:
					logger.Error("session validation failed", "error", err)
				}
			}

			if identity == nil && devMode {
				if uid := r.Header.Get("X-Debug-User"); uid != "" {
					identity = &Identity{UserID: uid, Method: MethodDev}
					logger.Debug("dev-mode authentication", "user_id", uid)
				}
			}

			ctx := r.Context()
			if identity != nil {
				ctx = NewContext(ctx, identity)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that carry no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			respondErr(w, http.StatusUnauthorized, "unauthorized", "no valid authentication provided")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

// respondErr writes a JSON error without importing internal/httpserver, which
// would create an import cycle.
func respondErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
