// Package api implements the DraftForge REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// WorkspaceCookie is the guest identity cookie. Every request is scoped to
// the workspace it names; a request without one gets a fresh identity minted
// and set on the response.
const WorkspaceCookie = "df_workspace"

const workspaceCookieMaxAge = 60 * 60 * 24 * 365

type contextKey int

const workspaceIDKey contextKey = iota

// WorkspaceID returns the workspace identity resolved for this request.
func WorkspaceID(r *http.Request) string {
	id, _ := r.Context().Value(workspaceIDKey).(string)
	return id
}

// WorkspaceMiddleware resolves the guest workspace identity from the cookie,
// minting one when absent. The cookie is only set on responses that minted a
// new identity.
func WorkspaceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var workspaceID string
		if c, err := r.Cookie(WorkspaceCookie); err == nil && c.Value != "" {
			workspaceID = c.Value
		} else {
			workspaceID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     WorkspaceCookie,
				Value:    workspaceID,
				Path:     "/",
				MaxAge:   workspaceCookieMaxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   r.TLS != nil,
			})
		}
		ctx := context.WithValue(r.Context(), workspaceIDKey, workspaceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
