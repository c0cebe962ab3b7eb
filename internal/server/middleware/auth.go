package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	bearerPrefix = "bearer "
	// wsPathSuffix marks the only route that may carry the token in the query string.
	wsPathSuffix = "/notifications/ws"
)

// ErrMissingToken is passed to the failure handler when no bearer token is present.
var ErrMissingToken = errors.New("missing or invalid authorization")

// Authenticator resolves an access token to the user and session it was issued for.
type Authenticator interface {
	AuthenticateToken(ctx context.Context, accessToken string) (userID, sessionID string, err error)
}

// FailureFunc writes the response for a rejected request.
type FailureFunc func(w http.ResponseWriter, r *http.Request, err error)

// RequireAuth validates the Bearer access token and sets user_id and session_id in the request
// context. Requests without a valid token are passed to fail and never reach next.
// The websocket route may carry the token in the access_token query parameter instead.
func RequireAuth(authn Authenticator, fail FailureFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				fail(w, r, ErrMissingToken)
				return
			}
			userID, sessionID, err := authn.AuthenticateToken(r.Context(), token)
			if err != nil {
				fail(w, r, err)
				return
			}
			ctx := WithIdentity(r.Context(), userID, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearer returns the Bearer token from the Authorization header, or "" if missing or
// malformed. On the websocket route it falls back to the access_token query parameter.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if v == "" {
		if !strings.HasSuffix(r.URL.Path, wsPathSuffix) {
			return ""
		}
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
