// Package api implements the vaultvec REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenQueryParam carries the bearer token for clients that cannot set
// headers, such as browser EventSource.
const tokenQueryParam = "access_token"

// AuthMiddleware enforces "Authorization: Bearer <token>" when enabled.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return bearerAuth(enabled, token, false)
}

// StreamAuthMiddleware is AuthMiddleware that also accepts the token in the
// access_token query parameter. Use it only for the event stream.
func StreamAuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return bearerAuth(enabled, token, true)
}

func bearerAuth(enabled bool, token string, allowQuery bool) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok && allowQuery {
				given = r.URL.Query().Get(tokenQueryParam)
				ok = given != ""
			}
			if !ok || subtle.ConstantTimeCompare([]byte(given), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="vaultvec"`)
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
