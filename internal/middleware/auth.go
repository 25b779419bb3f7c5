package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
)

const passwordHeader = "X-Dashboard-Password"

// DashboardAuth gates requests behind a shared dashboard password.
type DashboardAuth struct {
	enabled bool
	digest  [sha256.Size]byte
}

// NewDashboardAuth creates the gate. An empty password lets every request through.
func NewDashboardAuth(password string) *DashboardAuth {
	if password == "" {
		return &DashboardAuth{}
	}
	return &DashboardAuth{enabled: true, digest: sha256.Sum256([]byte(password))}
}

// Middleware returns an HTTP middleware that rejects requests without the
// password. It is read from the X-Dashboard-Password header, a bearer token
// or the pass query parameter, in that order.
func (a *DashboardAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !a.enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.allowed(presentedPassword(r)) {
				log.Printf("[auth] Rejected %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
				w.Header().Set("WWW-Authenticate", `Bearer realm="dashboard"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *DashboardAuth) allowed(presented string) bool {
	if presented == "" {
		return false
	}
	digest := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(digest[:], a.digest[:]) == 1
}

func presentedPassword(r *http.Request) string {
	if v := r.Header.Get(passwordHeader); v != "" {
		return v
	}
	if auth := r.Header.Get("Authorization"); len(auth) > len("Bearer ") && strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return r.URL.Query().Get("pass")
}
