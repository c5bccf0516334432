package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"go-image-playground/internal/service"
)

// Paths reachable without a session. The login page is handled separately
// so an authenticated visit can bounce home.
var publicPaths = map[string]bool{
	"/api/health":      true,
	"/api/auth/login":  true,
	"/api/auth/logout": true,
	"/favicon.ico":     true,
	"/robots.txt":      true,
}

var publicPrefixes = []string{"/static/", "/metrics"}

// SessionGate guards every non-public route with the simple-auth cookie.
type SessionGate struct {
	auth *service.AuthService
}

func NewSessionGate(auth *service.AuthService) *SessionGate {
	return &SessionGate{auth: auth}
}

func (g *SessionGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if isPublicPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		// The login page itself never demands a session, but visiting it
		// while already signed in just bounces home.
		if path == "/login" {
			if g.auth.Configured() && g.validSession(r) {
				http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		// Missing credentials make every protected route unusable. This is a
		// deployment error, not something to paper over with a default.
		if !g.auth.Configured() {
			if isAPIPath(path) {
				writeMessage(w, http.StatusInternalServerError, "AUTH_USERNAME and AUTH_PASSWORD are required")
			} else {
				http.Error(w, "AUTH_USERNAME and AUTH_PASSWORD are required", http.StatusInternalServerError)
			}
			return
		}

		if g.validSession(r) {
			next.ServeHTTP(w, r)
			return
		}

		if isAPIPath(path) {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		http.Redirect(w, r, "/login?next="+url.QueryEscape(path), http.StatusTemporaryRedirect)
	})
}

func (g *SessionGate) validSession(r *http.Request) bool {
	cookie, err := r.Cookie(service.AuthCookieName)
	return err == nil && cookie.Value == g.auth.ExpectedToken()
}

func isPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}

	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api")
}
