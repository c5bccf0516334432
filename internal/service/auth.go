package service

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// AuthCookieName must stay in sync with the session gate middleware and the
// login page.
const AuthCookieName = "simple_auth"

// SessionTTL is the lifetime of an issued session cookie.
const SessionTTL = 12 * time.Hour

// AuthService implements the single-tenant credential gate. The session token
// is a deterministic encoding of the configured credentials, not a MAC; the
// cookie contract predates this service and is preserved as-is.
type AuthService struct {
	username      string
	password      string
	secureCookies bool
}

func NewAuthService(username string, password string, secureCookies bool) *AuthService {
	return &AuthService{
		username:      strings.TrimSpace(username),
		password:      password,
		secureCookies: secureCookies,
	}
}

// Configured reports whether both credentials are present. When false every
// protected route must fail with a configuration error.
func (s *AuthService) Configured() bool {
	return s.username != "" && s.password != ""
}

// ExpectedToken derives the session token from the configured credentials.
// Identical configuration always yields an identical token.
func (s *AuthService) ExpectedToken() string {
	return base64.StdEncoding.EncodeToString([]byte(s.username + ":" + s.password))
}

// ValidCredentials compares a login attempt against the configured values:
// trimmed username, exact password.
func (s *AuthService) ValidCredentials(username string, password string) bool {
	return strings.TrimSpace(username) == s.username && password == s.password
}

// SessionCookie builds the cookie issued on successful login.
func (s *AuthService) SessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     AuthCookieName,
		Value:    s.ExpectedToken(),
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds the Max-Age zero cookie that clears a session.
func (s *AuthService) ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
