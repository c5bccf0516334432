//go:build integration

package integration

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionGateOnPagesAndAPI(t *testing.T) {
	upstreamStub := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(upstreamStub.Close)

	server := newPlaygroundServer(t, upstreamStub.URL)
	client := noRedirectClient()

	t.Run("health is reachable without a session", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/health")
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("metrics are reachable without a session", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/metrics")
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unauthenticated page redirects to login with next", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/playground")
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		require.Equal(t, "/login?next=%2Fplayground", resp.Header.Get("Location"))
	})

	t.Run("unauthenticated API call returns 401", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/templates")
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("login page is reachable without a session", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/login")
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLoginLogoutFlow(t *testing.T) {
	upstreamStub := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(upstreamStub.Close)

	server := newPlaygroundServer(t, upstreamStub.URL)
	client := noRedirectClient()

	t.Run("wrong credentials are rejected", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/api/auth/login", "application/json",
			bytes.NewReader([]byte(`{"username":"admin","password":"wrong"}`)))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Empty(t, resp.Cookies())
	})

	cookie := login(t, server)

	t.Run("session cookie unlocks pages and API", func(t *testing.T) {
		resp := doAuthedRequest(t, http.MethodGet, server.URL+"/playground", cookie, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		apiResp := doAuthedRequest(t, http.MethodGet, server.URL+"/api/templates", cookie, nil, "")
		require.Equal(t, http.StatusOK, apiResp.StatusCode)
	})

	t.Run("authenticated login page redirects home", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/login", nil)
		require.NoError(t, err)
		req.AddCookie(cookie)

		resp, err := client.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		require.Equal(t, "/", resp.Header.Get("Location"))
	})

	t.Run("logout expires the cookie", func(t *testing.T) {
		resp := doAuthedRequest(t, http.MethodPost, server.URL+"/api/auth/logout", cookie, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var expired *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == cookie.Name {
				expired = c
			}
		}
		require.NotNil(t, expired)
		require.Negative(t, expired.MaxAge)
	})

	t.Run("tampered cookie is rejected", func(t *testing.T) {
		bad := &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}
		resp := doAuthedRequest(t, http.MethodGet, server.URL+"/api/templates", bad, nil, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
