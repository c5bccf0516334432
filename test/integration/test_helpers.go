//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-image-playground/internal/handler"
	"go-image-playground/internal/middleware"
	"go-image-playground/internal/router"
	"go-image-playground/internal/service"
	"go-image-playground/internal/template"
	"go-image-playground/internal/upstream"
	"go-image-playground/internal/web"
)

const (
	testUsername = "admin"
	testPassword = "hunter2"
	testAPIKey   = "integration-key"
)

// newPlaygroundServer wires the real router against the given upstream
// endpoint and a temp template directory seeded with one template.
func newPlaygroundServer(t *testing.T, upstreamURL string) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sunset.txt"), []byte("Turn the sky into a sunset"), 0o644))

	store, err := template.NewStore(dir)
	require.NoError(t, err)

	pages, err := web.NewPages()
	require.NoError(t, err)

	auth := service.NewAuthService(testUsername, testPassword, false)
	forwarder := upstream.NewClient(upstreamURL, "gpt-image-1.5", "2025-04-01-preview", testAPIKey, nil)

	r := router.New(router.Handlers{
		Auth:     handler.NewAuthHandler(auth),
		Template: handler.NewTemplateHandler(store),
		Edit:     handler.NewEditHandler(forwarder, 32<<20),
		Pages:    pages,
	}, middleware.NewSessionGate(auth), nil)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

// noRedirectClient returns redirect responses as-is so tests can assert on
// the session gate's 307s.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// login authenticates against the server and returns the session cookie.
func login(t *testing.T, server *httptest.Server) *http.Cookie {
	t.Helper()

	payload, err := json.Marshal(map[string]string{
		"username": testUsername,
		"password": testPassword,
	})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == service.AuthCookieName {
			return cookie
		}
	}
	t.Fatal("login response did not set the session cookie")
	return nil
}

// editForm builds a multipart edit request body. A nil image omits the
// image part entirely.
func editForm(t *testing.T, image []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if image != nil {
		part, err := writer.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func doAuthedRequest(t *testing.T, method string, url string, cookie *http.Cookie, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}
