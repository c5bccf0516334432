package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-image-playground/internal/model"
)

type staticTokens struct {
	token Token
	err   error
	calls atomic.Int32
}

func (s *staticTokens) Acquire(_ context.Context, _ string) (Token, error) {
	s.calls.Add(1)
	return s.token, s.err
}

func editRequestFixture() *model.EditRequest {
	return &model.EditRequest{
		Image:   model.FilePart{Name: "photo.png", Data: []byte("png-bytes")},
		Prompt:  "add a beach ball",
		Model:   model.DefaultModel,
		Size:    model.DefaultSize,
		Quality: model.DefaultQuality,
		Count:   1,
	}
}

// newTestClient points a Client at a stub upstream and replaces the backoff
// sleep with a recorder so tests run instantly.
func newTestClient(t *testing.T, upstream http.HandlerFunc, apiKey string, tokens TokenProvider) (*Client, *[]time.Duration) {
	t.Helper()

	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "gpt-image-1-5", "2025-04-01-preview", apiKey, tokens)

	var sleeps []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	return client, &sleeps
}

func TestEditURL(t *testing.T) {
	t.Parallel()

	client := NewClient("https://res.openai.azure.com/", "my-deploy", "2025-04-01-preview", "key", nil)
	require.Equal(t,
		"https://res.openai.azure.com/openai/deployments/my-deploy/images/edits?api-version=2025-04-01-preview",
		client.editURL())
}

func TestSubmitEditAuth(t *testing.T) {
	t.Parallel()

	t.Run("api key wins over token acquisition", func(t *testing.T) {
		var gotKey, gotAuth string
		tokens := &staticTokens{token: Token{Value: "bearer-token"}}
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("api-key")
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{}`))
		}, "secret-key", tokens)

		_, err := client.SubmitEdit(context.Background(), editRequestFixture())
		require.NoError(t, err)
		require.Equal(t, "secret-key", gotKey)
		require.Empty(t, gotAuth)
		require.Zero(t, tokens.calls.Load(), "token provider must not be consulted")
	})

	t.Run("bearer token is attached without an api key", func(t *testing.T) {
		var gotAuth string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{}`))
		}, "", &staticTokens{token: Token{Value: "bearer-token"}})

		_, err := client.SubmitEdit(context.Background(), editRequestFixture())
		require.NoError(t, err)
		require.Equal(t, "Bearer bearer-token", gotAuth)
	})

	t.Run("token acquisition failure aborts the request", func(t *testing.T) {
		client, sleeps := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			t.Error("upstream must not be called")
		}, "", &staticTokens{err: model.ErrTokenUnavailable})

		_, err := client.SubmitEdit(context.Background(), editRequestFixture())
		require.ErrorIs(t, err, model.ErrTokenUnavailable)
		require.Empty(t, *sleeps)
	})
}

func TestSubmitEditBody(t *testing.T) {
	t.Parallel()

	req := editRequestFixture()
	req.Mask = &model.FilePart{Name: "mask.png", Data: []byte("mask-bytes")}
	req.User = "tester"
	req.InputFidelity = "high"
	req.OutputFormat = "png"
	req.Background = "transparent"
	req.Count = 3

	var parsed *http.Request
	var maskData, imageData []byte
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		parsed = r

		imageFile, _, err := r.FormFile("image[]")
		require.NoError(t, err)
		imageData, _ = io.ReadAll(imageFile)

		maskFile, _, err := r.FormFile("mask")
		require.NoError(t, err)
		maskData, _ = io.ReadAll(maskFile)

		_, _ = w.Write([]byte(`{}`))
	}, "key", nil)

	_, err := client.SubmitEdit(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, []byte("png-bytes"), imageData)
	require.Equal(t, []byte("mask-bytes"), maskData)
	require.Equal(t, "add a beach ball", parsed.FormValue("prompt"))
	require.Equal(t, model.DefaultModel, parsed.FormValue("model"))
	require.Equal(t, "1024x1024", parsed.FormValue("size"))
	require.Equal(t, "high", parsed.FormValue("quality"))
	require.Equal(t, "3", parsed.FormValue("n"))
	require.Equal(t, "tester", parsed.FormValue("user"))
	require.Equal(t, "high", parsed.FormValue("input_fidelity"))
	require.Equal(t, "png", parsed.FormValue("output_format"))
	require.Equal(t, "transparent", parsed.FormValue("background"))
	require.Equal(t, "false", parsed.FormValue("stream"))
	require.Empty(t, parsed.FormValue("partial_images"), "partial_images only travels in streaming mode")
}

func TestSubmitEditStreamingFields(t *testing.T) {
	t.Parallel()

	req := editRequestFixture()
	req.Stream = true
	req.PartialImages = "2"

	var accept, stream, partial string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		accept = r.Header.Get("Accept")
		stream = r.FormValue("stream")
		partial = r.FormValue("partial_images")

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {}\n\n"))
	}, "key", nil)

	resp, err := client.SubmitEdit(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/event-stream", accept)
	require.Equal(t, "true", stream)
	require.Equal(t, "2", partial)
	require.Equal(t, "text/event-stream", resp.ContentType)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "data: {}\n\n", string(body))
}

func TestSubmitEditRetry(t *testing.T) {
	t.Parallel()

	t.Run("retries each retryable status then succeeds", func(t *testing.T) {
		for _, status := range []int{429, 500, 502, 503, 504} {
			var attempts atomic.Int32
			client, sleeps := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				if attempts.Add(1) == 1 {
					w.WriteHeader(status)
					return
				}
				_, _ = w.Write([]byte(`{"data":[]}`))
			}, "key", nil)

			resp, err := client.SubmitEdit(context.Background(), editRequestFixture())
			require.NoError(t, err, "status %d", status)
			_ = resp.Body.Close()

			require.Equal(t, int32(2), attempts.Load(), "status %d", status)
			require.Equal(t, []time.Duration{500 * time.Millisecond}, *sleeps, "status %d", status)
		}
	})

	t.Run("exhausts the retry budget with doubling backoff", func(t *testing.T) {
		var attempts atomic.Int32
		client, sleeps := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}, "key", nil)

		_, err := client.SubmitEdit(context.Background(), editRequestFixture())
		require.ErrorIs(t, err, model.ErrUpstreamFailed)
		require.Contains(t, err.Error(), "503")

		require.Equal(t, int32(3), attempts.Load())
		require.Equal(t, []time.Duration{
			500 * time.Millisecond,
			1000 * time.Millisecond,
			2000 * time.Millisecond,
		}, *sleeps)
	})

	t.Run("non-retryable status is relayed on the first attempt", func(t *testing.T) {
		var attempts atomic.Int32
		client, sleeps := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			attempts.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad prompt"}}`))
		}, "key", nil)

		resp, err := client.SubmitEdit(context.Background(), editRequestFixture())
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, int32(1), attempts.Load())
		require.Empty(t, *sleeps)
		require.Equal(t, http.StatusBadRequest, resp.Status)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "bad prompt", "error body is re-buffered after logging")
	})

	t.Run("transport failures are retried", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		server.Close()

		client := NewClient(server.URL, "dep", "v", "key", nil)
		var sleeps []time.Duration
		client.sleep = func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}

		_, err := client.SubmitEdit(context.Background(), editRequestFixture())
		require.ErrorIs(t, err, model.ErrUpstreamFailed)
		require.Len(t, sleeps, 3)
	})

	t.Run("cancelled context stops the backoff", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, "key", nil)
		client.sleep = sleepContext

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.SubmitEdit(ctx, editRequestFixture())
		require.Error(t, err)
		require.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "context canceled"))
	})
}

func TestRelayDefaultsContentType(t *testing.T) {
	t.Parallel()

	client := NewClient("https://example", "dep", "v", "key", nil)

	resp, err := client.relay(&http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("payload")),
	})
	require.NoError(t, err)
	require.Equal(t, "text/plain", resp.ContentType)
}
