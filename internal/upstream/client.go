package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-image-playground/internal/model"
)

const (
	attemptTimeout     = 120 * time.Second
	maxRetries         = 2
	defaultBackoffBase = 500 * time.Millisecond
)

// Statuses worth retrying; anything else is relayed on the first attempt.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Response is one upstream result ready to relay. Body is a live stream in
// streaming mode; error bodies have already been logged and re-buffered.
type Response struct {
	Status      int
	ContentType string
	Body        io.ReadCloser
}

// Client forwards validated edit requests to the Azure OpenAI images/edits
// endpoint with bounded retry.
type Client struct {
	baseURL    string
	deployment string
	apiVersion string
	apiKey     string
	tokens     TokenProvider
	httpClient *http.Client

	backoffBase time.Duration
	sleep       func(context.Context, time.Duration) error
}

// NewClient builds a forwarder. When apiKey is non-empty it is always used
// and tokens is never consulted.
func NewClient(endpoint string, deployment string, apiVersion string, apiKey string, tokens TokenProvider) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(endpoint, "/"),
		deployment:  deployment,
		apiVersion:  apiVersion,
		apiKey:      apiKey,
		tokens:      tokens,
		httpClient:  &http.Client{Timeout: attemptTimeout},
		backoffBase: defaultBackoffBase,
		sleep:       sleepContext,
	}
}

func (c *Client) editURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/images/edits?api-version=%s", c.baseURL, c.deployment, c.apiVersion)
}

// SubmitEdit performs the outbound call and returns the upstream response for
// relay. Only retryable statuses and transport failures are retried; after
// the retry budget is spent the last failure is returned as an error.
func (c *Client) SubmitEdit(ctx context.Context, req *model.EditRequest) (*Response, error) {
	headers := http.Header{}
	if c.apiKey != "" {
		headers.Set("api-key", c.apiKey)
	} else {
		token, err := c.tokens.Acquire(ctx, Scope)
		if err != nil {
			return nil, err
		}
		headers.Set("Authorization", "Bearer "+token.Value)
	}

	if req.Stream {
		headers.Set("Accept", "text/event-stream")
	}

	payload, contentType, err := buildEditBody(req)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	headers.Set("Content-Type", contentType)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, attemptErr := c.attempt(ctx, headers, payload)
		if attemptErr != nil {
			lastErr = attemptErr
		} else if retryableStatuses[resp.StatusCode] {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("retryable upstream status %d", resp.StatusCode)
		} else {
			return c.relay(resp)
		}

		if err := c.sleep(ctx, c.backoffBase<<attempt); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %v", model.ErrUpstreamFailed, lastErr)
}

func (c *Client) attempt(ctx context.Context, headers http.Header, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.editURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		req.Header[key] = values
	}

	return c.httpClient.Do(req)
}

// relay logs error bodies for diagnosis and hands the response back. Error
// bodies are consumed here and re-buffered so the handler can still relay
// them.
func (c *Client) relay(resp *http.Response) (*Response, error) {
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	out := &Response{
		Status:      resp.StatusCode,
		ContentType: contentType,
		Body:        resp.Body,
	}

	if resp.StatusCode >= http.StatusBadRequest {
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read error body: %v", model.ErrUpstreamFailed, err)
		}

		slog.Error("upstream image edit error", "status", resp.StatusCode, "body", string(body))
		out.Body = io.NopCloser(bytes.NewReader(body))
	}

	return out, nil
}

// buildEditBody renders the multipart payload once; attempts reuse the same
// bytes. Field names and order follow the images/edits API.
func buildEditBody(req *model.EditRequest) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	imagePart, err := writer.CreateFormFile("image[]", partFileName(req.Image.Name, "image.png"))
	if err != nil {
		return nil, "", err
	}
	if _, err := imagePart.Write(req.Image.Data); err != nil {
		return nil, "", err
	}

	fields := []struct {
		name  string
		value string
	}{
		{"prompt", req.Prompt},
		{"model", req.Model},
		{"size", req.Size},
		{"quality", req.Quality},
		{"n", strconv.Itoa(req.Count)},
	}
	for _, field := range fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", err
		}
	}

	if req.Mask != nil && len(req.Mask.Data) > 0 {
		maskPart, err := writer.CreateFormFile("mask", partFileName(req.Mask.Name, "mask.png"))
		if err != nil {
			return nil, "", err
		}
		if _, err := maskPart.Write(req.Mask.Data); err != nil {
			return nil, "", err
		}
	}

	optional := []struct {
		name  string
		value string
	}{
		{"user", req.User},
		{"input_fidelity", req.InputFidelity},
		{"output_format", req.OutputFormat},
		{"output_compression", req.OutputCompression},
		{"background", req.Background},
	}
	for _, field := range optional {
		if field.value == "" {
			continue
		}
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.WriteField("stream", strconv.FormatBool(req.Stream)); err != nil {
		return nil, "", err
	}
	if req.Stream && req.PartialImages != "" {
		if err := writer.WriteField("partial_images", req.PartialImages); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body.Bytes(), writer.FormDataContentType(), nil
}

func partFileName(name string, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
