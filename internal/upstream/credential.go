package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go-image-playground/internal/model"
)

// Scope is the token audience for the Azure OpenAI service.
const Scope = "https://cognitiveservices.azure.com/.default"

const imdsTokenURL = "http://169.254.169.254/metadata/identity/oauth2/token"

// Token is a bearer token with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenProvider acquires a bearer token for a scope. Implementations are
// selected once at startup; callers should wrap one in a CachedTokenProvider.
type TokenProvider interface {
	Acquire(ctx context.Context, scope string) (Token, error)
}

// DetectTokenProvider picks the credential source for the current
// environment: managed identity when an identity endpoint is advertised
// (App Service, Container Apps, or plain IMDS on a VM), Azure CLI otherwise.
func DetectTokenProvider() TokenProvider {
	if os.Getenv("IDENTITY_ENDPOINT") != "" || os.Getenv("MSI_ENDPOINT") != "" {
		slog.Info("using managed identity credential")
		return NewManagedIdentityProvider()
	}

	slog.Info("using Azure CLI credential")
	return &AzureCLIProvider{}
}

// AzureCLIProvider shells out to `az account get-access-token`, the local
// development credential.
type AzureCLIProvider struct{}

type cliTokenPayload struct {
	AccessToken string `json:"accessToken"`
	ExpiresOn   string `json:"expiresOn"`
	Expires     int64  `json:"expires_on"`
}

func (p *AzureCLIProvider) Acquire(ctx context.Context, scope string) (Token, error) {
	cmd := exec.CommandContext(ctx, "az", "account", "get-access-token", "--scope", scope, "--output", "json")
	out, err := cmd.Output()
	if err != nil {
		return Token{}, fmt.Errorf("%w: az account get-access-token: %v", model.ErrTokenUnavailable, err)
	}

	var payload cliTokenPayload
	if err := json.Unmarshal(out, &payload); err != nil {
		return Token{}, fmt.Errorf("%w: parse az output: %v", model.ErrTokenUnavailable, err)
	}
	if payload.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: az returned no access token", model.ErrTokenUnavailable)
	}

	expiresAt, err := parseCLIExpiry(payload)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", model.ErrTokenUnavailable, err)
	}

	return Token{Value: payload.AccessToken, ExpiresAt: expiresAt}, nil
}

// parseCLIExpiry prefers the unix "expires_on" field added in newer CLI
// releases and falls back to the local-time "expiresOn" string.
func parseCLIExpiry(payload cliTokenPayload) (time.Time, error) {
	if payload.Expires > 0 {
		return time.Unix(payload.Expires, 0), nil
	}

	for _, layout := range []string{"2006-01-02 15:04:05.000000", "2006-01-02 15:04:05"} {
		if ts, err := time.ParseInLocation(layout, payload.ExpiresOn, time.Local); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized expiresOn value %q", payload.ExpiresOn)
}

// ManagedIdentityProvider requests tokens from the Azure instance metadata
// endpoints available to hosted workloads.
type ManagedIdentityProvider struct {
	endpoint string
	header   string
	client   *http.Client
}

func NewManagedIdentityProvider() *ManagedIdentityProvider {
	endpoint := os.Getenv("IDENTITY_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("MSI_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = imdsTokenURL
	}

	return &ManagedIdentityProvider{
		endpoint: endpoint,
		header:   os.Getenv("IDENTITY_HEADER"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type identityTokenPayload struct {
	AccessToken string `json:"access_token"`
	ExpiresOn   string `json:"expires_on"`
}

func (p *ManagedIdentityProvider) Acquire(ctx context.Context, scope string) (Token, error) {
	query := url.Values{}
	query.Set("resource", strings.TrimSuffix(scope, "/.default"))
	if p.header != "" {
		query.Set("api-version", "2019-08-01")
	} else {
		query.Set("api-version", "2018-02-01")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Token{}, fmt.Errorf("%w: build identity request: %v", model.ErrTokenUnavailable, err)
	}

	if p.header != "" {
		req.Header.Set("X-IDENTITY-HEADER", p.header)
	} else {
		req.Header.Set("Metadata", "true")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: identity endpoint: %v", model.ErrTokenUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("%w: read identity response: %v", model.ErrTokenUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("%w: identity endpoint returned %d", model.ErrTokenUnavailable, resp.StatusCode)
	}

	var payload identityTokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Token{}, fmt.Errorf("%w: parse identity response: %v", model.ErrTokenUnavailable, err)
	}
	if payload.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: identity endpoint returned no access token", model.ErrTokenUnavailable)
	}

	expires, err := strconv.ParseInt(payload.ExpiresOn, 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: unrecognized expires_on value %q", model.ErrTokenUnavailable, payload.ExpiresOn)
	}

	return Token{Value: payload.AccessToken, ExpiresAt: time.Unix(expires, 0)}, nil
}
