package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultAPIVersion = "2025-04-01-preview"

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerIdleTimeout       time.Duration
	Environment             string
	CORSOrigins             []string

	// Azure OpenAI image edit endpoint
	Endpoint   string
	Deployment string
	APIVersion string
	APIKey     string

	// Simple auth gate
	AuthUsername string
	AuthPassword string

	TemplatesDir  string
	MaxUploadSize int64

	// Loaded for parity with existing deployments; only logged at startup.
	TelemetryConnectionString string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		Environment:             getEnv("APP_ENV", "development"),
		CORSOrigins:             splitCSV(strings.TrimSpace(os.Getenv("CORS_ORIGINS"))),

		Endpoint:   strings.TrimSpace(os.Getenv("AZURE_OPENAI_ENDPOINT")),
		Deployment: strings.TrimSpace(os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME")),
		APIVersion: getEnv("OPENAI_API_VERSION", DefaultAPIVersion),
		APIKey:     strings.TrimSpace(os.Getenv("AZURE_OPENAI_API_KEY")),

		AuthUsername: strings.TrimSpace(os.Getenv("AUTH_USERNAME")),
		AuthPassword: os.Getenv("AUTH_PASSWORD"),

		TemplatesDir:  getEnv("PROMPT_TEMPLATES_DIR", "./prompt-templates"),
		MaxUploadSize: getInt64("MAX_UPLOAD_SIZE", 50<<20),

		TelemetryConnectionString: strings.TrimSpace(os.Getenv("APPLICATIONINSIGHTS_CONNECTION_STRING")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("AZURE_OPENAI_ENDPOINT is required")
	}

	parsed, err := url.Parse(c.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("AZURE_OPENAI_ENDPOINT must be a valid URL, got %q", c.Endpoint)
	}

	if c.Deployment == "" {
		return fmt.Errorf("AZURE_OPENAI_DEPLOYMENT_NAME is required")
	}

	if c.APIVersion == "" {
		return fmt.Errorf("OPENAI_API_VERSION cannot be empty")
	}

	if c.AuthUsername == "" {
		return fmt.Errorf("AUTH_USERNAME is required")
	}

	if c.AuthPassword == "" {
		return fmt.Errorf("AUTH_PASSWORD is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.TemplatesDir) == "" {
		return fmt.Errorf("PROMPT_TEMPLATES_DIR cannot be empty")
	}

	return nil
}

// IsProduction controls the Secure flag on issued cookies.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
