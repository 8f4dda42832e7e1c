// Package apple provides the HTTP transport for Apple's WLOC endpoint.
package apple

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/wlocate/wlocate/internal/provider/resilience"
	"github.com/wlocate/wlocate/internal/wloc"
)

const (
	// DefaultEndpoint is the WLOC lookup endpoint.
	DefaultEndpoint = "https://gs-loc.apple.com/clls/wloc"

	// ProviderName identifies this provider.
	ProviderName = "apple-wloc"

	// contentType is what the endpoint expects even though the body is binary.
	contentType = "application/x-www-form-urlencoded"

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 8 << 20
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the WLOC client.
type ClientConfig struct {
	// Endpoint is the lookup URL (defaults to DefaultEndpoint).
	Endpoint string

	// UserAgent is sent with every request.
	// If empty, uses wloc.DefaultUserAgent.
	UserAgent string

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Timeout for individual requests (default: 10s).
	Timeout time.Duration

	// MaxRetries for network errors and 5xx responses (default: 0).
	MaxRetries uint64

	// Registry records call outcomes for health reporting (optional).
	Registry *resilience.Registry
}

// ConfigFromEnv creates a ClientConfig from environment variables.
func ConfigFromEnv() ClientConfig {
	timeout, _ := time.ParseDuration(getEnvOrDefault("WLOC_TIMEOUT", "10s"))
	retries, _ := strconv.ParseUint(getEnvOrDefault("WLOC_MAX_RETRIES", "0"), 10, 64)

	return ClientConfig{
		Endpoint:   getEnvOrDefault("WLOC_ENDPOINT", DefaultEndpoint),
		UserAgent:  getEnvOrDefault("WLOC_USER_AGENT", wloc.DefaultUserAgent),
		Timeout:    timeout,
		MaxRetries: retries,
	}
}

// IdentityFromEnv returns the client identity with environment overrides.
func IdentityFromEnv() wloc.ClientIdentity {
	return wloc.ClientIdentity{
		Locale:     getEnvOrDefault("WLOC_LOCALE", wloc.DefaultLocale),
		Identifier: getEnvOrDefault("WLOC_IDENTIFIER", wloc.DefaultIdentifier),
		Version:    getEnvOrDefault("WLOC_VERSION", wloc.DefaultVersion),
		UserAgent:  getEnvOrDefault("WLOC_USER_AGENT", wloc.DefaultUserAgent),
	}
}

// Client posts encoded WLOC frames. It implements wloc.Transport.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient HTTPDoer
	registry   *resilience.Registry
}

var _ wloc.Transport = (*Client)(nil)

// NewClient creates a new WLOC client.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = wloc.DefaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		endpoint:   endpoint,
		userAgent:  userAgent,
		httpClient: httpClient,
		registry:   cfg.Registry,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Query posts frame to the endpoint and returns the raw response body.
// Every failure is reported as a *wloc.TransportError.
func (c *Client) Query(ctx context.Context, frame []byte) (body []byte, err error) {
	if c.registry != nil {
		defer func() { c.registry.Record(ProviderName, err) }()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(frame))
	if err != nil {
		return nil, &wloc.TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &wloc.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &wloc.TransportError{StatusCode: resp.StatusCode}
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &wloc.TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	return body, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
