package deployapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
)

// ErrRequest is the cause of every failed deploy backend call
var ErrRequest = errors.New("deploy API request failed")

// Config is the deployment configuration posted to the backend
type Config struct {
	ProxyName        string `json:"proxyName"`
	EnvironmentGroup string `json:"environmentGroup"`
	EnvironmentType  string `json:"environmentType"`
	ProxyDirectory   string `json:"proxyDirectory"`
	GitHubUsername   string `json:"githubUsername"`
	GitHubToken      string `json:"githubToken,omitempty"`
}

// Response is the envelope returned by the backend
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// APIError carries the human readable message of a failed call
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return ErrRequest
}

// Client talks to the deployment backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	clock      clock.Clock
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithClock replaces the wall clock used by Simulate
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// NewClient creates a client for the backend rooted at baseURL
func NewClient(baseURL string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clock:      clock.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deploy asks the backend to deploy the proxy
func (c *Client) Deploy(ctx context.Context, cfg Config) (*Response, error) {
	return c.post(ctx, "/deploy", cfg, "Deployment failed")
}

// Validate asks the backend to validate the configuration
func (c *Client) Validate(ctx context.Context, cfg Config) (*Response, error) {
	return c.post(ctx, "/validate", cfg, "Validation failed")
}

func (c *Client) post(ctx context.Context, path string, cfg Config, fallback string) (*Response, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deployment config: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("Deploy API request failed")
		return nil, &APIError{Message: fallback}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fallback}
	}

	var result Response
	decodeErr := json.Unmarshal(data, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := fallback
		if decodeErr == nil && result.Message != "" {
			message = result.Message
		}
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("message", message).
			Msg("Deploy API returned an error")
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	if decodeErr != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fallback}
	}

	c.logger.Debug().Str("path", path).Bool("success", result.Success).Msg("Deploy API call completed")
	return &result, nil
}
