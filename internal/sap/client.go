// internal/sap/client.go
package sap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"asset-migrator/internal/common/config"
	apperrors "asset-migrator/internal/common/errors"
	"asset-migrator/internal/common/metrics"
)

// DefaultTimeout matches the fixed request timeout used across all systems.
const DefaultTimeout = 30 * time.Second

// Client is the shared HTTP client for the OAuth-protected SAP systems
// (ACF, APM, IOT). It injects the bearer token and optional x-api-key on
// every request and retries exactly once after a 401 with a fresh token.
type Client struct {
	BaseURL    string
	system     string
	apiKey     string
	tokens     *TokenSource
	httpClient *http.Client
}

// NewClient builds a client from a configured system entry.
func NewClient(sys *config.SystemConfig, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimSuffix(sys.Host, "/"),
		system:  sys.Type,
		apiKey:  sys.Credentials.XAPIKey,
		tokens: NewTokenSource(
			sys.Type,
			sys.Credentials.ClientID,
			sys.Credentials.ClientSecret,
			sys.Credentials.TokenURL,
			timeout,
		),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// System returns the system type this client talks to.
func (c *Client) System() string {
	return c.system
}

// APIKey returns the configured x-api-key, if any.
func (c *Client) APIKey() string {
	return c.apiKey
}

// Tokens exposes the token source for callers that need manual control,
// such as the resumable download loop.
func (c *Client) Tokens() *TokenSource {
	return c.tokens
}

// Do executes an authenticated request. On a 401 the cached token is
// invalidated and the request is retried once with a fresh token.
func (c *Client) Do(ctx context.Context, method, rawURL string, query url.Values, body []byte, headers map[string]string) (*http.Response, error) {
	resp, err := c.doOnce(ctx, method, rawURL, query, body, headers)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.tokens.Invalidate()
		resp, err = c.doOnce(ctx, method, rawURL, query, body, headers)
		if err != nil {
			return nil, err
		}
	}

	metrics.APIRequests.WithLabelValues(c.system, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

func (c *Client) doOnce(ctx context.Context, method, rawURL string, query url.Values, body []byte, headers map[string]string) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, apperrors.NewTokenRequestFailedError(err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	return resp, nil
}

// GetJSON performs a GET and decodes the response body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, v interface{}) error {
	resp, err := c.Do(ctx, http.MethodGet, rawURL, query, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewAPIError(rawURL, resp.StatusCode, string(body))
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// PostJSON performs a POST with a JSON body, requires expectStatus, and
// decodes the response into v when v is non-nil.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload interface{}, expectStatus int, v interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, rawURL, nil, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectStatus {
		return apperrors.NewAPIError(rawURL, resp.StatusCode, string(respBody))
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
