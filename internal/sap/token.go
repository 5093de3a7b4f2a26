// internal/sap/token.go
package sap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"asset-migrator/internal/common/metrics"
)

// TokenResponse holds the response from an OAuth2 token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// TokenSource fetches OAuth2 client-credentials tokens and caches them until
// expiry. Invalidate drops the cached token so the next call refetches, which
// is how callers recover from a 401 on a stale token.
type TokenSource struct {
	system       string
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client

	accessToken string
	tokenExpiry time.Time
}

// NewTokenSource creates a token source for one SAP system.
func NewTokenSource(system, clientID, clientSecret, tokenURL string, timeout time.Duration) *TokenSource {
	return &TokenSource{
		system:       system,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Token returns a valid access token, fetching a new one only when the cached
// token is missing or expired.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if t.accessToken != "" && t.tokenExpiry.After(time.Now()) {
		return t.accessToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", t.clientID)
	data.Set("client_secret", t.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request for %s failed with status %d: %s", t.system, resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	t.accessToken = tokenResp.AccessToken
	t.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	metrics.TokenRefreshes.WithLabelValues(t.system).Inc()

	return t.accessToken, nil
}

// Invalidate drops the cached token.
func (t *TokenSource) Invalidate() {
	t.accessToken = ""
	t.tokenExpiry = time.Time{}
}
