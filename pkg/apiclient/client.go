// Package apiclient is the HTTP client the daemon uses to pull its
// DaemonConfig from a control plane (spec §6.1).
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wirewarden/wirewarden/internal/wiredoc"
)

// Client fetches DaemonConfig from one control plane over HTTP, bearer
// authenticated with a per-server API token.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// New constructs a Client against the given control-plane base URL
// (e.g. "https://control.example.com") using the server's API token.
func New(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: http.DefaultClient,
	}
}

// FetchError is returned by FetchConfig for any non-200 response or
// transport failure. IsGone distinguishes "this entry should be removed
// from the daemon's config" (401: token revoked, 404: server deleted)
// from a transient failure the next cycle should simply retry.
type FetchError struct {
	StatusCode int // 0 for a transport-level failure
	Body       string
	Err        error // non-nil for transport-level failures
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("apiclient: request failed: %v", e.Err)
	}
	return fmt.Sprintf("apiclient: server returned %d: %s", e.StatusCode, e.Body)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsGone reports whether the entry that produced this error should be
// torn down and dropped from the daemon's config rather than retried.
func (e *FetchError) IsGone() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusNotFound
}

// FetchConfig requests GET /api/daemon/config with the client's bearer
// token and decodes the response body as a DaemonConfig.
func (c *Client) FetchConfig(ctx context.Context) (wiredoc.DaemonConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/daemon/config", nil)
	if err != nil {
		return wiredoc.DaemonConfig{}, &FetchError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wiredoc.DaemonConfig{}, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return wiredoc.DaemonConfig{}, &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var cfg wiredoc.DaemonConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return wiredoc.DaemonConfig{}, &FetchError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return cfg, nil
}
