// Package adminapi provides a client for the Orchestrator's admin API.
package adminapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the Orchestrator's org-config and status endpoints.
type Client struct {
	baseURL    string
	adminToken string
	httpClient *http.Client
}

// OrgConfig mirrors the orchestrator's org configuration document. The
// CLI treats the config body as opaque JSON beyond the identifying
// fields.
type OrgConfig struct {
	OrgID    string `json:"org_id"`
	OrgName  string `json:"org_name"`
	PlanTier string `json:"plan_tier"`
	Active   bool   `json:"active"`

	Raw json.RawMessage `json:"-"`
}

// UsageStatus is one org/user usage snapshot.
type UsageStatus struct {
	OrgID     string `json:"org_id"`
	UserID    string `json:"user_id,omitempty"`
	OrgCount  int    `json:"org_count"`
	UserCount int    `json:"user_count,omitempty"`
	Date      string `json:"date"`
}

// NewClient creates an admin API client.
func NewClient(baseURL, adminToken string) *Client {
	return &Client{
		baseURL:    baseURL,
		adminToken: adminToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetOrg fetches one org config, including soft-deleted ones.
func (c *Client) GetOrg(orgID string) (json.RawMessage, error) {
	return c.do("GET", fmt.Sprintf("/api/v1/orgs/%s", orgID), nil)
}

// UpsertOrg creates or replaces an org config from a raw JSON document.
func (c *Client) UpsertOrg(body json.RawMessage) (json.RawMessage, error) {
	return c.do("POST", "/api/v1/orgs", body)
}

// DeleteOrg soft-deletes an org config.
func (c *Client) DeleteOrg(orgID string) error {
	_, err := c.do("DELETE", fmt.Sprintf("/api/v1/orgs/%s", orgID), nil)
	return err
}

// RestoreOrg reactivates a soft-deleted org config.
func (c *Client) RestoreOrg(orgID string) error {
	_, err := c.do("POST", fmt.Sprintf("/api/v1/orgs/%s/restore", orgID), nil)
	return err
}

// Usage fetches the current usage counters for an org (and optionally
// one user).
func (c *Client) Usage(orgID, userID string) (json.RawMessage, error) {
	path := fmt.Sprintf("/api/v1/usage/status?orgid=%s", orgID)
	if userID != "" {
		path += "&userid=" + userID
	}
	return c.do("GET", path, nil)
}

// ProviderStatus fetches LLM provider health.
func (c *Client) ProviderStatus() (json.RawMessage, error) {
	return c.do("GET", "/api/v1/providers/status", nil)
}

func (c *Client) do(method, path string, body json.RawMessage) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (status %d)", resp.StatusCode)
	}
	return payload, nil
}
