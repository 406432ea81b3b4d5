// Package directory provides the client side of the identity directory: a
// snapshot reader over its HTTP API and a consumer for its change feed. The
// directory is the source of truth for agent identity and authorization;
// this package only ever reads from it.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"leadrouter_backend/internal/agents/transport"
)

// Client reads agent records from the identity directory's HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a directory client. The timeout bounds every snapshot
// request; directory reachability must never block lead-serving paths.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListAll enumerates the full directory.
func (c *Client) ListAll(ctx context.Context) ([]transport.DirectoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/agents", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var payload struct {
		Agents []transport.DirectoryEntry `json:"agents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode directory response: %w", err)
	}

	return payload.Agents, nil
}
