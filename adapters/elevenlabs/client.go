// Package elevenlabs is the upstream API client the broker uses to list
// conversational agents and mint signed websocket URLs. The API key never
// leaves this process.
package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const defaultAPIBaseURL = "https://api.elevenlabs.io/v1"

// Config holds configuration for the upstream client.
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the Eleven Labs API (default: "https://api.elevenlabs.io/v1")
type Config struct {
	APIKey     string
	APIBaseURL string
}

// Client calls the Eleven Labs conversational API.
type Client struct {
	apiKey     string
	apiBaseURL string
	http       *http.Client
	logger     *zap.Logger
}

// NewClient creates an upstream client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("eleven labs API key is required")
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	return &Client{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		http:       &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}, nil
}

// ListAgents fetches the raw agent records. The upstream has returned both
// a bare array and an object with an agents field over time, so both shapes
// are accepted.
func (c *Client) ListAgents(ctx context.Context) ([]map[string]any, error) {
	body, err := c.get(ctx, c.apiBaseURL+"/convai/agents")
	if err != nil {
		return nil, err
	}

	var direct []map[string]any
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var wrapped struct {
		Agents []map[string]any `json:"agents"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Agents != nil {
		return wrapped.Agents, nil
	}

	return nil, fmt.Errorf("unexpected agents response format")
}

// GetSignedURL mints a short-lived signed websocket URL for the agent.
func (c *Client) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	if agentID == "" {
		return "", fmt.Errorf("agent ID is required")
	}

	endpoint := fmt.Sprintf("%s/convai/conversation/get_signed_url?agent_id=%s",
		c.apiBaseURL, url.QueryEscape(agentID))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var signedResponse struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.Unmarshal(body, &signedResponse); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if signedResponse.SignedURL == "" {
		return "", fmt.Errorf("upstream response missing signed URL")
	}

	c.logger.Debug("Minted signed URL", zap.String("agentID", agentID))
	return signedResponse.SignedURL, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
