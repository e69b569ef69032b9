// Package broker is the HTTP client for the connection broker, the service
// that holds the upstream API key and hands out signed connection URLs so
// the chat client never sees the key.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/domain/repositories"
)

const defaultRequestTimeout = 10 * time.Second

// ClientConfig holds configuration for the broker client.
// Required fields:
// - BaseURL: The broker's base URL, e.g. "http://localhost:3001"
// Optional fields:
// - AuthToken: Bearer token sent when the broker enforces authentication
// - Timeout: Per-request timeout (default: 10s)
type ClientConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// Client implements the ConnectionBroker interface over HTTP.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
	logger    *zap.Logger
}

// Ensure Client implements the ConnectionBroker interface
var _ repositories.ConnectionBroker = (*Client)(nil)

// NewClient creates a broker client.
func NewClient(config ClientConfig, logger *zap.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("broker base URL is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:   config.BaseURL,
		authToken: config.AuthToken,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

// GetConnectionTarget asks the broker for a signed websocket URL for the
// given agent. The URL is single-use and expires quickly; callers dial it
// immediately.
func (c *Client) GetConnectionTarget(ctx context.Context, agentID string) (string, error) {
	if agentID == "" {
		return "", fmt.Errorf("agent ID is required")
	}

	url := fmt.Sprintf("%s/api/agents/%s/connect", c.baseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach broker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("broker returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	var connectResponse struct {
		SignedURL string `json:"signedUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&connectResponse); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if connectResponse.SignedURL == "" {
		return "", fmt.Errorf("broker response missing signed URL")
	}

	c.logger.Debug("Obtained connection URL", zap.String("agentID", agentID))
	return connectResponse.SignedURL, nil
}

// ListAgents retrieves the agents available through the broker.
func (c *Client) ListAgents(ctx context.Context) ([]repositories.Agent, error) {
	url := fmt.Sprintf("%s/api/agents", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach broker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("broker returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	var agents []repositories.Agent
	if err := json.NewDecoder(resp.Body).Decode(&agents); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Info("Retrieved available agents", zap.Int("count", len(agents)))
	return agents, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
