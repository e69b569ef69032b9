package repositories

import "context"

// Agent is one selectable conversational agent.
type Agent struct {
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
}

// ConnectionBroker abstracts the backend that holds the provider credential.
// The client never sees the API key; it asks the broker for a one-time
// signed websocket URL instead.
type ConnectionBroker interface {
	// GetConnectionTarget exchanges an agent identifier for a one-time
	// websocket URL.
	GetConnectionTarget(ctx context.Context, agentID string) (string, error)

	// ListAgents returns the agents available to this account.
	ListAgents(ctx context.Context) ([]Agent, error)
}
