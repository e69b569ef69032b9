package api

// AgentResponse is one normalized agent entry. The upstream uses several
// field spellings for the identifier; the broker flattens them so clients
// only ever see agentId.
type AgentResponse struct {
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
}

// ConnectResponse carries the signed websocket URL for one connection.
type ConnectResponse struct {
	SignedURL string `json:"signedUrl"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
