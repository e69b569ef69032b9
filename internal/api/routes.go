// Package api wires the broker's HTTP surface: agent discovery, signed URL
// minting, health, and metrics.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/adapters/elevenlabs"
	"github.com/wicara-ai/wicara/internal/auth"
	"github.com/wicara-ai/wicara/internal/metrics"
)

// InitRoutes initializes all broker routes.
func InitRoutes(e *echo.Echo, upstream *elevenlabs.Client, authService *auth.Service, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:    "ok",
			Service:   "wicara-broker",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Prometheus metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Agent APIs, behind auth when a secret is configured
	agents := e.Group("/api/agents", authService.Middleware(), withRequestMetrics(m))

	agents.GET("", func(c echo.Context) error {
		return listAgents(c, upstream, m, logger)
	})
	agents.POST("/:agentId/connect", func(c echo.Context) error {
		return connectAgent(c, upstream, m, logger)
	})
}

// withRequestMetrics counts requests per endpoint and status code.
func withRequestMetrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			m.RecordHTTPRequest(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", c.Response().Status),
			)
			return err
		}
	}
}

func listAgents(c echo.Context, upstream *elevenlabs.Client, m *metrics.Metrics, logger *zap.Logger) error {
	start := time.Now()
	raw, err := upstream.ListAgents(c.Request().Context())
	m.RecordAgentList(err == nil, time.Since(start).Seconds())
	if err != nil {
		logger.Error("Failed to fetch agents", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "Failed to fetch agents",
		})
	}

	agents := make([]AgentResponse, 0, len(raw))
	for _, entry := range raw {
		agents = append(agents, normalizeAgent(entry))
	}

	logger.Info("Listed agents", zap.Int("count", len(agents)))
	return c.JSON(http.StatusOK, agents)
}

func connectAgent(c echo.Context, upstream *elevenlabs.Client, m *metrics.Metrics, logger *zap.Logger) error {
	agentID := c.Param("agentId")
	if agentID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_agent_id",
			Message: "Agent ID is required",
		})
	}

	start := time.Now()
	signedURL, err := upstream.GetSignedURL(c.Request().Context(), agentID)
	m.RecordSignedURL(err == nil, time.Since(start).Seconds())
	if err != nil {
		logger.Error("Failed to get signed URL",
			zap.String("agentID", agentID),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "Failed to get connection URL",
		})
	}

	logger.Info("Issued connection URL", zap.String("agentID", agentID))
	return c.JSON(http.StatusOK, ConnectResponse{SignedURL: signedURL})
}

// normalizeAgent flattens the identifier spellings the upstream has used
// over time and fills a display name for nameless agents.
func normalizeAgent(entry map[string]any) AgentResponse {
	agent := AgentResponse{AgentID: "unknown", Name: "Unnamed Agent"}
	for _, key := range []string{"agent_id", "agentId", "id"} {
		if id, ok := entry[key].(string); ok && id != "" {
			agent.AgentID = id
			break
		}
	}
	if name, ok := entry["name"].(string); ok && name != "" {
		agent.Name = name
	}
	return agent
}
