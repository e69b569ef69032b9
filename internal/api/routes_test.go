package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/adapters/elevenlabs"
	"github.com/wicara-ai/wicara/internal/auth"
	"github.com/wicara-ai/wicara/internal/metrics"
)

// newBroker wires the routes against a stubbed upstream API.
func newBroker(t *testing.T, upstreamHandler http.HandlerFunc, secret string) *echo.Echo {
	t.Helper()

	upstreamSrv := httptest.NewServer(upstreamHandler)
	t.Cleanup(upstreamSrv.Close)

	upstream, err := elevenlabs.NewClient(elevenlabs.Config{
		APIKey:     "sk_test",
		APIBaseURL: upstreamSrv.URL,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	registry := prometheus.NewRegistry()
	e := echo.New()
	InitRoutes(e, upstream, auth.NewService(secret), metrics.NewMetrics(registry), registry, zap.NewNop())
	return e
}

func doRequest(e *echo.Echo, method, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := newBroker(t, func(w http.ResponseWriter, r *http.Request) {}, "")

	rec := doRequest(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Service != "wicara-broker" {
		t.Errorf("health = %+v", health)
	}
}

func TestListAgentsNormalization(t *testing.T) {
	tests := []struct {
		name     string
		upstream string
		want     []AgentResponse
	}{
		{
			"bare array with snake_case ids",
			`[{"agent_id":"a1","name":"Support"},{"agent_id":"a2"}]`,
			[]AgentResponse{{AgentID: "a1", Name: "Support"}, {AgentID: "a2", Name: "Unnamed Agent"}},
		},
		{
			"wrapped object with mixed id spellings",
			`{"agents":[{"agentId":"a1","name":"One"},{"id":"a2","name":"Two"},{"name":"Three"}]}`,
			[]AgentResponse{{AgentID: "a1", Name: "One"}, {AgentID: "a2", Name: "Two"}, {AgentID: "unknown", Name: "Three"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newBroker(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/convai/agents" {
					t.Errorf("upstream path = %s", r.URL.Path)
				}
				if r.Header.Get("xi-api-key") != "sk_test" {
					t.Error("missing upstream API key header")
				}
				w.Write([]byte(tt.upstream))
			}, "")

			rec := doRequest(e, http.MethodGet, "/api/agents", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			var agents []AgentResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &agents); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(agents) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(agents), len(tt.want))
			}
			for i, want := range tt.want {
				if agents[i] != want {
					t.Errorf("agents[%d] = %+v, want %+v", i, agents[i], want)
				}
			}
		})
	}
}

func TestListAgentsUpstreamFailure(t *testing.T) {
	e := newBroker(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}, "")

	rec := doRequest(e, http.MethodGet, "/api/agents", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestConnectAgent(t *testing.T) {
	e := newBroker(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/convai/conversation/get_signed_url") {
			t.Errorf("upstream path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("agent_id"); got != "a1" {
			t.Errorf("agent_id = %q", got)
		}
		w.Write([]byte(`{"signed_url":"wss://upstream.example/conv?token=xyz"}`))
	}, "")

	rec := doRequest(e, http.MethodPost, "/api/agents/a1/connect", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var connect ConnectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &connect); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if connect.SignedURL != "wss://upstream.example/conv?token=xyz" {
		t.Errorf("signedUrl = %q", connect.SignedURL)
	}
}

func TestConnectAgentUpstreamFailure(t *testing.T) {
	e := newBroker(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}, "")

	rec := doRequest(e, http.MethodPost, "/api/agents/a1/connect", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestAgentRoutesRequireAuthWhenConfigured(t *testing.T) {
	e := newBroker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}, "test-secret")

	rec := doRequest(e, http.MethodGet, "/api/agents", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", rec.Code)
	}

	token, err := auth.NewService("test-secret").GenerateToken("cli")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	rec = doRequest(e, http.MethodGet, "/api/agents", "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Errorf("status with token = %d, want 200", rec.Code)
	}

	// Health stays open.
	rec = doRequest(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newBroker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}, "")

	doRequest(e, http.MethodGet, "/api/agents", "")

	rec := doRequest(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "wicara_agent_list_requests_total") {
		t.Error("metrics output missing agent list counter")
	}
}
