// Package nodeapi is the client for the agent API exposed by remote nodes.
// The panel uses it to check a node's tunnel status and to push re-derived
// client-side tunnel configuration during resets.
package nodeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the node-agent surface the panel depends on. Handlers and the
// reset orchestrator take this interface so tests can substitute fakes.
type Client interface {
	GetTunnelStatus(ctx context.Context, nodeID, token string) (*TunnelStatus, error)
	ApplyTunnel(ctx context.Context, nodeID string, req ApplyRequest) error
}

type TunnelStatus struct {
	Status string `json:"status"`
}

// OK reports whether the node answered with a healthy status.
func (s *TunnelStatus) OK() bool {
	return s != nil && s.Status == "ok"
}

type ApplyRequest struct {
	TunnelID string         `json:"tunnel_id"`
	Core     string         `json:"core"`
	Spec     map[string]any `json:"spec"`
}

// HTTPClient talks to node agents over the panel's node API gateway.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) doRequest(ctx context.Context, method, path, token string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.http.Do(req)
}

// GetTunnelStatus asks the node agent for its tunnel client status.
func (c *HTTPClient) GetTunnelStatus(ctx context.Context, nodeID, token string) (*TunnelStatus, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/nodes/"+nodeID+"/tunnel-status", token, nil)
	if err != nil {
		return nil, fmt.Errorf("get tunnel status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get tunnel status: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var status TunnelStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode tunnel status: %w", err)
	}
	return &status, nil
}

// ApplyTunnel pushes one tunnel's client-side configuration to the node.
func (c *HTTPClient) ApplyTunnel(ctx context.Context, nodeID string, req ApplyRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/nodes/"+nodeID+"/tunnels/apply", "", req)
	if err != nil {
		return fmt.Errorf("apply tunnel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("apply tunnel: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
