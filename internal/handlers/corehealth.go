package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/tunnelgate/panel/internal/corespec"
	"github.com/tunnelgate/panel/internal/crypto"
	"github.com/tunnelgate/panel/internal/database"
)

// CoreHealth reports one core's local (panel) and remote (node) health side
// by side. The two signals are orthogonal and are never merged: a healthy
// panel says nothing about a node's client, and vice versa.
type CoreHealth struct {
	Core         string                `json:"core"`
	PanelStatus  string                `json:"panel_status"`
	PanelHealthy bool                  `json:"panel_healthy"`
	NodesStatus  map[string]NodeHealth `json:"nodes_status"`
}

type NodeHealth struct {
	Healthy       bool   `json:"healthy"`
	Status        string `json:"status"`
	ActiveTunnels int    `json:"active_tunnels"`
}

// GetCoreHealth handles GET /health.
func GetCoreHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, collectHealth(r.Context()))
}

// collectHealth builds the per-core health report. Shared by the plain
// endpoint and the websocket stream.
func collectHealth(ctx context.Context) []CoreHealth {
	var health []CoreHealth
	for _, core := range corespec.Cores() {
		health = append(health, collectCoreHealth(ctx, core))
	}
	return health
}

func collectCoreHealth(ctx context.Context, core string) CoreHealth {
	h := CoreHealth{
		Core:        core,
		PanelStatus: "unknown",
		NodesStatus: map[string]NodeHealth{},
	}

	if mgr, ok := Managers.Get(core); ok {
		active := mgr.ActiveServers()
		h.PanelHealthy = len(active) > 0
		if h.PanelHealthy {
			h.PanelStatus = "healthy"
		} else {
			h.PanelStatus = "no_active_servers"
		}
	}

	tunnels, err := database.ActiveTunnels(core)
	if err != nil {
		log.Printf("Error loading active %s tunnels for health: %v", core, err)
		return h
	}

	for _, nodeID := range distinctNodes(tunnels) {
		node, err := database.GetNode(nodeID)
		if err != nil {
			continue
		}

		status := NodeHealth{Status: "unknown"}

		token, err := crypto.Decrypt(node.APIToken)
		if err != nil {
			log.Printf("Error decrypting %s node %s token: %v", core, nodeID, err)
			token = ""
		}

		resp, err := NodeClient.GetTunnelStatus(ctx, nodeID, token)
		switch {
		case err != nil:
			log.Printf("Error checking %s node %s health: %v", core, nodeID, err)
			status.Status = "error"
		case resp.OK():
			status.Healthy = true
			status.Status = "connected"
		default:
			status.Status = "disconnected"
		}

		for _, t := range tunnels {
			if t.NodeID == nodeID {
				status.ActiveTunnels++
			}
		}

		h.NodesStatus[nodeID] = status
	}

	return h
}

// distinctNodes returns the unique node IDs of the tunnels, in first-seen order.
func distinctNodes(tunnels []database.Tunnel) []string {
	seen := make(map[string]struct{})
	var nodes []string
	for _, t := range tunnels {
		if t.NodeID == "" {
			continue
		}
		if _, ok := seen[t.NodeID]; ok {
			continue
		}
		seen[t.NodeID] = struct{}{}
		nodes = append(nodes, t.NodeID)
	}
	return nodes
}
