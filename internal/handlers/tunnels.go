package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tunnelgate/panel/internal/corespec"
	"github.com/tunnelgate/panel/internal/database"
	"gorm.io/gorm"
)

// ListTunnels handles GET /tunnels.
func ListTunnels(w http.ResponseWriter, r *http.Request) {
	tunnels, err := database.ListTunnels()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tunnels")
		return
	}
	writeJSON(w, http.StatusOK, tunnels)
}

type createTunnelRequest struct {
	Name   string          `json:"name"`
	Core   string          `json:"core"`
	NodeID string          `json:"node_id"`
	Spec   json.RawMessage `json:"spec"`
}

// CreateTunnel handles POST /tunnels.
func CreateTunnel(w http.ResponseWriter, r *http.Request) {
	var req createTunnelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if !corespec.Known(req.Core) {
		writeError(w, http.StatusBadRequest, "Invalid core: "+req.Core)
		return
	}

	spec := string(req.Spec)
	if spec == "" {
		spec = "{}"
	}
	// Reject specs the core cannot parse before persisting anything.
	if _, err := corespec.Parse(req.Core, spec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tunnel := database.Tunnel{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Core:   req.Core,
		Status: "inactive",
		NodeID: req.NodeID,
		Spec:   spec,
	}
	if err := database.DB.Create(&tunnel).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create tunnel")
		return
	}
	writeJSON(w, http.StatusCreated, tunnel)
}

// StartTunnel handles POST /tunnels/{id}/start: launches the tunnel's local
// server process and marks the tunnel active.
func StartTunnel(w http.ResponseWriter, r *http.Request) {
	tunnel, ok := loadTunnel(w, r)
	if !ok {
		return
	}

	mgr, ok := Managers.Get(tunnel.Core)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "No manager for core: "+tunnel.Core)
		return
	}

	spec, err := corespec.Parse(tunnel.Core, tunnel.Spec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := spec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := mgr.Start(tunnel.ID, spec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := database.SetTunnelStatus(tunnel.ID, "active"); err != nil {
		log.Printf("Error marking tunnel %s active: %v", tunnel.ID, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// StopTunnel handles POST /tunnels/{id}/stop.
func StopTunnel(w http.ResponseWriter, r *http.Request) {
	tunnel, ok := loadTunnel(w, r)
	if !ok {
		return
	}

	if mgr, hasMgr := Managers.Get(tunnel.Core); hasMgr {
		mgr.Stop(tunnel.ID)
	}

	if err := database.SetTunnelStatus(tunnel.ID, "inactive"); err != nil {
		log.Printf("Error marking tunnel %s inactive: %v", tunnel.ID, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// GetTunnelState handles GET /tunnels/{id}: the row plus a fresh liveness poll.
func GetTunnelState(w http.ResponseWriter, r *http.Request) {
	tunnel, ok := loadTunnel(w, r)
	if !ok {
		return
	}

	running := false
	if mgr, hasMgr := Managers.Get(tunnel.Core); hasMgr {
		running = mgr.IsRunning(tunnel.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tunnel":  tunnel,
		"running": running,
	})
}

func loadTunnel(w http.ResponseWriter, r *http.Request) (*database.Tunnel, bool) {
	id := chi.URLParam(r, "id")
	tunnel, err := database.GetTunnel(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			writeError(w, http.StatusNotFound, "Tunnel not found")
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to load tunnel")
		}
		return nil, false
	}
	return tunnel, true
}
