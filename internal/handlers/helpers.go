package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tunnelgate/panel/internal/corerun"
	"github.com/tunnelgate/panel/internal/nodeapi"
	"github.com/tunnelgate/panel/internal/reset"
)

// Wired by main at startup.
var (
	Managers   *corerun.Registry
	NodeClient nodeapi.Client
	ResetOrch  *reset.Orchestrator
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
