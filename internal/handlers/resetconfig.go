package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tunnelgate/panel/internal/corespec"
	"github.com/tunnelgate/panel/internal/database"
)

// GetResetConfigs handles GET /reset-config: the reset schedule of every
// core, creating missing rows with defaults.
func GetResetConfigs(w http.ResponseWriter, r *http.Request) {
	var configs []database.CoreResetConfig
	for _, core := range corespec.Cores() {
		cfg, err := database.GetOrCreateResetConfig(core)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load reset config: "+err.Error())
			return
		}
		configs = append(configs, *cfg)
	}
	writeJSON(w, http.StatusOK, configs)
}

type resetConfigUpdate struct {
	Enabled         *bool `json:"enabled"`
	IntervalMinutes *int  `json:"interval_minutes"`
}

// UpdateResetConfig handles PUT /reset-config/{core}. An interval below one
// minute is rejected before anything is stored.
func UpdateResetConfig(w http.ResponseWriter, r *http.Request) {
	core := chi.URLParam(r, "core")
	if !corespec.Known(core) {
		writeError(w, http.StatusBadRequest, "Invalid core: "+core)
		return
	}

	var update resetConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if update.IntervalMinutes != nil && *update.IntervalMinutes < 1 {
		writeError(w, http.StatusBadRequest, "Interval must be at least 1 minute")
		return
	}

	cfg, err := database.GetOrCreateResetConfig(core)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load reset config: "+err.Error())
		return
	}

	if update.Enabled != nil {
		cfg.Enabled = *update.Enabled
	}
	if update.IntervalMinutes != nil {
		cfg.IntervalMinutes = *update.IntervalMinutes
	}
	cfg.RecomputeNextReset(time.Now().UTC())

	if err := database.SaveResetConfig(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save reset config: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// ResetCore handles POST /reset/{core}: runs the reset orchestrator
// synchronously and advances the schedule.
func ResetCore(w http.ResponseWriter, r *http.Request) {
	core := chi.URLParam(r, "core")
	if !corespec.Known(core) {
		writeError(w, http.StatusBadRequest, "Invalid core: "+core)
		return
	}

	if err := ResetOrch.ResetCore(r.Context(), core); err != nil {
		log.Printf("Error resetting %s: %v", core, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cfg, err := database.GetOrCreateResetConfig(core)
	if err == nil {
		cfg.MarkReset(time.Now().UTC())
		if err := database.SaveResetConfig(cfg); err != nil {
			log.Printf("Error saving %s reset config: %v", core, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": core + " reset successfully",
	})
}
