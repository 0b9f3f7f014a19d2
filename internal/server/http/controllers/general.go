package controllers

import (
	"net/http"

	"github.com/globulario/services-sub005/internal/eventserver"
)

// GeneralController handles health and service statistics.
type GeneralController struct {
	svc *eventserver.Service
}

// NewGeneralController creates a new general controller.
func NewGeneralController(svc *eventserver.Service) *GeneralController {
	return &GeneralController{svc: svc}
}

// RegisterRoutes registers general routes with the given mux.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/events/stats", c.handleStats)
}

// handleHealth returns 200 with {"status":"ok"} and the attached client count.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := c.svc.Stats()
	writeJSON(w, map[string]any{"status": "ok", "clients": st.Clients})
}

func (c *GeneralController) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, c.svc.Stats())
}
