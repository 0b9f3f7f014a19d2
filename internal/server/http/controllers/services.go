package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/globulario/services-sub005/internal/eventserver"
	"github.com/globulario/services-sub005/internal/globular"
	"github.com/globulario/services-sub005/internal/resolver"
	"github.com/globulario/services-sub005/pkg/log"
)

// ServicesController serves the globule's service configuration and
// broadcasts changes to it on the event bus.
type ServicesController struct {
	res    *resolver.ConfigResolver
	svc    *eventserver.Service
	logger log.Logger
}

// NewServicesController creates a new services controller.
func NewServicesController(res *resolver.ConfigResolver, svc *eventserver.Service, logger log.Logger) *ServicesController {
	return &ServicesController{res: res, svc: svc, logger: logger.WithComponent("http.services")}
}

// RegisterRoutes registers configuration routes with the given mux.
//
// - GET  /v1/services?name=<service>   configs for one service name
// - GET  /v1/services/resolve?name=... endpoints for one service name
// - POST /v1/services                  apply one ServiceConfig and publish it
func (c *ServicesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/services", c.handleServices)
	mux.HandleFunc("/v1/services/resolve", c.handleResolve)
}

func (c *ServicesController) handleServices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		name := r.URL.Query().Get("name")
		if name == "" {
			doc := c.res.Document()
			writeJSON(w, map[string]any{"services": doc.Services})
			return
		}
		writeJSON(w, map[string]any{"services": c.res.Configs(name)})
	case http.MethodPost:
		c.handleApply(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleApply stores the posted configuration and publishes it as a
// configuration update so every hub's resolver follows.
func (c *ServicesController) handleApply(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cfg, err := resolver.ParseServiceConfig(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.res.Apply(cfg); err != nil {
		// in-memory state is updated; only persistence failed
		c.logger.Warn("apply service configuration", log.Str("id", cfg.Id), log.Err(err))
	}
	payload, err := resolver.MarshalServiceConfig(cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode configuration")
		return
	}
	n := c.svc.PublishEvent(globular.ConfigUpdateEvent, payload)
	writeJSONStatus(w, http.StatusAccepted, publishResp{Queued: n})
}

func (c *ServicesController) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := r.URL.Query().Get("name")
	eps, err := c.res.Resolve(name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, resolver.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	out := make([]map[string]any, 0, len(eps))
	for _, e := range eps {
		out = append(out, map[string]any{
			"address":  e.Address,
			"port":     e.Port,
			"protocol": e.Protocol,
			"target":   e.Target(),
		})
	}
	writeJSON(w, map[string]any{"endpoints": out})
}
