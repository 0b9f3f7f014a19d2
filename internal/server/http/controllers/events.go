package controllers

import (
	"net/http"

	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/globulario/services-sub005/internal/eventserver"
	"github.com/globulario/services-sub005/pkg/id"
	"github.com/globulario/services-sub005/pkg/log"
)

// EventsController exposes publish and subscribe over plain HTTP, sharing
// subscriptions and fan-out with the gRPC surface.
type EventsController struct {
	svc    *eventserver.Service
	logger log.Logger
}

// NewEventsController creates a new events controller.
func NewEventsController(svc *eventserver.Service, logger log.Logger) *EventsController {
	return &EventsController{svc: svc, logger: logger.WithComponent("http.events")}
}

// RegisterRoutes registers event routes with the given mux.
//
// - POST /v1/events/publish   {"name","data"}
// - GET  /v1/events/subscribe ?name=a&name=b[&client=<uuid>]
func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/events/publish", c.handlePublish)
	mux.HandleFunc("/v1/events/subscribe", c.handleSubscribeSSE)
}

func (c *EventsController) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req publishReq
	if err := decodeBody(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing event name")
		return
	}
	n := c.svc.PublishEvent(req.Name, []byte(req.Data))
	writeJSONStatus(w, http.StatusAccepted, publishResp{Queued: n})
}

// handleSubscribeSSE streams events for the requested names until the client
// goes away. Without a client query parameter a fresh id is used and its
// registrations are dropped when the request ends.
func (c *EventsController) handleSubscribeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	names := r.URL.Query()["name"]
	if len(names) == 0 {
		writeError(w, http.StatusBadRequest, "At least one name is required")
		return
	}
	clientID := r.URL.Query().Get("client")
	ephemeral := clientID == ""
	if ephemeral {
		clientID = id.New()
	}
	for _, n := range names {
		if n == "" {
			writeError(w, http.StatusBadRequest, "Empty event name")
			return
		}
		c.svc.SubscribeClient(n, clientID)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Client-Id", clientID)
	w.WriteHeader(http.StatusOK)
	sink := sseSink{w: w, r: r}
	_ = sink.Flush()

	if err := c.svc.Attach(clientID, sink); err != nil {
		c.logger.Debug("sse subscriber ended", log.Str("uuid", clientID), log.Err(err))
	}
	if ephemeral {
		_, _ = c.svc.Quit(r.Context(), &eventrpc.QuitRequest{UUID: clientID})
	}
}
