package controllers

import (
	"net/http"

	"github.com/globulario/services-sub005/internal/eventserver"
	"github.com/globulario/services-sub005/internal/resolver"
	"github.com/globulario/services-sub005/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general  *GeneralController
	events   *EventsController
	services *ServicesController
}

// NewControllerRegistry creates a new controller registry. A nil resolver
// leaves the service configuration routes unregistered.
func NewControllerRegistry(svc *eventserver.Service, res *resolver.ConfigResolver, logger log.Logger) *ControllerRegistry {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	r := &ControllerRegistry{
		general: NewGeneralController(svc),
		events:  NewEventsController(svc, logger),
	}
	if res != nil {
		r.services = NewServicesController(res, svc, logger)
	}
	return r
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.events.RegisterRoutes(mux)
	if r.services != nil {
		r.services.RegisterRoutes(mux)
	}
}
