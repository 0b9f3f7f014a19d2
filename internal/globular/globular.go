package globular

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/globulario/services-sub005/internal/hub"
	"github.com/globulario/services-sub005/internal/resolver"
	"github.com/globulario/services-sub005/pkg/log"
	"google.golang.org/grpc"
)

// ConfigUpdateEvent carries a JSON service configuration whenever a service
// of the globule changes.
const ConfigUpdateEvent = "update_globular_service_configuration_evt"

// EventServiceName is the logical name dialed for the hub's transport.
const EventServiceName = eventrpc.ServiceName

// ErrClosed is returned by EventHub after Close.
var ErrClosed = errors.New("globular: closed")

// Dialer connects to serviceName through r.
type Dialer func(r resolver.Resolver, serviceName string) (eventrpc.Client, error)

// Options configures a Globular.
type Options struct {
	// Hub is passed to hub.New. A nil Hub.Logger inherits Logger.
	Hub hub.Options
	// Store persists applied service configurations. Optional.
	Store resolver.Store
	// DialOptions are used by the default Dialer.
	DialOptions []grpc.DialOption
	// Dialer overrides how the event service is reached.
	Dialer Dialer
	Logger log.Logger
}

// Globular is a configured globule.
type Globular struct {
	opts     Options
	resolver *resolver.ConfigResolver
	logger   log.Logger

	mu     sync.Mutex
	hub    *hub.Hub
	client eventrpc.Client
	closed bool
}

// New returns a facade over doc.
func New(doc resolver.Document, opts Options) *Globular {
	opts = opts.withDefaults()
	ropts := []resolver.Option{resolver.WithLogger(opts.Logger)}
	if opts.Store != nil {
		ropts = append(ropts, resolver.WithStore(opts.Store))
	}
	return newGlobular(resolver.NewConfigResolver(doc, ropts...), opts)
}

// NewFromStore is New with base overlaid by the configurations saved in
// store. Applied updates are written back to store.
func NewFromStore(base resolver.Document, store resolver.Store, opts Options) (*Globular, error) {
	opts = opts.withDefaults()
	r, err := resolver.NewConfigResolverFromStore(base, store, resolver.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	return newGlobular(r, opts), nil
}

func newGlobular(r *resolver.ConfigResolver, opts Options) *Globular {
	return &Globular{
		opts:     opts,
		resolver: r,
		logger:   opts.Logger.WithComponent("globular"),
	}
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	if o.Hub.Logger == nil {
		o.Hub.Logger = o.Logger
	}
	if o.Dialer == nil {
		dialOpts := o.DialOptions
		o.Dialer = func(r resolver.Resolver, name string) (eventrpc.Client, error) {
			return eventrpc.Dial(r, name, dialOpts...)
		}
	}
	return o
}

// Resolver returns the endpoint resolver backed by the configuration.
func (g *Globular) Resolver() *resolver.ConfigResolver { return g.resolver }

// Configs returns every service entry named name.
func (g *Globular) Configs(name string) []resolver.ServiceConfig {
	return g.resolver.Configs(name)
}

// ServiceByID returns the entry with id if it is named name.
func (g *Globular) ServiceByID(name, id string) (resolver.ServiceConfig, error) {
	return g.resolver.ServiceByID(name, id)
}

// Domain returns the configured domain.
func (g *Globular) Domain() string { return g.resolver.Document().Domain }

// Address returns the globule's host name: Name.Domain, unless the domain
// already starts with the name or the name is empty, in which case the
// domain alone.
func (g *Globular) Address() string {
	doc := g.resolver.Document()
	return address(doc.Name, doc.Domain)
}

func address(name, domain string) string {
	if name == "" || strings.HasPrefix(domain, name) {
		return domain
	}
	if domain == "" {
		return name
	}
	return name + "." + domain
}

// EventHub returns the hub, building it on first call.
func (g *Globular) EventHub(ctx context.Context) (*hub.Hub, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	if g.hub != nil {
		return g.hub, nil
	}

	var client eventrpc.Client
	c, err := g.opts.Dialer(g.resolver, EventServiceName)
	switch {
	case err == nil:
		client = c
	case errors.Is(err, eventrpc.ErrNoEndpoint):
		g.logger.Warn("no event service endpoint, hub is local-only")
	default:
		return nil, fmt.Errorf("globular: event service: %w", err)
	}

	h := hub.New(client, g.opts.Hub)
	if client != nil {
		_, err := h.Subscribe(ctx, ConfigUpdateEvent, g.applyConfig, hub.Remote(), hub.WithRef(g))
		if err != nil {
			g.logger.Warn("configuration updates unavailable", log.Err(err))
		}
	}
	g.hub, g.client = h, client
	return h, nil
}

func (g *Globular) applyConfig(data string) {
	cfg, err := resolver.ParseServiceConfig([]byte(data))
	if err != nil {
		g.logger.Warn("bad service configuration event", log.Err(err))
		return
	}
	if err := g.resolver.Apply(cfg); err != nil {
		g.logger.Warn("apply service configuration", log.Str("id", cfg.Id), log.Err(err))
	}
}

// ResetEventHub closes the current hub, if any. The next EventHub call
// builds a new one and dials again.
func (g *Globular) ResetEventHub(ctx context.Context) error {
	g.mu.Lock()
	h, client := g.hub, g.client
	g.hub, g.client = nil, nil
	g.mu.Unlock()
	return shutdown(ctx, h, client)
}

// Close closes the hub and its connection.
func (g *Globular) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	h, client := g.hub, g.client
	g.hub, g.client = nil, nil
	g.mu.Unlock()
	return shutdown(ctx, h, client)
}

func shutdown(ctx context.Context, h *hub.Hub, client eventrpc.Client) error {
	var errs []error
	if h != nil {
		errs = append(errs, h.Close(ctx))
	}
	if c, ok := client.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
