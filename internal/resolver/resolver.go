package resolver

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/globulario/services-sub005/pkg/log"
)

// ErrNotFound is returned when no service entry matches a lookup.
var ErrNotFound = errors.New("resolver: service not found")

// EndpointDescriptor is one reachable endpoint of a service.
type EndpointDescriptor struct {
	Address  string
	Port     int
	Protocol string
}

// Target returns host:port suitable for gRPC dialing.
func (e EndpointDescriptor) Target() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// Resolver returns zero or more endpoints for a logical service name.
type Resolver interface {
	Resolve(serviceName string) ([]EndpointDescriptor, error)
}

// Option configures a ConfigResolver.
type Option func(*ConfigResolver)

// WithStore persists every applied service entry through s.
func WithStore(s Store) Option { return func(r *ConfigResolver) { r.store = s } }

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option { return func(r *ConfigResolver) { r.logger = l } }

// ConfigResolver resolves endpoints from a configuration Document that may be
// updated concurrently.
type ConfigResolver struct {
	mu     sync.RWMutex
	doc    Document
	store  Store
	logger log.Logger
}

// NewConfigResolver builds a resolver over doc.
func NewConfigResolver(doc Document, opts ...Option) *ConfigResolver {
	r := &ConfigResolver{doc: doc.Clone()}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = log.NewNopLogger()
	}
	r.logger = r.logger.WithComponent("resolver")
	return r
}

// NewConfigResolverFromStore builds a resolver whose services are base's
// services overlaid with every entry previously saved in store.
func NewConfigResolverFromStore(base Document, store Store, opts ...Option) (*ConfigResolver, error) {
	saved, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("resolver: load snapshot: %w", err)
	}
	doc := base.Clone()
	for _, s := range saved {
		doc.Services[s.Id] = s
	}
	r := NewConfigResolver(doc, append(opts, WithStore(store))...)
	r.logger.Debug("seeded from snapshot", log.Int("services", len(saved)))
	return r, nil
}

// Resolve returns the endpoints of every service named serviceName, ordered
// by service id. An unknown name yields an empty result, not an error.
func (r *ConfigResolver) Resolve(serviceName string) ([]EndpointDescriptor, error) {
	configs := r.Configs(serviceName)
	r.mu.RLock()
	protocol, domain := r.doc.Protocol, r.doc.Domain
	r.mu.RUnlock()
	out := make([]EndpointDescriptor, 0, len(configs))
	for _, c := range configs {
		host := hostOf(c.Address)
		if host == "" {
			host = c.Domain
		}
		if host == "" {
			host = domain
		}
		out = append(out, EndpointDescriptor{Address: host, Port: c.Port, Protocol: protocol})
	}
	return out, nil
}

// Configs returns every service entry named name, ordered by id.
func (r *ConfigResolver) Configs(name string) []ServiceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ServiceConfig
	for _, s := range r.doc.Services {
		if s.Name == name {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// ServiceByID returns the entry with the given id if it is named name.
func (r *ConfigResolver) ServiceByID(name, id string) (ServiceConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.doc.Services[id]
	if !ok || s.Name != name {
		return ServiceConfig{}, fmt.Errorf("%s/%s: %w", name, id, ErrNotFound)
	}
	return s, nil
}

// Document returns a copy of the current configuration.
func (r *ConfigResolver) Document() Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.Clone()
}

// Apply replaces one service entry. The in-memory update is kept even if
// persisting it fails.
func (r *ConfigResolver) Apply(s ServiceConfig) error {
	if s.Id == "" {
		return errors.New("resolver: service config without Id")
	}
	r.mu.Lock()
	if r.doc.Services == nil {
		r.doc.Services = map[string]ServiceConfig{}
	}
	r.doc.Services[s.Id] = s
	r.mu.Unlock()
	r.logger.Info("service configuration applied", log.Str("id", s.Id), log.Str("name", s.Name))
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(s); err != nil {
		r.logger.Warn("persist service configuration failed", log.Str("id", s.Id), log.Err(err))
		return fmt.Errorf("resolver: persist %s: %w", s.Id, err)
	}
	return nil
}

// Replace swaps the whole document.
func (r *ConfigResolver) Replace(doc Document) error {
	doc = doc.Clone()
	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()
	if r.store == nil {
		return nil
	}
	all := make([]ServiceConfig, 0, len(doc.Services))
	for _, s := range doc.Services {
		all = append(all, s)
	}
	if err := r.store.ReplaceAll(all); err != nil {
		r.logger.Warn("persist configuration snapshot failed", log.Err(err))
		return fmt.Errorf("resolver: persist snapshot: %w", err)
	}
	return nil
}

func hostOf(addr string) string {
	if addr == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	if i := strings.LastIndexByte(addr, ':'); i >= 0 && !strings.Contains(addr[:i], ":") {
		return addr[:i]
	}
	return addr
}
