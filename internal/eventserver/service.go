package eventserver

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/globulario/services-sub005/pkg/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Options configures a Service.
type Options struct {
	// KeepAliveInterval is the period of keep-alive frames. Defaults to 15s.
	KeepAliveInterval time.Duration
	// SubscriberBuffer bounds the per-client frame queue. Defaults to 1024.
	SubscriberBuffer int
	// DetachedRetention is how long a detached client's registrations are
	// kept. Defaults to one minute.
	DetachedRetention time.Duration
	Clock             clock.Clock
	Logger            log.Logger
	Metrics           *Metrics
}

// Sink receives frames for one attached client.
type Sink interface {
	Send(*eventrpc.OnEventResponse) error
	Context() context.Context
	Flush() error
}

// Service is the in-memory event-distribution service.
type Service struct {
	opts    Options
	clock   clock.Clock
	logger  log.Logger
	metrics *Metrics

	mu       sync.Mutex
	channels map[string]map[string]struct{} // name -> client ids
	attached map[string]*attachment          // client id -> current attachment
	detached map[string]*clock.Timer         // client id -> retention timer
}

var _ eventrpc.EventServiceServer = (*Service)(nil)

type attachment struct {
	clientID string
	queue    chan *eventrpc.OnEventResponse
	done     chan struct{}
	once     sync.Once
}

func (a *attachment) close() { a.once.Do(func() { close(a.done) }) }

var keepAliveFrame = &eventrpc.OnEventResponse{Ka: &eventrpc.KeepAlive{}}

// New returns a Service with defaults applied.
func New(opts Options) *Service {
	if opts.KeepAliveInterval <= 0 {
		opts.KeepAliveInterval = 15 * time.Second
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 1024
	}
	if opts.DetachedRetention <= 0 {
		opts.DetachedRetention = time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Service{
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger.WithComponent("eventserver"),
		metrics:  opts.Metrics,
		channels: make(map[string]map[string]struct{}),
		attached: make(map[string]*attachment),
		detached: make(map[string]*clock.Timer),
	}
}

// Attach delivers frames for clientID to sink until the sink's context ends,
// the client quits or a newer attachment replaces this one.
func (s *Service) Attach(clientID string, sink Sink) error {
	if clientID == "" {
		return status.Error(codes.InvalidArgument, "missing client uuid")
	}
	a := &attachment{
		clientID: clientID,
		queue:    make(chan *eventrpc.OnEventResponse, s.opts.SubscriberBuffer),
		done:     make(chan struct{}),
	}
	ticker := s.clock.Ticker(s.opts.KeepAliveInterval)
	defer ticker.Stop()

	s.mu.Lock()
	if old := s.attached[clientID]; old != nil {
		old.close()
		s.logger.Info("attachment replaced", log.Str("uuid", clientID))
	}
	s.attached[clientID] = a
	if t := s.detached[clientID]; t != nil {
		t.Stop()
		delete(s.detached, clientID)
	}
	s.metrics.streams.Set(float64(len(s.attached)))
	s.mu.Unlock()
	s.logger.Info("client attached", log.Str("uuid", clientID))
	defer s.detach(a)

	ctx := sink.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.done:
			return nil
		case <-ticker.C:
			if err := send(sink, keepAliveFrame); err != nil {
				s.logger.Warn("keep-alive send failed", log.Str("uuid", clientID), log.Err(err))
				return err
			}
			s.metrics.sent.WithLabelValues("keepalive").Inc()
		case m := <-a.queue:
			if err := send(sink, m); err != nil {
				s.logger.Warn("event send failed", log.Str("uuid", clientID), log.Str("name", m.Evt.Name), log.Err(err))
				return err
			}
			s.metrics.sent.WithLabelValues("event").Inc()
		}
	}
}

func send(sink Sink, m *eventrpc.OnEventResponse) error {
	if err := sink.Send(m); err != nil {
		return err
	}
	return sink.Flush()
}

func (s *Service) detach(a *attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached[a.clientID] != a {
		return
	}
	delete(s.attached, a.clientID)
	id := a.clientID
	var t *clock.Timer
	t = s.clock.AfterFunc(s.opts.DetachedRetention, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.detached[id] != t {
			return
		}
		s.purgeLocked(id)
		s.logger.Info("purged detached client", log.Str("uuid", id))
	})
	s.detached[id] = t
	s.metrics.streams.Set(float64(len(s.attached)))
	s.logger.Info("client detached", log.Str("uuid", id))
}

// purgeLocked removes every registration of clientID. Caller holds s.mu.
func (s *Service) purgeLocked(clientID string) {
	for name, ids := range s.channels {
		delete(ids, clientID)
		if len(ids) == 0 {
			delete(s.channels, name)
		}
	}
	if t := s.detached[clientID]; t != nil {
		t.Stop()
		delete(s.detached, clientID)
	}
}

// OnEvent attaches the gRPC stream for req.UUID.
func (s *Service) OnEvent(req *eventrpc.OnEventRequest, stream eventrpc.OnEventStream) error {
	return s.Attach(req.UUID, grpcSink{stream: stream})
}

type grpcSink struct {
	stream eventrpc.OnEventStream
}

func (g grpcSink) Send(m *eventrpc.OnEventResponse) error { return g.stream.Send(m) }
func (g grpcSink) Context() context.Context                { return g.stream.Context() }
func (g grpcSink) Flush() error                            { return nil }

// Subscribe registers interest in req.Name for req.UUID. Repeated calls are
// idempotent.
func (s *Service) Subscribe(_ context.Context, req *eventrpc.SubscribeRequest) (*eventrpc.SubscribeResponse, error) {
	if err := validate(req.Name, req.UUID); err != nil {
		return nil, err
	}
	s.SubscribeClient(req.Name, req.UUID)
	return &eventrpc.SubscribeResponse{Result: true}, nil
}

// SubscribeClient registers interest without going through gRPC.
func (s *Service) SubscribeClient(name, clientID string) {
	s.mu.Lock()
	ids := s.channels[name]
	if ids == nil {
		ids = make(map[string]struct{})
		s.channels[name] = ids
	}
	ids[clientID] = struct{}{}
	n := len(ids)
	s.mu.Unlock()
	s.logger.Debug("subscribed", log.Str("name", name), log.Str("uuid", clientID), log.Int("subscribers", n))
}

// UnSubscribe revokes interest in req.Name for req.UUID.
func (s *Service) UnSubscribe(_ context.Context, req *eventrpc.UnSubscribeRequest) (*eventrpc.UnSubscribeResponse, error) {
	if err := validate(req.Name, req.UUID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if ids := s.channels[req.Name]; ids != nil {
		delete(ids, req.UUID)
		if len(ids) == 0 {
			delete(s.channels, req.Name)
		}
	}
	s.mu.Unlock()
	s.logger.Debug("unsubscribed", log.Str("name", req.Name), log.Str("uuid", req.UUID))
	return &eventrpc.UnSubscribeResponse{Result: true}, nil
}

// Publish queues req.Evt for every client subscribed to its name.
func (s *Service) Publish(_ context.Context, req *eventrpc.PublishRequest) (*eventrpc.PublishResponse, error) {
	if req.Evt == nil || req.Evt.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "missing event name")
	}
	s.PublishEvent(req.Evt.Name, req.Evt.Data)
	return &eventrpc.PublishResponse{Result: true}, nil
}

// PublishEvent fans data out to subscribers of name and returns the number
// of clients it was queued for.
func (s *Service) PublishEvent(name string, data []byte) int {
	frame := &eventrpc.OnEventResponse{Evt: &eventrpc.Event{Name: name, Data: data}}
	s.metrics.published.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	queued := 0
	for id := range s.channels[name] {
		a := s.attached[id]
		if a == nil {
			s.metrics.dropped.WithLabelValues("detached").Inc()
			continue
		}
		select {
		case a.queue <- frame:
			queued++
		default:
			s.metrics.dropped.WithLabelValues("buffer_full").Inc()
			s.logger.Warn("subscriber buffer full; frame dropped", log.Str("uuid", id), log.Str("name", name))
		}
	}
	return queued
}

// Quit drops the client's attachment and every registration it holds.
func (s *Service) Quit(_ context.Context, req *eventrpc.QuitRequest) (*eventrpc.QuitResponse, error) {
	if req.UUID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing client uuid")
	}
	s.mu.Lock()
	s.purgeLocked(req.UUID)
	if a := s.attached[req.UUID]; a != nil {
		a.close()
		delete(s.attached, req.UUID)
		s.metrics.streams.Set(float64(len(s.attached)))
	}
	s.mu.Unlock()
	s.logger.Info("client quit", log.Str("uuid", req.UUID))
	return &eventrpc.QuitResponse{Result: true}, nil
}

// Attached reports whether clientID has a live attachment.
func (s *Service) Attached(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached[clientID] != nil
}

// Subscribers returns the number of clients registered for name.
func (s *Service) Subscribers(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels[name])
}

func validate(name, clientID string) error {
	if clientID == "" {
		return status.Error(codes.InvalidArgument, "missing client uuid")
	}
	if name == "" {
		return status.Error(codes.InvalidArgument, "missing event name")
	}
	return nil
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Clients  int            `json:"clients"`
	Detached int            `json:"detached"`
	Channels map[string]int `json:"channels"`
}

// Stats returns the number of attached and detached clients and the
// subscriber count of every event name.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Clients:  len(s.attached),
		Detached: len(s.detached),
		Channels: make(map[string]int, len(s.channels)),
	}
	for name, ids := range s.channels {
		st.Channels[name] = len(ids)
	}
	return st
}
