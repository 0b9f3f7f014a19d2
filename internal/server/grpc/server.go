package grpcserver

import (
	"context"
	"net"

	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/globulario/services-sub005/internal/eventserver"
	"github.com/globulario/services-sub005/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server owns the gRPC server instance hosting event.EventService.
type Server struct {
	svc    *eventserver.Service
	health *health.Server
	grpc   *grpc.Server
	lis    net.Listener
	logger log.Logger
}

// New constructs a gRPC server and registers the event and health services.
func New(svc *eventserver.Service, logger log.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	opts = append([]grpc.ServerOption{eventrpc.ServerCodec()}, opts...)
	s := &Server{
		svc:    svc,
		health: health.NewServer(),
		grpc:   grpc.NewServer(opts...),
		logger: logger.WithComponent("grpcserver"),
	}
	eventrpc.RegisterEventServiceServer(s.grpc, svc)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(eventrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.logger.Info("grpc listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.stop()
		return nil
	case err := <-errCh:
		return err
	}
}

// stop marks the services not serving and closes every stream. OnEvent
// streams never finish on their own, so a graceful stop would hang.
func (s *Server) stop() {
	s.health.Shutdown()
	s.grpc.Stop()
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.stop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
