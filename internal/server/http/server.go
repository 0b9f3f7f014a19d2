package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/globulario/services-sub005/internal/eventserver"
	"github.com/globulario/services-sub005/internal/resolver"
	"github.com/globulario/services-sub005/internal/server/http/controllers"
	"github.com/globulario/services-sub005/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the HTTP gateway.
type Options struct {
	// Resolver enables the /v1/services routes.
	Resolver *resolver.ConfigResolver
	// Gatherer enables /metrics.
	Gatherer prometheus.Gatherer
	Logger   log.Logger
}

// Server is the HTTP gateway in front of an event service.
type Server struct {
	srv    *http.Server
	lis    net.Listener
	logger log.Logger
}

// New builds the gateway routes over svc.
func New(svc *eventserver.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	mux := http.NewServeMux()
	controllers.NewControllerRegistry(svc, opts.Resolver, opts.Logger).RegisterAllRoutes(mux)
	if opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return &Server{
		srv:    &http.Server{Handler: cors(mux), ReadHeaderTimeout: 10 * time.Second},
		logger: opts.Logger.WithComponent("httpserver"),
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done. Open SSE streams end with their
// request contexts when the server shuts down.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	s.logger.Info("http listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
