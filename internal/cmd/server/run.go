package serverrun

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	cfgpkg "github.com/globulario/services-sub005/internal/config"
	"github.com/globulario/services-sub005/internal/eventserver"
	"github.com/globulario/services-sub005/internal/resolver"
	grpcserver "github.com/globulario/services-sub005/internal/server/grpc"
	httpserver "github.com/globulario/services-sub005/internal/server/http"
	pebblestore "github.com/globulario/services-sub005/internal/storage/pebble"
	logpkg "github.com/globulario/services-sub005/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Options configures Run.
type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.LogLevel/LogFormat.
	Logger logpkg.Logger
	// GRPCListener and HTTPListener, when set, are used instead of binding
	// Config.Server.GRPCAddr and Config.Server.HTTPAddr.
	GRPCListener net.Listener
	HTTPListener net.Listener
}

// Run starts the gRPC and HTTP servers and blocks until ctx is cancelled or
// a server fails.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = processLogger(cfg)
		logpkg.RedirectStdLog(logger)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: filepath.Join(cfg.DataDir, "resolver"),
		Sync:    pebblestore.SyncModeAlways,
		Metrics: newStorageMetrics(reg),
	})
	if err != nil {
		return fmt.Errorf("open configuration store: %w", err)
	}
	defer db.Close()

	doc, err := loadDocument(cfg)
	if err != nil {
		return err
	}
	res, err := resolver.NewConfigResolverFromStore(doc, resolver.NewPebbleStore(db),
		resolver.WithLogger(logger))
	if err != nil {
		return err
	}

	svc := eventserver.New(eventserver.Options{
		KeepAliveInterval: cfg.KeepAliveInterval(),
		SubscriberBuffer:  cfg.Server.SubscriberBuffer,
		Logger:            logger,
		Metrics:           eventserver.NewMetrics(reg),
	})
	gsrv := grpcserver.New(svc, logger)
	hsrv := httpserver.New(svc, httpserver.Options{Resolver: res, Gatherer: reg, Logger: logger})

	logger.Info("starting event service",
		logpkg.Str("grpc", cfg.Server.GRPCAddr),
		logpkg.Str("http", cfg.Server.HTTPAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Duration("keepalive", cfg.KeepAliveInterval()),
		logpkg.Int("sub_buf", cfg.Server.SubscriberBuffer),
	)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		if opts.GRPCListener != nil {
			return gsrv.Serve(gctx, opts.GRPCListener)
		}
		return gsrv.ListenAndServe(gctx, cfg.Server.GRPCAddr)
	})
	if opts.HTTPListener != nil || cfg.Server.HTTPAddr != "" {
		g.Go(func() error {
			if opts.HTTPListener != nil {
				return hsrv.Serve(gctx, opts.HTTPListener)
			}
			return hsrv.ListenAndServe(gctx, cfg.Server.HTTPAddr)
		})
	}

	err = g.Wait()
	gsrv.Close()
	hsrv.Close()
	if err != nil && sctx.Err() == nil {
		logger.Error("server stopped", logpkg.Err(err))
		return err
	}
	logger.Info("event service stopped")
	return nil
}

func processLogger(cfg cfgpkg.Config) logpkg.Logger {
	lc := &logpkg.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}
	l, err := logpkg.ApplyConfig(lc)
	if err == nil {
		return l
	}
	lvl := logpkg.InfoLevel
	if parsed, e := logpkg.ParseLevel(lc.Level); e == nil {
		lvl = parsed
	}
	return logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
}

// loadDocument reads the configured document, or starts from an empty one,
// and makes sure the event service itself is listed in it.
func loadDocument(cfg cfgpkg.Config) (resolver.Document, error) {
	doc := resolver.Document{Domain: "localhost", Protocol: "http", Services: map[string]resolver.ServiceConfig{}}
	if cfg.Document != "" {
		b, err := os.ReadFile(cfg.Document)
		if err != nil {
			return resolver.Document{}, fmt.Errorf("read configuration document: %w", err)
		}
		if doc, err = resolver.ParseDocument(b); err != nil {
			return resolver.Document{}, err
		}
	}
	for _, s := range doc.Services {
		if s.Name == cfg.EventService {
			return doc, nil
		}
	}
	self, err := selfConfig(cfg)
	if err != nil {
		return resolver.Document{}, err
	}
	doc.Services[self.Id] = self
	return doc, nil
}

func selfConfig(cfg cfgpkg.Config) (resolver.ServiceConfig, error) {
	host, portStr, err := net.SplitHostPort(cfg.Server.GRPCAddr)
	if err != nil {
		return resolver.ServiceConfig{}, fmt.Errorf("grpc address %q: %w", cfg.Server.GRPCAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return resolver.ServiceConfig{}, errors.New("grpc address needs a numeric port")
	}
	return resolver.ServiceConfig{
		Id:      cfg.EventService,
		Name:    cfg.EventService,
		Address: host,
		Port:    port,
		State:   "running",
	}, nil
}
