package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientcmd "github.com/globulario/services-sub005/internal/cmd/client"
	serverrun "github.com/globulario/services-sub005/internal/cmd/server"
	cfgpkg "github.com/globulario/services-sub005/internal/config"
	logpkg "github.com/globulario/services-sub005/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// Respect GLOBULAR_LOG_LEVEL for both CLI and server start output
	level := os.Getenv("GLOBULAR_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "globular-events",
		Short: "Globular event bus",
		Long:  "globular-events runs the event service and offers client commands for publishing, subscribing and service configuration.",
	}

	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(clientcmd.NewEventsCommand(nil))
	rootCmd.AddCommand(clientcmd.NewServicesCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServerCommand() *cobra.Command {
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the event service (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(path)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)

			// flags win over file and environment when given
			flags := cmd.Flags()
			if flags.Changed("grpc") {
				cfg.Server.GRPCAddr, _ = flags.GetString("grpc")
			}
			if flags.Changed("http") {
				cfg.Server.HTTPAddr, _ = flags.GetString("http")
			}
			if flags.Changed("data-dir") {
				cfg.DataDir, _ = flags.GetString("data-dir")
			}
			if flags.Changed("document") {
				cfg.Document, _ = flags.GetString("document")
			}
			if flags.Changed("keepalive-ms") {
				cfg.Server.KeepAliveIntervalMs, _ = flags.GetInt("keepalive-ms")
			}
			if flags.Changed("sub-buf") {
				cfg.Server.SubscriberBuffer, _ = flags.GetInt("sub-buf")
			}
			if flags.Changed("log-level") {
				cfg.LogLevel, _ = flags.GetString("log-level")
			}
			if flags.Changed("log-format") {
				cfg.LogFormat, _ = flags.GetString("log-format")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	f := serverStartCmd.Flags()
	f.String("config", os.Getenv("GLOBULAR_CONFIG"), "Config file (JSON or YAML)")
	f.String("grpc", ":10000", "gRPC listen address")
	f.String("http", ":8080", "HTTP listen address (API, SSE and /metrics)")
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("document", "", "Globule configuration document (JSON) to seed the resolver")
	f.Int("keepalive-ms", 15000, "Keep-alive interval on event streams in ms")
	f.Int("sub-buf", 1024, "Per-client event buffer")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	return serverCmd
}

func apiURL() string {
	if v := os.Getenv("GLOBULAR_HTTP_URL"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
