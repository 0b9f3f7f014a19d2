package client

import (
	"fmt"
	"time"

	transports "github.com/globulario/services-sub005/internal/cmd/client/transports"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TransportFunc builds the transport for one command invocation.
type TransportFunc func(cmd *cobra.Command) (transports.EventsTransport, error)

// DefaultTransport picks gRPC or HTTP from the --transport flag.
func DefaultTransport(cmd *cobra.Command) (transports.EventsTransport, error) {
	kind, _ := cmd.Flags().GetString("transport")
	switch kind {
	case "", "grpc":
		addr, _ := cmd.Flags().GetString("addr")
		opts := hubOptions(clientConfig())
		if cmd.Flags().Changed("heartbeat-ms") {
			hbMs, _ := cmd.Flags().GetInt("heartbeat-ms")
			opts.HeartbeatTimeout = time.Duration(hbMs) * time.Millisecond
		}
		return transports.NewGrpcTransport(addr, opts,
			grpc.WithTransportCredentials(insecure.NewCredentials())), nil
	case "http":
		u, _ := cmd.Flags().GetString("http-url")
		return transports.NewHTTPTransport(u, nil), nil
	default:
		return nil, fmt.Errorf("invalid --transport %q; use grpc|http", kind)
	}
}

// NewEventsCommand constructs the `events` command group.
func NewEventsCommand(getTransport TransportFunc) *cobra.Command {
	if getTransport == nil {
		getTransport = DefaultTransport
	}
	eventsCmd := &cobra.Command{Use: "events", Short: "Event bus operations"}
	eventsCmd.PersistentFlags().String("transport", "grpc", "Transport: grpc|http")
	eventsCmd.PersistentFlags().String("addr", clientConfig().EventAddress, "Event service gRPC address")
	eventsCmd.PersistentFlags().String("http-url", httpURLFromEnv(), "HTTP gateway base URL")
	eventsCmd.AddCommand(
		newEventsPublishCommand(getTransport),
		newEventsSubscribeCommand(getTransport),
	)
	return eventsCmd
}

// newEventsPublishCommand constructs the `events publish` subcommand.
func newEventsPublishCommand(getTransport TransportFunc) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an event to every subscriber of a name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			data, _ := cmd.Flags().GetString("data")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			t, err := getTransport(cmd)
			if err != nil {
				return err
			}
			if err := t.Publish(cmd.Context(), name, []byte(data)); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	publishCmd.Flags().String("name", "", "Event name")
	publishCmd.Flags().String("data", "", "Payload data")
	return publishCmd
}

// newEventsSubscribeCommand constructs the `events subscribe` subcommand.
// Events are printed as JSON lines.
func newEventsSubscribeCommand(getTransport TransportFunc) *cobra.Command {
	subscribeCmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to one or more event names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, _ := cmd.Flags().GetStringArray("name")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			if len(names) == 0 {
				return fmt.Errorf("at least one --name is required")
			}
			f, err := newCELFilter(filter)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			t, err := getTransport(cmd)
			if err != nil {
				return err
			}
			enc := jsonAPI.NewEncoder(cmd.OutOrStdout())
			seen := 0
			return t.Subscribe(cmd.Context(), names, func(ev transports.Event) error {
				if !f.Eval(ev.Name, ev.Data) {
					return nil
				}
				if err := enc.Encode(decodedEvent(ev.Name, ev.Data)); err != nil {
					return err
				}
				seen++
				if limit > 0 && seen >= limit {
					return transports.ErrStop
				}
				return nil
			})
		},
	}
	subscribeCmd.Flags().StringArray("name", nil, "Event name (repeat)")
	subscribeCmd.Flags().String("filter", "", "CEL filter over name, text, size, json, now_ms")
	subscribeCmd.Flags().Int("limit", 0, "Stop after N events (0 = infinite)")
	subscribeCmd.Flags().Int("heartbeat-ms", clientConfig().Hub.HeartbeatTimeoutMs, "Reconnect after this long without a keep-alive (grpc)")
	return subscribeCmd
}
