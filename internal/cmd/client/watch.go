package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/globulario/services-sub005/internal/globular"
	"github.com/globulario/services-sub005/internal/hub"
	"github.com/globulario/services-sub005/internal/resolver"
	"github.com/spf13/cobra"
)

// newServicesWatchCommand constructs `services watch`, which keeps a local
// resolver in sync with pushed configuration updates and prints the
// resulting configurations as JSON lines.
func newServicesWatchCommand() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow service configuration updates over the event bus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			docPath, _ := cmd.Flags().GetString("document")
			addr, _ := cmd.Flags().GetString("addr")
			name, _ := cmd.Flags().GetString("name")

			doc, err := watchDocument(docPath, addr)
			if err != nil {
				return err
			}
			g := globular.New(doc, globular.Options{Hub: hubOptions(clientConfig())})
			defer func() { _ = g.Close(context.WithoutCancel(cmd.Context())) }()

			h, err := g.EventHub(cmd.Context())
			if err != nil {
				return err
			}
			enc := jsonAPI.NewEncoder(cmd.OutOrStdout())
			// registered after the facade's own listener, so the resolver
			// already holds the update when this runs
			_, err = h.Subscribe(cmd.Context(), globular.ConfigUpdateEvent, func(data string) {
				cfg, err := resolver.ParseServiceConfig([]byte(data))
				if err != nil || (name != "" && cfg.Name != name) {
					return
				}
				_ = enc.Encode(map[string]any{"id": cfg.Id, "name": cfg.Name, "configs": g.Configs(cfg.Name)})
			}, hub.Remote())
			if err != nil {
				return err
			}
			<-cmd.Context().Done()
			return nil
		},
	}
	watchCmd.Flags().String("document", "", "Globule configuration document (JSON); defaults to one listing --addr")
	watchCmd.Flags().String("addr", clientConfig().EventAddress, "Event service gRPC address when no document is given")
	watchCmd.Flags().String("name", "", "Only print updates for this service name")
	return watchCmd
}

func watchDocument(path, addr string) (resolver.Document, error) {
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return resolver.Document{}, err
		}
		return resolver.ParseDocument(b)
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return resolver.Document{}, fmt.Errorf("--addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return resolver.Document{}, fmt.Errorf("--addr %q: port must be numeric", addr)
	}
	return resolver.Document{
		Domain:   host,
		Protocol: "http",
		Services: map[string]resolver.ServiceConfig{
			globular.EventServiceName: {
				Id:      globular.EventServiceName,
				Name:    globular.EventServiceName,
				Address: host,
				Port:    port,
			},
		},
	}, nil
}
