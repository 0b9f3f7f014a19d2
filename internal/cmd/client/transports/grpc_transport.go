package transports

import (
	"context"
	"errors"

	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/globulario/services-sub005/internal/hub"
	"google.golang.org/grpc"
)

// GrpcTransport implements EventsTransport over the event service's gRPC
// surface. Subscriptions go through a hub so they outlive a lost stream.
type GrpcTransport struct {
	addr     string
	dialOpts []grpc.DialOption
	hubOpts  hub.Options
}

// NewGrpcTransport constructs a transport for the event service at addr.
func NewGrpcTransport(addr string, hubOpts hub.Options, dialOpts ...grpc.DialOption) *GrpcTransport {
	return &GrpcTransport{addr: addr, dialOpts: dialOpts, hubOpts: hubOpts}
}

func (t *GrpcTransport) withClient(fn func(cli *eventrpc.GrpcClient) error) error {
	cli, err := eventrpc.DialTarget(t.addr, t.dialOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()
	return fn(cli)
}

// Publish sends an event via gRPC.
func (t *GrpcTransport) Publish(ctx context.Context, name string, data []byte) error {
	return t.withClient(func(cli *eventrpc.GrpcClient) error {
		return cli.Publish(ctx, name, data)
	})
}

// Subscribe registers remote interest in every name and forwards events
// until ctx ends or onEvent fails.
func (t *GrpcTransport) Subscribe(ctx context.Context, names []string, onEvent func(Event) error) error {
	return t.withClient(func(cli *eventrpc.GrpcClient) error {
		h := hub.New(cli, t.hubOpts)
		defer func() { _ = h.Close(context.WithoutCancel(ctx)) }()

		events := make(chan Event, 256)
		done := make(chan struct{})
		defer close(done)
		for _, name := range names {
			n := name
			_, err := h.Subscribe(ctx, n, func(data string) {
				select {
				case events <- Event{Name: n, Data: []byte(data)}:
				case <-done:
				}
			}, hub.Remote())
			if err != nil {
				return err
			}
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				if err := onEvent(ev); err != nil {
					if errors.Is(err, ErrStop) {
						return nil
					}
					return err
				}
			}
		}
	})
}
