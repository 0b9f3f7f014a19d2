package eventrpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/globulario/services-sub005/internal/resolver"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrNoEndpoint is returned by Dial when the resolver knows no endpoint for
// the event service.
var ErrNoEndpoint = errors.New("eventrpc: no endpoint for event service")

// Frame is one item received on the OnEvent stream: either a keep-alive or a
// named event.
type Frame struct {
	KeepAlive bool
	Name      string
	Data      []byte
}

// FrameStream yields frames until the stream ends or its context is
// cancelled.
type FrameStream interface {
	Recv() (Frame, error)
}

// Client is the event-service surface consumed by the hub.
type Client interface {
	OnEvent(ctx context.Context, clientID string) (FrameStream, error)
	Subscribe(ctx context.Context, name, clientID string) error
	UnSubscribe(ctx context.Context, name, clientID string) error
	Publish(ctx context.Context, name string, data []byte) error
	Quit(ctx context.Context, clientID string) error
}

// GrpcClient implements Client over a gRPC connection.
type GrpcClient struct {
	cc     grpc.ClientConnInterface
	conn   *grpc.ClientConn
	target string
}

var _ Client = (*GrpcClient)(nil)

// NewGrpcClient wraps an existing connection. The caller owns cc.
func NewGrpcClient(cc grpc.ClientConnInterface) *GrpcClient {
	return &GrpcClient{cc: cc}
}

// Dial resolves serviceName once and connects to the first endpoint. The
// returned client keeps that endpoint for its lifetime. Connections are
// plaintext unless opts supply transport credentials.
func Dial(r resolver.Resolver, serviceName string, opts ...grpc.DialOption) (*GrpcClient, error) {
	eps, err := r.Resolve(serviceName)
	if err != nil {
		return nil, fmt.Errorf("eventrpc: resolve %s: %w", serviceName, err)
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("%s: %w", serviceName, ErrNoEndpoint)
	}
	return DialTarget(eps[0].Target(), opts...)
}

// DialTarget connects to a host:port directly.
func DialTarget(target string, opts ...grpc.DialOption) (*GrpcClient, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("eventrpc: dial %s: %w", target, err)
	}
	return &GrpcClient{cc: conn, conn: conn, target: target}, nil
}

// Target returns the dialed address, empty for wrapped connections.
func (c *GrpcClient) Target() string { return c.target }

// Close closes the connection if Dial created it.
func (c *GrpcClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// OnEvent opens the server stream for clientID.
func (c *GrpcClient) OnEvent(ctx context.Context, clientID string) (FrameStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodOnEvent, callCodec())
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&OnEventRequest{UUID: clientID}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &frameStream{stream: stream}, nil
}

type frameStream struct {
	stream grpc.ClientStream
}

func (s *frameStream) Recv() (Frame, error) {
	for {
		var m OnEventResponse
		if err := s.stream.RecvMsg(&m); err != nil {
			return Frame{}, err
		}
		switch {
		case m.Ka != nil:
			return Frame{KeepAlive: true}, nil
		case m.Evt != nil:
			return Frame{Name: m.Evt.Name, Data: m.Evt.Data}, nil
		}
		// empty oneof: nothing to deliver
	}
}

// Subscribe registers interest in name for clientID.
func (c *GrpcClient) Subscribe(ctx context.Context, name, clientID string) error {
	var out SubscribeResponse
	if err := c.cc.Invoke(ctx, methodSubscribe, &SubscribeRequest{Name: name, UUID: clientID}, &out, callCodec()); err != nil {
		return err
	}
	if !out.Result {
		return fmt.Errorf("eventrpc: subscribe %q rejected", name)
	}
	return nil
}

// UnSubscribe revokes interest in name for clientID.
func (c *GrpcClient) UnSubscribe(ctx context.Context, name, clientID string) error {
	var out UnSubscribeResponse
	if err := c.cc.Invoke(ctx, methodUnSubscribe, &UnSubscribeRequest{Name: name, UUID: clientID}, &out, callCodec()); err != nil {
		return err
	}
	if !out.Result {
		return fmt.Errorf("eventrpc: unsubscribe %q rejected", name)
	}
	return nil
}

// Publish sends an event to every client subscribed to name.
func (c *GrpcClient) Publish(ctx context.Context, name string, data []byte) error {
	var out PublishResponse
	if err := c.cc.Invoke(ctx, methodPublish, &PublishRequest{Evt: &Event{Name: name, Data: data}}, &out, callCodec()); err != nil {
		return err
	}
	if !out.Result {
		return fmt.Errorf("eventrpc: publish %q rejected", name)
	}
	return nil
}

// Quit tells the service to drop every registration of clientID.
func (c *GrpcClient) Quit(ctx context.Context, clientID string) error {
	var out QuitResponse
	return c.cc.Invoke(ctx, methodQuit, &QuitRequest{UUID: clientID}, &out, callCodec())
}
