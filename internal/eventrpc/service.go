package eventrpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "event.EventService"

const (
	methodOnEvent     = "/" + ServiceName + "/OnEvent"
	methodSubscribe   = "/" + ServiceName + "/Subscribe"
	methodUnSubscribe = "/" + ServiceName + "/UnSubscribe"
	methodPublish     = "/" + ServiceName + "/Publish"
	methodQuit        = "/" + ServiceName + "/Quit"
)

// OnEventStream is the server side of the OnEvent stream.
type OnEventStream interface {
	Send(*OnEventResponse) error
	grpc.ServerStream
}

// EventServiceServer is implemented by event-distribution services.
type EventServiceServer interface {
	OnEvent(*OnEventRequest, OnEventStream) error
	Subscribe(context.Context, *SubscribeRequest) (*SubscribeResponse, error)
	UnSubscribe(context.Context, *UnSubscribeRequest) (*UnSubscribeResponse, error)
	Publish(context.Context, *PublishRequest) (*PublishResponse, error)
	Quit(context.Context, *QuitRequest) (*QuitResponse, error)
}

// RegisterEventServiceServer registers srv on s. The grpc.Server must be
// built with ServerCodec().
func RegisterEventServiceServer(s grpc.ServiceRegistrar, srv EventServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes event.EventService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Subscribe", Handler: unary(methodSubscribe, EventServiceServer.Subscribe)},
		{MethodName: "UnSubscribe", Handler: unary(methodUnSubscribe, EventServiceServer.UnSubscribe)},
		{MethodName: "Publish", Handler: unary(methodPublish, EventServiceServer.Publish)},
		{MethodName: "Quit", Handler: unary(methodQuit, EventServiceServer.Quit)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "OnEvent", Handler: onEventHandler, ServerStreams: true},
	},
	Metadata: "event.proto",
}

// unary adapts a typed service method to grpc.MethodHandler.
func unary[Req, Resp any, PReq interface {
	*Req
	message
}](fullMethod string, call func(EventServiceServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EventServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EventServiceServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func onEventHandler(srv any, stream grpc.ServerStream) error {
	in := new(OnEventRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(EventServiceServer).OnEvent(in, &onEventServerStream{stream})
}

type onEventServerStream struct {
	grpc.ServerStream
}

func (s *onEventServerStream) Send(m *OnEventResponse) error {
	return s.ServerStream.SendMsg(m)
}
