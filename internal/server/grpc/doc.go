// Package grpcserver hosts the gRPC server for the event service, registering
// event.EventService and the standard grpc.health.v1 service.
//
// Example:
//
//	svc := eventserver.New(eventserver.Options{})
//	s := grpcserver.New(svc, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":10000")
package grpcserver
