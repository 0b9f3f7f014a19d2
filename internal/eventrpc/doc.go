// Package eventrpc is the wire surface of event.EventService: request and
// response messages in protobuf wire format, a gRPC codec for them, the
// service descriptor used to register a server, and a client.
//
// Messages are encoded with protowire directly so the package needs no
// generated code. Field numbers match event.proto:
//
//	Event            { string name = 1; bytes data = 2; }
//	OnEventRequest   { string uuid = 1; }
//	OnEventResponse  { oneof data { Event evt = 1; KeepAlive ka = 2; } }
//	SubscribeRequest { string name = 1; string uuid = 2; }
//	PublishRequest   { Event evt = 1; }
//	QuitRequest      { string uuid = 1; }
//	*Response        { bool result = 1; }
package eventrpc
