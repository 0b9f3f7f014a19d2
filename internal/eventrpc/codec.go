package eventrpc

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// codec marshals the messages of this package and falls back to the
// standard protobuf runtime for generated messages, so one server can host
// event.EventService next to services such as grpc.health.v1. It is named
// "proto" so peers see the standard application/grpc+proto content type.
type codec struct{}

var _ encoding.Codec = codec{}

func (codec) Name() string { return "proto" }

func (codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case message:
		return m.appendWire(nil), nil
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("eventrpc: cannot marshal %T", v)
}

func (codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case message:
		return m.readWire(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("eventrpc: cannot unmarshal into %T", v)
}

// ServerCodec is the server option that makes a grpc.Server use this
// package's codec.
func ServerCodec() grpc.ServerOption {
	return grpc.ForceServerCodec(codec{})
}

func callCodec() grpc.CallOption {
	return grpc.ForceCodec(codec{})
}
