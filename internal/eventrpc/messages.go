package eventrpc

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// message is implemented by every type carried on the wire.
type message interface {
	appendWire(b []byte) []byte
	readWire(b []byte) error
}

// Event is a named payload.
type Event struct {
	Name string
	Data []byte
}

// KeepAlive carries no payload.
type KeepAlive struct{}

type OnEventRequest struct {
	UUID string
}

// OnEventResponse holds exactly one of Evt or Ka.
type OnEventResponse struct {
	Evt *Event
	Ka  *KeepAlive
}

type SubscribeRequest struct {
	Name string
	UUID string
}

type SubscribeResponse struct {
	Result bool
}

type UnSubscribeRequest struct {
	Name string
	UUID string
}

type UnSubscribeResponse struct {
	Result bool
}

type PublishRequest struct {
	Evt *Event
}

type PublishResponse struct {
	Result bool
}

type QuitRequest struct {
	UUID string
}

type QuitResponse struct {
	Result bool
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

// appendMessage always emits the field, even for an empty message, so that a
// set oneof member survives the round trip.
func appendMessage(b []byte, num protowire.Number, m message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.appendWire(nil))
}

// field is one decoded top-level field. raw is set for length-delimited
// fields and v for varints.
type field struct {
	num protowire.Number
	typ protowire.Type
	raw []byte
	v   uint64
}

func decodeFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (f field) str(num protowire.Number) (string, bool) {
	if f.num != num || f.typ != protowire.BytesType {
		return "", false
	}
	return string(f.raw), true
}

func (f field) bytes(num protowire.Number) ([]byte, bool) {
	if f.num != num || f.typ != protowire.BytesType {
		return nil, false
	}
	return append([]byte(nil), f.raw...), true
}

func (f field) boolean(num protowire.Number) (bool, bool) {
	if f.num != num || f.typ != protowire.VarintType {
		return false, false
	}
	return protowire.DecodeBool(f.v), true
}

func (m *Event) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	return appendBytes(b, 2, m.Data)
}

func (m *Event) readWire(b []byte) error {
	*m = Event{}
	return decodeFields(b, func(f field) error {
		if s, ok := f.str(1); ok {
			m.Name = s
		} else if d, ok := f.bytes(2); ok {
			m.Data = d
		}
		return nil
	})
}

func (m *KeepAlive) appendWire(b []byte) []byte { return b }

func (m *KeepAlive) readWire(b []byte) error {
	return decodeFields(b, func(field) error { return nil })
}

func (m *OnEventRequest) appendWire(b []byte) []byte { return appendString(b, 1, m.UUID) }

func (m *OnEventRequest) readWire(b []byte) error {
	*m = OnEventRequest{}
	return decodeFields(b, func(f field) error {
		if s, ok := f.str(1); ok {
			m.UUID = s
		}
		return nil
	})
}

func (m *OnEventResponse) appendWire(b []byte) []byte {
	switch {
	case m.Evt != nil:
		return appendMessage(b, 1, m.Evt)
	case m.Ka != nil:
		return appendMessage(b, 2, m.Ka)
	}
	return b
}

// readWire keeps the last oneof member seen, as protobuf does.
func (m *OnEventResponse) readWire(b []byte) error {
	*m = OnEventResponse{}
	return decodeFields(b, func(f field) error {
		if f.typ != protowire.BytesType {
			return nil
		}
		switch f.num {
		case 1:
			evt := &Event{}
			if err := evt.readWire(f.raw); err != nil {
				return err
			}
			m.Evt, m.Ka = evt, nil
		case 2:
			ka := &KeepAlive{}
			if err := ka.readWire(f.raw); err != nil {
				return err
			}
			m.Evt, m.Ka = nil, ka
		}
		return nil
	})
}

func appendNameUUID(b []byte, name, uuid string) []byte {
	b = appendString(b, 1, name)
	return appendString(b, 2, uuid)
}

func readNameUUID(b []byte, name, uuid *string) error {
	return decodeFields(b, func(f field) error {
		if s, ok := f.str(1); ok {
			*name = s
		} else if s, ok := f.str(2); ok {
			*uuid = s
		}
		return nil
	})
}

func appendResult(b []byte, v bool) []byte { return appendBool(b, 1, v) }

func readResult(b []byte, v *bool) error {
	*v = false
	return decodeFields(b, func(f field) error {
		if r, ok := f.boolean(1); ok {
			*v = r
		}
		return nil
	})
}

func (m *SubscribeRequest) appendWire(b []byte) []byte { return appendNameUUID(b, m.Name, m.UUID) }
func (m *SubscribeRequest) readWire(b []byte) error {
	*m = SubscribeRequest{}
	return readNameUUID(b, &m.Name, &m.UUID)
}

func (m *UnSubscribeRequest) appendWire(b []byte) []byte { return appendNameUUID(b, m.Name, m.UUID) }
func (m *UnSubscribeRequest) readWire(b []byte) error {
	*m = UnSubscribeRequest{}
	return readNameUUID(b, &m.Name, &m.UUID)
}

func (m *PublishRequest) appendWire(b []byte) []byte {
	if m.Evt == nil {
		return b
	}
	return appendMessage(b, 1, m.Evt)
}

func (m *PublishRequest) readWire(b []byte) error {
	*m = PublishRequest{}
	return decodeFields(b, func(f field) error {
		if f.num != 1 || f.typ != protowire.BytesType {
			return nil
		}
		evt := &Event{}
		if err := evt.readWire(f.raw); err != nil {
			return err
		}
		m.Evt = evt
		return nil
	})
}

func (m *QuitRequest) appendWire(b []byte) []byte { return appendString(b, 1, m.UUID) }
func (m *QuitRequest) readWire(b []byte) error {
	*m = QuitRequest{}
	return decodeFields(b, func(f field) error {
		if s, ok := f.str(1); ok {
			m.UUID = s
		}
		return nil
	})
}

func (m *SubscribeResponse) appendWire(b []byte) []byte   { return appendResult(b, m.Result) }
func (m *SubscribeResponse) readWire(b []byte) error      { return readResult(b, &m.Result) }
func (m *UnSubscribeResponse) appendWire(b []byte) []byte { return appendResult(b, m.Result) }
func (m *UnSubscribeResponse) readWire(b []byte) error    { return readResult(b, &m.Result) }
func (m *PublishResponse) appendWire(b []byte) []byte     { return appendResult(b, m.Result) }
func (m *PublishResponse) readWire(b []byte) error        { return readResult(b, &m.Result) }
func (m *QuitResponse) appendWire(b []byte) []byte        { return appendResult(b, m.Result) }
func (m *QuitResponse) readWire(b []byte) error           { return readResult(b, &m.Result) }
