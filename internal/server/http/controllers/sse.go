package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/globulario/services-sub005/internal/eventrpc"
)

// sseSink implements eventserver.Sink for Server-Sent Events.
//
// Events are written as "event: <name>" plus a JSON data line; keep-alives
// become SSE comments so EventSource clients ignore them.
type sseSink struct {
	w http.ResponseWriter
	r *http.Request
}

// Send writes one frame.
func (s sseSink) Send(m *eventrpc.OnEventResponse) error {
	if m.Ka != nil {
		_, err := s.w.Write([]byte(": keepalive\n\n"))
		return err
	}
	if m.Evt == nil {
		return nil
	}
	b, err := jsonAPI.Marshal(eventJSON{Name: m.Evt.Name, Data: string(m.Evt.Data)})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", m.Evt.Name, b)
	return err
}

// Context returns the request context for cancellation.
func (s sseSink) Context() context.Context {
	return s.r.Context()
}

// Flush flushes the HTTP response writer if it supports flushing.
func (s sseSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
