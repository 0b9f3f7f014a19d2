// Package eventserver implements event.EventService: an in-memory fan-out
// from event names to attached clients.
//
// Each client attaches one sink (a gRPC OnEvent stream or an SSE response)
// keyed by its client id and registers interest per event name. Published
// events are queued on every interested client's bounded buffer; a full
// buffer drops the frame. Keep-alive frames are written on a fixed interval
// so clients can detect silent connection loss.
//
// A newer attachment for the same client id replaces the older one. When a
// sink ends, the client's interest registrations are retained for
// Options.DetachedRetention so a reconnecting client keeps them; a timer
// purges them once the window passes without a new attachment.
package eventserver
