// Package globular is the application-facing entry point: it holds the
// configuration document, resolves service endpoints from it and owns the
// process-wide event hub.
//
// The hub is built on first use. Its stream goes to the first
// event.EventService endpoint in the configuration; without one the hub is
// local-only. The facade listens for service configuration updates on the
// hub and applies them to its resolver, so later Resolve calls see them.
package globular
