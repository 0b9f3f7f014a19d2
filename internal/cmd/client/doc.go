// Package client provides the `globular-events` client commands.
//
// The commands talk to the event service over gRPC (through an event hub,
// so subscriptions survive heartbeat loss) or over the HTTP gateway.
//
// # Address configuration
//
// The gRPC address comes from --addr or GLOBULAR_EVENT_ADDR (default
// 127.0.0.1:10000). The HTTP base URL comes from --http-url or
// GLOBULAR_HTTP_URL (default http://127.0.0.1:8080). The hub behind the gRPC
// transport and services watch honours GLOBULAR_HEARTBEAT_TIMEOUT_MS,
// GLOBULAR_SWEEP_INTERVAL_MS and GLOBULAR_REGISTER_ATTEMPTS.
//
// Usage
//
//	globular-events events publish --name user.created --data '{"id":"42"}'
//
//	# Print matching events as JSON lines; stop after 10
//	globular-events events subscribe --name user.created --name user.deleted \
//	    --filter 'json.id == "42"' --limit 10
//
//	# Same over Server-Sent Events
//	globular-events events subscribe --name user.created --transport http
//
//	globular-events services list --name file.FileService
//	globular-events services apply --file file-service.json
//
//	# Keep a resolver in sync over the event bus and print updates
//	globular-events services watch --name file.FileService
//
// Notes
//
//   - --filter is a CEL expression evaluated client-side with the variables
//     name (string), text (string), json (parsed payload or null),
//     size (int) and now_ms (int).
//   - services list/resolve/apply use the HTTP gateway; services watch
//     subscribes over gRPC.
package client
