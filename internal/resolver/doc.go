// Package resolver maps logical service names to reachable endpoints using a
// live, push-updated service configuration document.
//
// The document is the Globular application-server configuration: a set of
// service entries keyed by id, each carrying a logical name, an address and
// a port. ConfigResolver answers Resolve by matching names and can persist
// every applied entry through a Store so a restarted process starts from the
// last known configuration.
package resolver
