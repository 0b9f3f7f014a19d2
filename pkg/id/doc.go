// Package id generates the identifiers used by the event hub: the ClientId
// that tags one hub's stream and interest registrations, and the
// SubscriptionId handed to each listener.
//
// Both are RFC 4122 version 4 UUIDs in their canonical 36-character form.
//
//	g := id.NewGenerator()
//	clientID := g.Next()
//
// Tests that need predictable identifiers use NewSequence.
package id
