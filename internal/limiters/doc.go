// Package limiters holds the client-local lockout guard.
//
// The guard is pure policy over an injected clock: no storage, no network.
// It is a UX affordance that short-circuits hopeless submits — the server
// runs the authoritative lockout, and a server-reported lockout always
// overrides whatever the local counter believes.
package limiters
