// Package stores holds the transient-credential accessor.
//
// A transient credential is the short-lived token that scopes one in-flight
// multi-step flow (bootstrap, invitation, password reset, two-factor setup).
// It lives in the non-durable KV, is never promoted to an access token, and
// is discarded on flow completion or abandonment. Flows re-read it from
// storage at every transition that depends on it; absence means the flow
// expired and must reset to its initial state.
package stores
