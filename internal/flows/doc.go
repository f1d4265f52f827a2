// Package flows implements the authentication state machines: login,
// bootstrap, invitation acceptance, password reset, and two-factor setup.
//
// Each machine holds an explicit state enum and a dependency set injected by
// the root client. Transitions run to completion: a busy latch rejects
// re-entrant submits while that machine has an API call outstanding. Flows
// are resumable across a restart only through the durable transient
// credential — any transition that depends on one re-reads it from storage
// at transition time, and its absence hard-resets the machine to its initial
// state.
//
// # What this package must NOT do
//
//   - Verify passwords, TOTP codes, or backup codes locally.
//   - Promote a transient credential to an access token.
//   - Retry a failed call automatically.
package flows
