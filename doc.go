// Package authcore is the client-side authentication and session lifecycle
// controller for the studio's backend API. It owns the access token, drives
// the multi-step credential flows (first-run bootstrap, login with optional
// two-factor, collaborator invitation, password recovery), and evaluates
// role permissions locally from the role embedded in the session.
//
// The package is designed for interactive clients: a [Client] is built once
// through [Builder.Build] and its methods are safe to call from multiple
// goroutines. Every security decision of consequence is made by the server;
// authcore's counters and checks exist to give the user honest feedback
// before the server answers, never to replace it.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Client], [Builder], [Config],
// and value types (SystemStatus, TwoFactorSetup, MetricsSnapshot, etc.).
// Flow orchestration, the lockout counter, and transient credential storage
// live under internal/ and are never exported. The api, session, storage,
// and permission packages are importable leaf layers.
//
// # What this package must NOT do
//
//   - Hold plaintext passwords, codes, or backup codes beyond the API call
//     that consumes them.
//   - Verify authenticator codes or invitation codes locally.
//   - Treat the client-side lockout window as authoritative; the server's
//     423 answer always wins.
//
// # Failure contract
//
// A dead backend must never wedge a flow: every transition either completes,
// returns a classified error with the machine in a concrete prior state, or
// resets the flow when its stored credential is gone.
package authcore
