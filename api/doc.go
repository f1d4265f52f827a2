// Package api is the boundary adapter between the controller and the
// backend. Every outbound call goes through [Client.Do], which attaches the
// bearer token (or a flow's override token), decodes the uniform response
// envelope, and maps transport and status outcomes onto a closed set of
// category errors.
//
// The adapter also owns two reserved signals: an authorization-expired
// response invalidates the current session exactly once per token, and a
// system-not-initialized response is surfaced distinctly so callers can
// route to the bootstrap flow instead of treating it as a generic failure.
package api
