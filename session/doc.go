// Package session owns the current access token and principal snapshot.
//
// The process-wide Store is the single source of truth: it persists the
// access token in durable storage so a restart resumes the session, and it
// is the only writer of that entry. Clear removes the durable entry
// synchronously before broadcasting the session-ended signal, so no
// follow-up request can be issued with a stale token. Storage read failures
// are treated as "no session" — the store never reports Authenticated with
// an empty token.
package session
