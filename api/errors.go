package api

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized indicates the server rejected the session bearer token.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrSystemNotInitialized indicates the backend has no provisioned admin
	// and callers must route to the bootstrap flow.
	ErrSystemNotInitialized = errors.New("api: system not initialized")
	// ErrRateLimited indicates the server throttled the request. Advisory.
	ErrRateLimited = errors.New("api: rate limited")
	// ErrAccountLocked indicates a server-reported account lockout. The
	// server is authoritative; local lockout state must defer to it.
	ErrAccountLocked = errors.New("api: account locked")
	// ErrNetworkUnreachable indicates the request never produced an HTTP
	// response. Never retried automatically.
	ErrNetworkUnreachable = errors.New("api: network unreachable")
	// ErrServer indicates an opaque 5xx failure.
	ErrServer = errors.New("api: server error")
	// ErrDecode indicates the response body did not match the envelope.
	ErrDecode = errors.New("api: undecodable response")
)

// Error is the structured failure returned by [Client.Do]. Unwrap yields the
// category sentinel when the response matched a reserved signal, so callers
// classify with errors.Is and read the server's code and message for display.
type Error struct {
	Status      int
	Code        string
	Message     string
	RetryAfter  time.Duration
	LockedUntil time.Time

	category error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Unwrap returns the reserved-signal sentinel, or nil for plain request
// failures that the calling flow classifies itself.
func (e *Error) Unwrap() error { return e.category }
