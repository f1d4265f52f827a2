package limiters

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrLockedOut rejects a submit while the local lockout window is open.
	ErrLockedOut = errors.New("locked out: too many failed attempts")
)

// LockoutConfig holds the local throttle policy.
type LockoutConfig struct {
	Threshold int           // consecutive failures before locking
	Duration  time.Duration // lockout window
}

// State is a snapshot of one guard's counters.
type State struct {
	Attempts    int
	LockedUntil time.Time // zero when not locked
}

// Locked reports whether the window is still open at now.
func (s State) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// Remaining returns the time left in the window, zero when not locked.
func (s State) Remaining(now time.Time) time.Duration {
	if !s.Locked(now) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}

// LockoutGuard tracks consecutive failed attempts for one login form
// instance. Passage of the window resets the counter lazily on the next
// query; a success resets it immediately.
type LockoutGuard struct {
	config LockoutConfig
	now    func() time.Time

	mu    sync.Mutex
	state State
}

// NewLockoutGuard builds a guard with the given policy. A nil clock uses
// time.Now.
func NewLockoutGuard(cfg LockoutConfig, now func() time.Time) *LockoutGuard {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 15 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &LockoutGuard{config: cfg, now: now}
}

// Allow reports whether a submit may proceed. While locked it returns
// ErrLockedOut without any I/O; the caller must not issue the network call.
func (g *LockoutGuard) Allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expireLocked(g.now())
	if g.state.Locked(g.now()) {
		return ErrLockedOut
	}
	return nil
}

// RecordFailure counts one failed attempt. A wrong password and a wrong
// second-factor code are indistinguishable here; both burn an attempt.
// Returns true when this failure opened the lockout window.
func (g *LockoutGuard) RecordFailure() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.expireLocked(now)

	g.state.Attempts++
	if g.state.Attempts >= g.config.Threshold {
		g.state.LockedUntil = now.Add(g.config.Duration)
		return true
	}
	return false
}

// RecordSuccess resets the guard after a successful authentication.
func (g *LockoutGuard) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = State{}
}

// ApplyServerLockout adopts a server-reported lockout. The server is
// authoritative: the window is extended even when the local counter
// disagrees, and never shortened.
func (g *LockoutGuard) ApplyServerLockout(until time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if until.IsZero() {
		// Server reported a lockout without a deadline; open a full local
		// window from now.
		until = g.now().Add(g.config.Duration)
	}
	if until.After(g.state.LockedUntil) {
		g.state.LockedUntil = until
	}
	if g.state.Attempts < g.config.Threshold {
		g.state.Attempts = g.config.Threshold
	}
}

// Snapshot returns the current counters after lazy expiry.
func (g *LockoutGuard) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked(g.now())
	return g.state
}

// expireLocked resets the counters once the window has passed.
// Caller holds g.mu.
func (g *LockoutGuard) expireLocked(now time.Time) {
	if !g.state.LockedUntil.IsZero() && !now.Before(g.state.LockedUntil) {
		g.state = State{}
	}
}
