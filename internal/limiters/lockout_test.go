package limiters

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGuard(threshold int, window time.Duration) (*LockoutGuard, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	guard := NewLockoutGuard(LockoutConfig{Threshold: threshold, Duration: window}, clock.Now)
	return guard, clock
}

func TestGuardLocksAtThreshold(t *testing.T) {
	guard, _ := newTestGuard(3, 15*time.Minute)

	if guard.RecordFailure() {
		t.Fatal("first failure must not lock")
	}
	if guard.RecordFailure() {
		t.Fatal("second failure must not lock")
	}
	if err := guard.Allow(); err != nil {
		t.Fatalf("allow before threshold failed: %v", err)
	}
	if !guard.RecordFailure() {
		t.Fatal("third failure must open the window")
	}

	if err := guard.Allow(); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}

	state := guard.Snapshot()
	if state.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", state.Attempts)
	}
	if state.LockedUntil.IsZero() {
		t.Fatal("expected a lockout deadline")
	}
}

func TestGuardExpiresLazily(t *testing.T) {
	guard, clock := newTestGuard(2, 10*time.Minute)

	guard.RecordFailure()
	guard.RecordFailure()
	if err := guard.Allow(); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected lockout, got %v", err)
	}

	clock.Advance(10*time.Minute + time.Second)
	if err := guard.Allow(); err != nil {
		t.Fatalf("expired window must allow, got %v", err)
	}

	state := guard.Snapshot()
	if state.Attempts != 0 || !state.LockedUntil.IsZero() {
		t.Fatalf("expired window must reset counters, got %+v", state)
	}
}

func TestGuardResetsOnSuccess(t *testing.T) {
	guard, _ := newTestGuard(3, 15*time.Minute)

	guard.RecordFailure()
	guard.RecordFailure()
	guard.RecordSuccess()

	if state := guard.Snapshot(); state.Attempts != 0 {
		t.Fatalf("success must reset attempts, got %d", state.Attempts)
	}
}

func TestApplyServerLockoutExtendsNeverShortens(t *testing.T) {
	guard, clock := newTestGuard(5, 15*time.Minute)

	serverUntil := clock.Now().Add(30 * time.Minute)
	guard.ApplyServerLockout(serverUntil)

	state := guard.Snapshot()
	if !state.LockedUntil.Equal(serverUntil) {
		t.Fatalf("expected server deadline %v, got %v", serverUntil, state.LockedUntil)
	}
	if state.Attempts < 5 {
		t.Fatalf("server lockout must saturate the counter, got %d", state.Attempts)
	}

	// An earlier server deadline must not shorten the open window.
	guard.ApplyServerLockout(clock.Now().Add(time.Minute))
	if got := guard.Snapshot().LockedUntil; !got.Equal(serverUntil) {
		t.Fatalf("window shortened to %v", got)
	}
}

func TestApplyServerLockoutWithoutDeadline(t *testing.T) {
	guard, clock := newTestGuard(5, 15*time.Minute)

	guard.ApplyServerLockout(time.Time{})
	want := clock.Now().Add(15 * time.Minute)
	if got := guard.Snapshot().LockedUntil; !got.Equal(want) {
		t.Fatalf("expected a full local window %v, got %v", want, got)
	}
}

func TestStateRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var state State
	if state.Locked(now) {
		t.Fatal("zero state must not be locked")
	}
	if state.Remaining(now) != 0 {
		t.Fatal("zero state must have no remaining time")
	}

	state.LockedUntil = now.Add(5 * time.Minute)
	if !state.Locked(now) {
		t.Fatal("expected locked")
	}
	if got := state.Remaining(now); got != 5*time.Minute {
		t.Fatalf("expected 5m remaining, got %v", got)
	}
}
