package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/studioapi/authcore/storage"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "1"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func TestSetSessionPersistsAndResumes(t *testing.T) {
	kv := storage.NewMemory()
	store := NewStore(kv)

	token := signedToken(t, time.Now().Add(time.Hour))
	principal := &Principal{ID: "1", Email: "a@example.com", Role: "editor"}
	if err := store.SetSession(principal, token); err != nil {
		t.Fatalf("set session failed: %v", err)
	}

	current := store.Current()
	if current.Status != Authenticated {
		t.Fatalf("expected Authenticated, got %v", current.Status)
	}
	if store.Token() != token {
		t.Fatalf("token mismatch")
	}

	fresh := NewStore(kv)
	resumed, err := fresh.Resume()
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !resumed {
		t.Fatal("expected session to resume from durable store")
	}
	if fresh.Token() != token {
		t.Fatalf("resumed token mismatch")
	}
	if fresh.Current().Principal != nil {
		t.Fatal("resume must not fabricate a principal; it is re-fetched from the server")
	}
}

func TestSetSessionRejectsEmptyToken(t *testing.T) {
	store := NewStore(storage.NewMemory())
	if err := store.SetSession(&Principal{ID: "1"}, ""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestResumeDiscardsExpiredToken(t *testing.T) {
	kv := storage.NewMemory()
	store := NewStore(kv)

	token := signedToken(t, time.Now().Add(-time.Minute))
	if err := store.SetSession(&Principal{ID: "1"}, token); err != nil {
		t.Fatalf("set session failed: %v", err)
	}

	fresh := NewStore(kv)
	resumed, err := fresh.Resume()
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed {
		t.Fatal("expired token must not resume")
	}
	if fresh.Current().Status != Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", fresh.Current().Status)
	}
	if kv.Len() != 0 {
		t.Fatal("expired token must be discarded from the durable store")
	}
}

func TestResumeKeepsUnparsableToken(t *testing.T) {
	// Tokens that do not parse as JWTs are given to the server to judge.
	kv := storage.NewMemory()
	store := NewStore(kv)
	if err := store.SetSession(&Principal{ID: "local"}, "local-mode-token"); err != nil {
		t.Fatalf("set session failed: %v", err)
	}

	fresh := NewStore(kv)
	resumed, err := fresh.Resume()
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !resumed {
		t.Fatal("opaque token must resume; the server is the authority")
	}
}

func TestResumeFailSafeOnStorageError(t *testing.T) {
	kv := storage.NewMemory()
	store := NewStore(kv)
	if err := store.SetSession(&Principal{ID: "1"}, signedToken(t, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("set session failed: %v", err)
	}

	kv.FailReads = true
	fresh := NewStore(kv)
	resumed, err := fresh.Resume()
	if err == nil {
		t.Fatal("expected storage error to surface")
	}
	if resumed {
		t.Fatal("storage failure must resolve to logged out, never maybe-logged-in")
	}
	if fresh.Current().Status != Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", fresh.Current().Status)
	}
}

func TestClearIsIdempotentAndBroadcastsOnce(t *testing.T) {
	kv := storage.NewMemory()
	store := NewStore(kv)

	var reasons []EndReason
	store.OnSessionEnded(func(r EndReason) { reasons = append(reasons, r) })

	token := signedToken(t, time.Now().Add(time.Hour))
	if err := store.SetSession(&Principal{ID: "1"}, token); err != nil {
		t.Fatalf("set session failed: %v", err)
	}

	if err := store.Clear(EndReasonLogout); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := store.Clear(EndReasonLogout); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}

	if len(reasons) != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", len(reasons))
	}
	if reasons[0] != EndReasonLogout {
		t.Fatalf("expected logout reason, got %v", reasons[0])
	}
	if kv.Len() != 0 {
		t.Fatal("durable token must be removed on clear")
	}
}

func TestClearTokenIgnoresStaleToken(t *testing.T) {
	kv := storage.NewMemory()
	store := NewStore(kv)

	var ended int
	store.OnSessionEnded(func(EndReason) { ended++ })

	oldToken := signedToken(t, time.Now().Add(time.Hour))
	if err := store.SetSession(&Principal{ID: "1"}, oldToken); err != nil {
		t.Fatalf("set session failed: %v", err)
	}
	newToken := signedToken(t, time.Now().Add(2*time.Hour))
	if err := store.SetSession(&Principal{ID: "1"}, newToken); err != nil {
		t.Fatalf("replace session failed: %v", err)
	}

	// A late expiry signal for the replaced token must do nothing.
	if err := store.ClearToken(oldToken, EndReasonExpired); err != nil {
		t.Fatalf("clear stale token failed: %v", err)
	}
	if ended != 0 {
		t.Fatal("stale token clear must not broadcast")
	}
	if store.Current().Status != Authenticated {
		t.Fatal("session must survive a stale token clear")
	}

	if err := store.ClearToken(newToken, EndReasonExpired); err != nil {
		t.Fatalf("clear current token failed: %v", err)
	}
	if ended != 1 {
		t.Fatalf("expected one broadcast, got %d", ended)
	}
}

func TestMarkAuthenticatingDoesNotClobberSession(t *testing.T) {
	store := NewStore(storage.NewMemory())

	store.MarkAuthenticating()
	if store.Current().Status != Authenticating {
		t.Fatalf("expected Authenticating, got %v", store.Current().Status)
	}
	store.MarkFailed()
	if store.Current().Status != Failed {
		t.Fatalf("expected Failed, got %v", store.Current().Status)
	}

	token := signedToken(t, time.Now().Add(time.Hour))
	if err := store.SetSession(&Principal{ID: "1"}, token); err != nil {
		t.Fatalf("set session failed: %v", err)
	}

	store.MarkAuthenticating()
	if store.Current().Status != Authenticated {
		t.Fatal("MarkAuthenticating must not disturb a held session")
	}
	store.MarkFailed()
	if store.Current().Status != Authenticated {
		t.Fatal("MarkFailed must not disturb a held session")
	}
}

func TestSetPrincipalRequiresSession(t *testing.T) {
	store := NewStore(storage.NewMemory())
	store.SetPrincipal(&Principal{ID: "1"})
	if store.Current().Principal != nil {
		t.Fatal("SetPrincipal without a session must be ignored")
	}
}

func TestTokenExpiredClockRespectsInjectedClock(t *testing.T) {
	kv := storage.NewMemory()
	store := NewStore(kv)

	exp := time.Now().Add(time.Hour)
	if err := store.SetSession(&Principal{ID: "1"}, signedToken(t, exp)); err != nil {
		t.Fatalf("set session failed: %v", err)
	}

	fresh := NewStore(kv)
	fresh.SetClock(func() time.Time { return exp.Add(time.Minute) })
	resumed, err := fresh.Resume()
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed {
		t.Fatal("token past exp under the injected clock must not resume")
	}
}
