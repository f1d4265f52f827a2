package stores

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/studioapi/authcore/storage"
)

func newTestStore() (*TransientStore, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	store := NewTransientStore(storage.NewMemory(), func() time.Time { return *clock })
	return store, clock
}

func TestPutGetRoundTrip(t *testing.T) {
	store, clock := newTestStore()

	cred := Credential{
		Token:     "setup-token",
		Email:     "a@example.com",
		Role:      "editor",
		ExpiresAt: clock.Add(30 * time.Minute),
		Payload:   json.RawMessage(`{"secret":"s"}`),
	}
	if err := store.Put(KindInvitation, cred); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := store.Get(KindInvitation)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Token != cred.Token || got.Email != cred.Email || got.Role != cred.Role {
		t.Fatalf("credential mismatch: %+v", got)
	}
	if string(got.Payload) != `{"secret":"s"}` {
		t.Fatalf("payload mismatch: %s", got.Payload)
	}
}

func TestPutRequiresToken(t *testing.T) {
	store, _ := newTestStore()
	if err := store.Put(KindPasswordReset, Credential{Email: "a@example.com"}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestPutReplacesPrevious(t *testing.T) {
	store, clock := newTestStore()

	expires := clock.Add(time.Hour)
	_ = store.Put(KindPasswordReset, Credential{Token: "first", ExpiresAt: expires})
	_ = store.Put(KindPasswordReset, Credential{Token: "second", ExpiresAt: expires})

	got, err := store.Get(KindPasswordReset)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Token != "second" {
		t.Fatalf("expected replacement, got %q", got.Token)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore()
	if _, err := store.Get(KindBootstrapOTP); !errors.Is(err, ErrCredentialMissing) {
		t.Fatalf("expected ErrCredentialMissing, got %v", err)
	}
}

func TestGetExpiredDiscards(t *testing.T) {
	store, clock := newTestStore()

	_ = store.Put(KindBootstrapOTP, Credential{
		Token:     "temp",
		ExpiresAt: clock.Add(30 * time.Minute),
	})

	*clock = clock.Add(31 * time.Minute)
	if _, err := store.Get(KindBootstrapOTP); !errors.Is(err, ErrCredentialExpired) {
		t.Fatalf("expected ErrCredentialExpired, got %v", err)
	}

	// The expired record is gone; a second read reports missing.
	if _, err := store.Get(KindBootstrapOTP); !errors.Is(err, ErrCredentialMissing) {
		t.Fatalf("expected ErrCredentialMissing after discard, got %v", err)
	}
}

func TestZeroExpiryNeverExpires(t *testing.T) {
	store, clock := newTestStore()

	_ = store.Put(KindTwoFactorSetup, Credential{Token: "pending_ack"})
	*clock = clock.Add(100 * 24 * time.Hour)

	if _, err := store.Get(KindTwoFactorSetup); err != nil {
		t.Fatalf("zero-expiry credential must survive, got %v", err)
	}
}

func TestUndecodableRecordDiscarded(t *testing.T) {
	kv := storage.NewMemory()
	store := NewTransientStore(kv, nil)

	_ = kv.Put("authcore/transient/"+string(KindInvitation), []byte("not json"))
	if _, err := store.Get(KindInvitation); !errors.Is(err, ErrCredentialMissing) {
		t.Fatalf("expected ErrCredentialMissing for undecodable record, got %v", err)
	}
	if _, err := kv.Get("authcore/transient/" + string(KindInvitation)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal("undecodable record must be deleted")
	}
}

func TestDiscardAll(t *testing.T) {
	store, clock := newTestStore()

	expires := clock.Add(time.Hour)
	kinds := []Kind{KindBootstrapOTP, KindBootstrapSetup, KindInvitation, KindPasswordReset, KindTwoFactorSetup}
	for _, kind := range kinds {
		_ = store.Put(kind, Credential{Token: "t", ExpiresAt: expires})
	}

	store.DiscardAll()
	for _, kind := range kinds {
		if _, err := store.Get(kind); !errors.Is(err, ErrCredentialMissing) {
			t.Fatalf("kind %s survived DiscardAll: %v", kind, err)
		}
	}
}
