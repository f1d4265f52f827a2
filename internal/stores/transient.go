package stores

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/studioapi/authcore/storage"
)

// Kind names the flow a transient credential is scoped to. One credential
// per kind; starting a flow over replaces the previous credential.
type Kind string

const (
	KindBootstrapOTP   Kind = "bootstrap_otp"
	KindBootstrapSetup Kind = "bootstrap_setup"
	KindInvitation     Kind = "invitation_setup"
	KindPasswordReset  Kind = "password_reset"
	KindTwoFactorSetup Kind = "twofactor_setup"
)

var (
	// ErrCredentialMissing means no credential of that kind is stored. The
	// owning flow treats this as expired/abandoned and hard-resets.
	ErrCredentialMissing = errors.New("transient credential missing")
	// ErrCredentialExpired means the stored credential's deadline passed.
	ErrCredentialExpired = errors.New("transient credential expired")
)

// Credential is the stored record. Email and Role carry flow context that
// must survive a reload (the invitation flow learns the invited role only
// after code verification and needs it at the password step).
type Credential struct {
	Token     string          `json:"token"`
	Email     string          `json:"email,omitempty"`
	Role      string          `json:"role,omitempty"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TransientStore reads and writes flow credentials in the non-durable KV.
// Centralizing the key layout here keeps storage format changes in one
// place.
type TransientStore struct {
	kv  storage.KV
	now func() time.Time
}

// NewTransientStore builds the accessor. A nil clock uses time.Now.
func NewTransientStore(kv storage.KV, now func() time.Time) *TransientStore {
	if now == nil {
		now = time.Now
	}
	return &TransientStore{kv: kv, now: now}
}

func key(kind Kind) string {
	return "authcore/transient/" + string(kind)
}

// Put stores the credential for its kind, replacing any previous one.
func (s *TransientStore) Put(kind Kind, cred Credential) error {
	if cred.Token == "" {
		return errors.New("transient credential requires a token")
	}
	encoded, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding transient credential: %w", err)
	}
	return s.kv.Put(key(kind), encoded)
}

// Get returns the stored credential, ErrCredentialMissing when absent, or
// ErrCredentialExpired (and discards the record) when its deadline passed.
func (s *TransientStore) Get(kind Kind) (Credential, error) {
	raw, err := s.kv.Get(key(kind))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Credential{}, ErrCredentialMissing
		}
		// Fail safe: an unreadable credential is treated as gone.
		return Credential{}, fmt.Errorf("%w: %v", ErrCredentialMissing, err)
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		_ = s.kv.Delete(key(kind))
		return Credential{}, fmt.Errorf("%w: undecodable record", ErrCredentialMissing)
	}

	if !cred.ExpiresAt.IsZero() && s.now().After(cred.ExpiresAt) {
		_ = s.kv.Delete(key(kind))
		return Credential{}, ErrCredentialExpired
	}
	return cred, nil
}

// Discard removes the credential for a kind. Idempotent.
func (s *TransientStore) Discard(kind Kind) error {
	return s.kv.Delete(key(kind))
}

// DiscardAll removes every kind. Used on logout and flow teardown.
func (s *TransientStore) DiscardAll() {
	for _, kind := range []Kind{
		KindBootstrapOTP,
		KindBootstrapSetup,
		KindInvitation,
		KindPasswordReset,
		KindTwoFactorSetup,
	} {
		_ = s.kv.Delete(key(kind))
	}
}
