package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/studioapi/authcore/storage"
)

// tokenKey is the single durable entry this package owns.
const tokenKey = "authcore/access_token"

// Store holds the current session and persists the access token. Safe for
// concurrent use; the flows serialize their own transitions above it.
type Store struct {
	durable storage.KV

	mu          sync.Mutex
	current     Session
	lastCleared string
	onEnded     []func(EndReason)
	now         func() time.Time
}

// NewStore builds a session store over the durable KV.
func NewStore(durable storage.KV) *Store {
	return &Store{
		durable: durable,
		current: Session{Status: Unauthenticated},
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
}

// OnSessionEnded registers a callback invoked after Clear has removed the
// durable entry. Registration is not synchronized with Clear; wire callbacks
// during construction.
func (s *Store) OnSessionEnded(fn func(EndReason)) {
	if fn != nil {
		s.onEnded = append(s.onEnded, fn)
	}
}

// Current returns a copy of the session snapshot.
func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Token returns the current access token, or "" when unauthenticated.
// Used as the adapter's token source.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.AccessToken
}

// MarkAuthenticating records that a login-class call is outstanding. No-op
// when a session is already held.
func (s *Store) MarkAuthenticating() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Status != Authenticated {
		s.current = Session{Status: Authenticating}
	}
}

// MarkFailed records a terminal authentication failure. The session resolves
// to a concrete logged-out state, never "maybe logged in".
func (s *Store) MarkFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Status != Authenticated {
		s.current = Session{Status: Failed}
	}
}

// SetSession installs a new principal and access token and persists the
// token durably. A previously held session is replaced without a broadcast
// storm: the replaced token can no longer trigger a clear.
func (s *Store) SetSession(principal *Principal, token string) error {
	if token == "" {
		return errors.New("session: refusing to set session with empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.durable.Put(tokenKey, []byte(token)); err != nil {
		s.current = Session{Status: Failed}
		return fmt.Errorf("session: persisting token: %w", err)
	}

	s.current = Session{
		Principal:   principal,
		AccessToken: token,
		Status:      Authenticated,
	}
	return nil
}

// SetPrincipal replaces the principal snapshot after an explicit re-fetch.
// Ignored when no session is held.
func (s *Store) SetPrincipal(principal *Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Status == Authenticated {
		s.current.Principal = principal
	}
}

// Clear tears the session down: the durable token entry is deleted
// synchronously first, then the in-memory state resets, then the
// session-ended broadcast fires. Clearing an already-cleared token is a
// no-op, so simultaneous expiry signals cannot cascade.
func (s *Store) Clear(reason EndReason) error {
	s.mu.Lock()

	token := s.current.AccessToken
	if token == "" || token == s.lastCleared {
		s.current = Session{Status: Unauthenticated}
		s.mu.Unlock()
		return nil
	}

	if err := s.durable.Delete(tokenKey); err != nil {
		// The in-memory session still resets; a stale durable entry is
		// re-validated (and discarded) on the next Resume.
		s.lastCleared = token
		s.current = Session{Status: Unauthenticated}
		s.mu.Unlock()
		s.broadcast(reason)
		return fmt.Errorf("session: removing durable token: %w", err)
	}

	s.lastCleared = token
	s.current = Session{Status: Unauthenticated}
	s.mu.Unlock()

	s.broadcast(reason)
	return nil
}

// ClearToken clears the session only if the given token is still current.
// The adapter's unauthorized hook uses it so a late expiry signal for an
// already-replaced token does nothing.
func (s *Store) ClearToken(token string, reason EndReason) error {
	s.mu.Lock()
	current := s.current.AccessToken
	s.mu.Unlock()
	if token == "" || token != current {
		return nil
	}
	return s.Clear(reason)
}

// Resume reloads the persisted token on startup. A missing entry or any
// storage failure resolves to Unauthenticated; a persisted token whose exp
// claim has passed is discarded. The claims are read without signature
// verification — the server remains the authority and will reject a bad
// token on first use.
func (s *Store) Resume() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.durable.Get(tokenKey)
	if err != nil {
		s.current = Session{Status: Unauthenticated}
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("session: reading durable token: %w", err)
	}

	token := string(raw)
	if token == "" {
		s.current = Session{Status: Unauthenticated}
		return false, nil
	}

	if expired, _ := tokenExpired(token, s.now()); expired {
		_ = s.durable.Delete(tokenKey)
		s.current = Session{Status: Unauthenticated}
		return false, nil
	}

	s.current = Session{AccessToken: token, Status: Authenticated}
	return true, nil
}

func (s *Store) broadcast(reason EndReason) {
	for _, fn := range s.onEnded {
		fn(reason)
	}
}

// tokenExpired reports whether the JWT's exp claim has passed. Tokens that
// do not parse or carry no exp claim are given to the server to judge.
func tokenExpired(token string, now time.Time) (bool, *time.Time) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, nil
	}
	if now.After(exp.Time) {
		return true, &exp.Time
	}
	return false, &exp.Time
}
