package flows

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/studioapi/authcore/internal/stores"
	"github.com/studioapi/authcore/session"
)

func twoFactorBackend(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/user/enable-2fa", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{
			"secret":"ABC234","qr_code":"otpauth://totp/studio:a@example.com?secret=ABC234",
			"backup_codes":["prov-a","prov-b"]}}`)
	})
	mux.HandleFunc("POST /api/user/verify-2fa", func(w http.ResponseWriter, r *http.Request) {
		var body twoFactorCodeRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Code != "123456" {
			writeEnvelope(w, http.StatusUnauthorized, `{"message":"Invalid code"}`)
			return
		}
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"backup_codes":["final-a","final-b"]}}`)
	})
	mux.HandleFunc("POST /api/user/regenerate-backup-codes", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"backup_codes":["regen-a","regen-b"]}}`)
	})
	mux.HandleFunc("POST /api/user/disable-2fa", func(w http.ResponseWriter, r *http.Request) {
		var body twoFactorDisableRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password == "" {
			writeEnvelope(w, http.StatusBadRequest, `{"message":"Password required"}`)
			return
		}
		writeEnvelope(w, http.StatusOK, `{"success":true,"message":"Two-factor disabled"}`)
	})

	return mux
}

func authenticate(t *testing.T, h *harness) {
	t.Helper()
	err := h.sessions.SetSession(&session.Principal{
		ID:    "7",
		Email: "a@example.com",
		Role:  "editor",
	}, "issued-token")
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestTwoFactorFullEnrollment(t *testing.T) {
	h := newHarness(t, twoFactorBackend(t))
	authenticate(t, h)
	m := NewTwoFactorMachine(h.deps)
	ctx := context.Background()

	setup, err := m.Provision(ctx)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if m.State() != TwoFactorProvisioned {
		t.Fatalf("state = %v", m.State())
	}
	if setup.Secret != "ABC234" || setup.Verified {
		t.Fatalf("unexpected setup: %+v", setup)
	}

	codes, err := m.VerifyCode(ctx, "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	// The codes from Provision are provisional; the activation response
	// carries the definitive set.
	if !reflect.DeepEqual(codes, []string{"final-a", "final-b"}) {
		t.Fatalf("backup codes = %v", codes)
	}
	if m.State() != TwoFactorAwaitingAck {
		t.Fatalf("state = %v", m.State())
	}
	if !h.sessions.Current().Principal.TwoFactorEnabled {
		t.Fatal("principal not marked two-factor enabled")
	}
	if got := h.metric(testMetricTwoFactorVerified); got != 1 {
		t.Fatalf("verified metric = %d", got)
	}

	if err := m.AcknowledgeBackupCodes(); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if m.State() != TwoFactorIdle || m.Setup() != nil {
		t.Fatal("flow must return to idle after acknowledgment")
	}
	if _, err := h.trans.Get(stores.KindTwoFactorSetup); !errors.Is(err, stores.ErrCredentialMissing) {
		t.Fatal("setup credential must be discarded after acknowledgment")
	}
}

func TestTwoFactorVerifyRequiresProvisioning(t *testing.T) {
	h := newHarness(t, nil)
	authenticate(t, h)
	m := NewTwoFactorMachine(h.deps)

	if _, err := m.VerifyCode(context.Background(), "123456"); !errors.Is(err, errFlowExpired) {
		t.Fatalf("expected flow expired, got %v", err)
	}
	if got := h.metric(testMetricFlowExpired); got != 1 {
		t.Fatalf("flow expired metric = %d", got)
	}
}

func TestTwoFactorAckRequiresPendingCodes(t *testing.T) {
	h := newHarness(t, nil)
	authenticate(t, h)
	m := NewTwoFactorMachine(h.deps)

	if err := m.AcknowledgeBackupCodes(); !errors.Is(err, errFlowExpired) {
		t.Fatalf("expected flow expired, got %v", err)
	}
}

func TestTwoFactorRegenerateReentersAck(t *testing.T) {
	h := newHarness(t, twoFactorBackend(t))
	authenticate(t, h)
	m := NewTwoFactorMachine(h.deps)

	codes, err := m.RegenerateBackupCodes(context.Background())
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if !reflect.DeepEqual(codes, []string{"regen-a", "regen-b"}) {
		t.Fatalf("backup codes = %v", codes)
	}
	if m.State() != TwoFactorAwaitingAck {
		t.Fatalf("state = %v", m.State())
	}
	if got := h.metric(testMetricBackupRegenerated); got != 1 {
		t.Fatalf("regenerated metric = %d", got)
	}
	if err := m.AcknowledgeBackupCodes(); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
}

func TestTwoFactorVerifyResetsWhenCredentialVanishes(t *testing.T) {
	h := newHarness(t, twoFactorBackend(t))
	authenticate(t, h)
	m := NewTwoFactorMachine(h.deps)
	ctx := context.Background()

	if _, err := m.Provision(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}

	// The transient credential is the source of truth; losing it mid-flow
	// must hard-reset the machine rather than let the transition proceed.
	_ = h.trans.Discard(stores.KindTwoFactorSetup)
	if _, err := m.VerifyCode(ctx, "123456"); !errors.Is(err, errFlowExpired) {
		t.Fatalf("expected flow expired, got %v", err)
	}
	if m.State() != TwoFactorIdle || m.Setup() != nil {
		t.Fatalf("expected hard reset, got state %v", m.State())
	}
}

func TestTwoFactorAckResetsWhenCredentialExpires(t *testing.T) {
	h := newHarness(t, twoFactorBackend(t))
	authenticate(t, h)
	m := NewTwoFactorMachine(h.deps)

	if _, err := m.RegenerateBackupCodes(context.Background()); err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	h.advance(16 * time.Minute)
	if err := m.AcknowledgeBackupCodes(); !errors.Is(err, errFlowExpired) {
		t.Fatalf("expected flow expired, got %v", err)
	}
	if m.State() != TwoFactorIdle || m.Setup() != nil {
		t.Fatalf("expected hard reset, got state %v", m.State())
	}
}

func TestTwoFactorNoNewBatchWhileUnacknowledged(t *testing.T) {
	h := newHarness(t, twoFactorBackend(t))
	authenticate(t, h)
	m := NewTwoFactorMachine(h.deps)
	ctx := context.Background()

	if _, err := m.RegenerateBackupCodes(ctx); err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	// The displayed batch must be acknowledged before another exists.
	if _, err := m.RegenerateBackupCodes(ctx); !errors.Is(err, errBackupUnacked) {
		t.Fatalf("expected unacknowledged error, got %v", err)
	}
	if _, err := m.Provision(ctx); !errors.Is(err, errBackupUnacked) {
		t.Fatalf("expected unacknowledged error, got %v", err)
	}
}

func TestTwoFactorDisable(t *testing.T) {
	h := newHarness(t, twoFactorBackend(t))
	authenticate(t, h)
	h.sessions.SetPrincipal(&session.Principal{
		ID:               "7",
		Email:            "a@example.com",
		Role:             "editor",
		TwoFactorEnabled: true,
	})
	m := NewTwoFactorMachine(h.deps)
	ctx := context.Background()

	if err := m.Disable(ctx, "", ""); !errors.Is(err, errValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := m.Disable(ctx, "a-long-password-1", "123456"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if h.sessions.Current().Principal.TwoFactorEnabled {
		t.Fatal("principal still marked two-factor enabled")
	}
	if !h.hasEvent("two_factor_disabled") {
		t.Fatal("missing two_factor_disabled event")
	}
}

func TestTwoFactorResumeFromStageMarkers(t *testing.T) {
	payload, _ := json.Marshal(TwoFactorSetup{Secret: "ABC234", BackupCodes: []string{"aaa"}})

	tests := []struct {
		name  string
		token string
		want  TwoFactorState
	}{
		{"pending verification", twoFactorStageVerify, TwoFactorProvisioned},
		{"pending acknowledgment", twoFactorStageAck, TwoFactorAwaitingAck},
		{"unknown stage discarded", "stale-token", TwoFactorIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			_ = h.trans.Put(stores.KindTwoFactorSetup, stores.Credential{
				Token:     tt.token,
				ExpiresAt: h.deps.Now().Add(15 * time.Minute),
				Payload:   payload,
			})

			m := NewTwoFactorMachine(h.deps)
			if m.State() != tt.want {
				t.Fatalf("state = %v, want %v", m.State(), tt.want)
			}
			if tt.want == TwoFactorIdle && m.Setup() != nil {
				t.Fatal("discarded credential must not leave a setup behind")
			}
		})
	}
}

func TestTwoFactorResumeDiscardsBadPayload(t *testing.T) {
	h := newHarness(t, nil)
	_ = h.trans.Put(stores.KindTwoFactorSetup, stores.Credential{
		Token:     twoFactorStageVerify,
		ExpiresAt: h.deps.Now().Add(15 * time.Minute),
		Payload:   []byte("{not json"),
	})

	m := NewTwoFactorMachine(h.deps)
	if m.State() != TwoFactorIdle {
		t.Fatalf("state = %v", m.State())
	}
	if _, err := h.trans.Get(stores.KindTwoFactorSetup); !errors.Is(err, stores.ErrCredentialMissing) {
		t.Fatal("undecodable credential must be discarded")
	}
}

func TestTwoFactorCancelDiscardsSetup(t *testing.T) {
	h := newHarness(t, twoFactorBackend(t))
	authenticate(t, h)
	m := NewTwoFactorMachine(h.deps)

	if _, err := m.Provision(context.Background()); err != nil {
		t.Fatalf("provision: %v", err)
	}
	m.Cancel()
	if m.State() != TwoFactorIdle || m.Setup() != nil {
		t.Fatal("cancel must return the flow to idle")
	}
	if _, err := h.trans.Get(stores.KindTwoFactorSetup); !errors.Is(err, stores.ErrCredentialMissing) {
		t.Fatal("cancel must discard the setup credential")
	}
}
