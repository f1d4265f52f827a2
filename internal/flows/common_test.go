package flows

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studioapi/authcore/api"
	"github.com/studioapi/authcore/internal/limiters"
	"github.com/studioapi/authcore/internal/stores"
	"github.com/studioapi/authcore/session"
	"github.com/studioapi/authcore/storage"
)

// Host taxonomy stand-ins. The machines only ever wrap these; tests assert
// with errors.Is.
var (
	errValidation           = errors.New("validation")
	errAuthenticationFailed = errors.New("authentication failed")
	errAccountLocked        = errors.New("account locked")
	errSessionExpired       = errors.New("session expired")
	errSystemNotInitialized = errors.New("system not initialized")
	errRateLimited          = errors.New("rate limited")
	errNetworkUnreachable   = errors.New("network unreachable")
	errServer               = errors.New("server error")
	errFlowExpired          = errors.New("flow expired")
	errFlowBusy             = errors.New("flow busy")
	errLockedOut            = errors.New("locked out")
	errTwoFactorRequired    = errors.New("two-factor required")
	errBackupUnacked        = errors.New("backup codes unacknowledged")
	errLocalMode            = errors.New("local mode")
	errNotReady             = errors.New("not ready")
)

const (
	testMetricLoginSuccess = iota + 1
	testMetricLoginFailure
	testMetricLoginLockedOut
	testMetricLockoutTriggered
	testMetricBootstrapCompleted
	testMetricInviteAccepted
	testMetricResetRequested
	testMetricResetCompleted
	testMetricTwoFactorVerified
	testMetricBackupRegenerated
	testMetricFlowExpired
)

type recordedEvent struct {
	name    string
	success bool
	meta    map[string]string
}

// harness bundles a machine's dependency set with the fakes behind it.
type harness struct {
	deps     Deps
	sessions *session.Store
	trans    *stores.TransientStore
	kv       *storage.Memory

	mu      sync.Mutex
	now     time.Time
	metrics map[int]int
	events  []recordedEvent
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) metric(id int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics[id]
}

func (h *harness) eventNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.events))
	for _, e := range h.events {
		names = append(names, e.name)
	}
	return names
}

func (h *harness) hasEvent(name string) bool {
	for _, got := range h.eventNames() {
		if got == name {
			return true
		}
	}
	return false
}

// newHarness builds a dependency set over an httptest server. A nil handler
// yields an adapter pointing at a closed server, for flows that must not
// touch the network.
func newHarness(t *testing.T, handler http.Handler) *harness {
	t.Helper()

	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			t.Error("unexpected network call")
			w.WriteHeader(http.StatusInternalServerError)
		})
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	apiClient, err := api.NewClient(api.Config{BaseURL: server.URL, UserAgent: "flows-test"}, server.Client())
	if err != nil {
		t.Fatalf("api client: %v", err)
	}

	kv := storage.NewMemory()
	h := &harness{
		kv:      kv,
		now:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		metrics: make(map[int]int),
	}
	clock := func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.now
	}

	h.sessions = session.NewStore(kv)
	h.sessions.SetClock(clock)
	h.trans = stores.NewTransientStore(kv, clock)

	h.deps = Deps{
		API:        apiClient,
		Sessions:   h.sessions,
		Transients: h.trans,
		LockoutCfg: limiters.LockoutConfig{Threshold: 3, Duration: 15 * time.Minute},
		Validate:   validator.New(validator.WithRequiredStructEnabled()),
		Now:        clock,
		MetricInc: func(id int) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.metrics[id]++
		},
		Emit: func(name string, success bool, _ error, meta map[string]string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, recordedEvent{name: name, success: success, meta: meta})
		},
		Metrics: Metrics{
			LoginSuccess:       testMetricLoginSuccess,
			LoginFailure:       testMetricLoginFailure,
			LoginLockedOut:     testMetricLoginLockedOut,
			LockoutTriggered:   testMetricLockoutTriggered,
			BootstrapCompleted: testMetricBootstrapCompleted,
			InviteAccepted:     testMetricInviteAccepted,
			ResetRequested:     testMetricResetRequested,
			ResetCompleted:     testMetricResetCompleted,
			TwoFactorVerified:  testMetricTwoFactorVerified,
			BackupRegenerated:  testMetricBackupRegenerated,
			FlowExpired:        testMetricFlowExpired,
		},
		Events: Events{
			LoginSuccess:       "login_success",
			LoginFailure:       "login_failure",
			LoginLockedOut:     "login_locked_out",
			LockoutTriggered:   "lockout_triggered",
			BootstrapStarted:   "bootstrap_started",
			BootstrapCompleted: "bootstrap_completed",
			InviteVerified:     "invite_verified",
			InviteAccepted:     "invite_accepted",
			ResetRequested:     "reset_requested",
			ResetCompleted:     "reset_completed",
			TwoFactorEnabled:   "two_factor_enabled",
			TwoFactorDisabled:  "two_factor_disabled",
			BackupRegenerated:  "backup_regenerated",
			FlowExpired:        "flow_expired",
		},
		Errors: Errors{
			Validation:           errValidation,
			AuthenticationFailed: errAuthenticationFailed,
			AccountLocked:        errAccountLocked,
			SessionExpired:       errSessionExpired,
			SystemNotInitialized: errSystemNotInitialized,
			RateLimited:          errRateLimited,
			NetworkUnreachable:   errNetworkUnreachable,
			Server:               errServer,
			FlowExpired:          errFlowExpired,
			FlowBusy:             errFlowBusy,
			LockedOut:            errLockedOut,
			TwoFactorRequired:    errTwoFactorRequired,
			BackupUnacked:        errBackupUnacked,
			LocalMode:            errLocalMode,
			NotReady:             errNotReady,
		},
	}
	return h
}

// writeEnvelope renders the backend's uniform response shape.
func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

const testAuthSuccessBody = `{"success":true,"data":{
	"access_token":"issued-token",
	"token_type":"bearer",
	"user":{"id":7,"email":"a@example.com","name":"Alice","role":"editor"}
}}`
