package flows

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studioapi/authcore/api"
	"github.com/studioapi/authcore/internal/limiters"
	"github.com/studioapi/authcore/internal/stores"
	"github.com/studioapi/authcore/session"
)

// Metrics carries the host's metric IDs so flows can count outcomes without
// importing the root metrics table.
type Metrics struct {
	LoginSuccess       int
	LoginFailure       int
	LoginLockedOut     int
	LockoutTriggered   int
	BootstrapCompleted int
	InviteAccepted     int
	ResetRequested     int
	ResetCompleted     int
	TwoFactorVerified  int
	BackupRegenerated  int
	FlowExpired        int
}

// Events carries the audit event names emitted by the flows.
type Events struct {
	LoginSuccess       string
	LoginFailure       string
	LoginLockedOut     string
	LockoutTriggered   string
	BootstrapStarted   string
	BootstrapCompleted string
	InviteVerified     string
	InviteAccepted     string
	ResetRequested     string
	ResetCompleted     string
	TwoFactorEnabled   string
	TwoFactorDisabled  string
	BackupRegenerated  string
	FlowExpired        string
}

// Errors carries the host-level sentinel errors the flows wrap, so every
// flow failure classifies under the root taxonomy.
type Errors struct {
	Validation           error
	AuthenticationFailed error
	AccountLocked        error
	SessionExpired       error
	SystemNotInitialized error
	RateLimited          error
	NetworkUnreachable   error
	Server               error
	FlowExpired          error
	FlowBusy             error
	LockedOut            error
	TwoFactorRequired    error
	BackupUnacked        error
	LocalMode            error
	NotReady             error
}

// Deps is the dependency set shared by all machines. The root client builds
// it once; machines treat it as immutable.
type Deps struct {
	API        *api.Client
	Sessions   *session.Store
	Transients *stores.TransientStore
	LockoutCfg limiters.LockoutConfig

	Validate *validator.Validate
	Now      func() time.Time

	MetricInc func(int)
	Emit      func(event string, success bool, err error, meta map[string]string)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

// normalize fills optional hooks so machines never nil-check them.
func (d *Deps) normalize() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.Emit == nil {
		d.Emit = func(string, bool, error, map[string]string) {}
	}
}

// ready reports whether the mandatory wiring is present.
func (d *Deps) ready() bool {
	return d.API != nil && d.Sessions != nil && d.Transients != nil && d.Validate != nil
}
