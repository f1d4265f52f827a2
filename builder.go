package authcore

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studioapi/authcore/api"
	"github.com/studioapi/authcore/internal/flows"
	"github.com/studioapi/authcore/internal/limiters"
	"github.com/studioapi/authcore/internal/stores"
	"github.com/studioapi/authcore/permission"
	"github.com/studioapi/authcore/session"
	"github.com/studioapi/authcore/storage"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	httpClient *http.Client
	store      storage.KV
	auditSink  AuditSink
	table      *permission.Table
	now        func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL describes the withbaseurl operation and its observable behavior.
//
// WithBaseURL does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBaseURL(raw string) *Builder {
	b.config.HTTP.BaseURL = raw
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithStorage supplies the durable store directly, bypassing the
// Storage config section.
//
// WithStorage does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStorage(kv storage.KV) *Builder {
	b.store = kv
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPermissionTable replaces the built-in role/permission table. The
// table must pass its own hierarchy verification.
//
// WithPermissionTable does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithPermissionTable(t *permission.Table) *Builder {
	b.table = t
	return b
}

// WithClock overrides the time source. Test hook.
//
// WithClock does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- PERMISSION TABLE --------
	table := b.table
	if table == nil {
		table = permission.DefaultTable()
	}
	if err := table.VerifyHierarchy(); err != nil {
		return nil, err
	}
	evaluator := permission.NewEvaluator(table, cfg.Mode == ModeLocal)

	// -------- DURABLE STORE --------
	kv := b.store
	ownsStore := false
	if kv == nil {
		if cfg.Storage.InMemory {
			kv = storage.NewMemory()
		} else {
			bolt, err := storage.OpenBolt(cfg.Storage.Path, nil)
			if err != nil {
				return nil, err
			}
			kv = bolt
		}
		ownsStore = true
	}

	sessions := session.NewStore(kv)
	sessions.SetClock(now)
	transients := stores.NewTransientStore(kv, now)

	// -------- API ADAPTER --------
	var apiClient *api.Client
	if cfg.Mode == ModeHosted {
		var err error
		apiClient, err = api.NewClient(api.Config{
			BaseURL:   cfg.HTTP.BaseURL,
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.HTTP.Timeout,
		}, b.httpClient)
		if err != nil {
			if ownsStore {
				_ = kv.Close()
			}
			return nil, err
		}
		apiClient.SetTokenSource(sessions.Token)
	}

	metrics := NewMetrics(cfg.Metrics)
	audit := newAuditDispatcher(cfg.Audit, b.auditSink)

	c := &Client{
		config:     cfg,
		api:        apiClient,
		sessions:   sessions,
		transients: transients,
		store:      kv,
		ownsStore:  ownsStore,
		evaluator:  evaluator,
		metrics:    metrics,
		audit:      audit,
		now:        now,
	}

	if apiClient != nil {
		apiClient.OnUnauthorized(func(token string) {
			_ = sessions.ClearToken(token, session.EndReasonExpired)
			c.metricInc(MetricSessionExpired)
			c.emit(AuditEvent{EventType: EventSessionExpired, Success: false})
		})
		apiClient.OnSignal(func(sig api.Signal, apiErr *api.Error) {
			c.metricInc(MetricServerSignal)
			meta := map[string]string{"signal": string(sig)}
			if apiErr != nil && apiErr.Code != "" {
				meta["code"] = apiErr.Code
			}
			c.emit(AuditEvent{EventType: EventServerSignal, Success: false, Metadata: meta})
		})
	}

	deps := flows.Deps{
		API:        apiClient,
		Sessions:   sessions,
		Transients: transients,
		LockoutCfg: limiters.LockoutConfig{
			Threshold: cfg.Lockout.MaxAttempts,
			Duration:  cfg.Lockout.Cooldown,
		},
		Validate:  validator.New(validator.WithRequiredStructEnabled()),
		Now:       now,
		MetricInc: func(id int) { c.metricInc(MetricID(id)) },
		Emit: func(event string, success bool, err error, meta map[string]string) {
			e := AuditEvent{EventType: event, Success: success, Metadata: meta}
			if err != nil {
				e.Error = err.Error()
			}
			if meta != nil {
				e.Email = meta["email"]
			}
			c.emit(e)
		},
		Metrics: flows.Metrics{
			LoginSuccess:       int(MetricLoginSuccess),
			LoginFailure:       int(MetricLoginFailure),
			LoginLockedOut:     int(MetricLoginLockedOut),
			LockoutTriggered:   int(MetricLockoutTriggered),
			BootstrapCompleted: int(MetricBootstrapCompleted),
			InviteAccepted:     int(MetricInviteAccepted),
			ResetRequested:     int(MetricResetRequested),
			ResetCompleted:     int(MetricResetCompleted),
			TwoFactorVerified:  int(MetricTwoFactorVerified),
			BackupRegenerated:  int(MetricBackupRegenerated),
			FlowExpired:        int(MetricFlowExpired),
		},
		Events: flows.Events{
			LoginSuccess:       EventLoginSuccess,
			LoginFailure:       EventLoginFailure,
			LoginLockedOut:     EventLoginLockedOut,
			LockoutTriggered:   EventLockoutTriggered,
			BootstrapStarted:   EventBootstrapStarted,
			BootstrapCompleted: EventBootstrapCompleted,
			InviteVerified:     EventInviteVerified,
			InviteAccepted:     EventInviteAccepted,
			ResetRequested:     EventResetRequested,
			ResetCompleted:     EventResetCompleted,
			TwoFactorEnabled:   EventTwoFactorEnabled,
			TwoFactorDisabled:  EventTwoFactorDisabled,
			BackupRegenerated:  EventBackupRegenerated,
			FlowExpired:        EventFlowExpired,
		},
		Errors: flows.Errors{
			Validation:           ErrValidation,
			AuthenticationFailed: ErrAuthenticationFailed,
			AccountLocked:        ErrAccountLocked,
			SessionExpired:       ErrSessionExpired,
			SystemNotInitialized: ErrSystemNotInitialized,
			RateLimited:          ErrRateLimited,
			NetworkUnreachable:   ErrNetworkUnreachable,
			Server:               ErrServer,
			FlowExpired:          ErrFlowExpired,
			FlowBusy:             ErrFlowBusy,
			LockedOut:            ErrLockedOut,
			TwoFactorRequired:    ErrTwoFactorRequired,
			BackupUnacked:        ErrBackupCodesUnacknowledged,
			LocalMode:            ErrLocalMode,
			NotReady:             ErrClientNotReady,
		},
	}
	c.deps = deps

	c.login = flows.NewLoginMachine(deps)
	c.bootstrap = flows.NewBootstrapMachine(deps)
	c.invite = flows.NewInviteMachine(deps)
	c.reset = flows.NewResetMachine(deps)
	c.twofactor = flows.NewTwoFactorMachine(deps)

	if cfg.Mode == ModeLocal {
		if err := c.pinLocalSession(); err != nil {
			if ownsStore {
				_ = kv.Close()
			}
			return nil, err
		}
	}

	b.built = true

	return c, nil
}
