package authcore

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Mode selects how the controller treats the deployment.
type Mode string

const (
	// ModeHosted is an exported constant or variable used by the session controller.
	ModeHosted Mode = "hosted"
	// ModeLocal is an exported constant or variable used by the session controller.
	ModeLocal Mode = "local"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Mode    Mode
	HTTP    HTTPConfig
	Storage StorageConfig
	Lockout LockoutConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig defines a public type used by authcore APIs.
//
// HTTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HTTPConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig defines a public type used by authcore APIs.
//
// StorageConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StorageConfig struct {
	// Path is the durable database file. Ignored when InMemory is set or a
	// store is supplied through Builder.WithStorage.
	Path     string
	InMemory bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by authcore APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Mode: ModeHosted,
		HTTP: HTTPConfig{
			UserAgent: "authcore",
			Timeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Path: "authcore.db",
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeHosted, ModeLocal:
		// valid
	default:
		return errors.New("Mode must be hosted or local")
	}

	// HTTP
	if c.Mode == ModeHosted {
		if c.HTTP.BaseURL == "" {
			return errors.New("HTTP BaseURL is required in hosted mode")
		}
		u, err := url.Parse(c.HTTP.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("HTTP BaseURL must be an absolute URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("HTTP BaseURL scheme must be http or https")
		}
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("HTTP Timeout must be > 0")
	}
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		return errors.New("HTTP UserAgent must not be empty")
	}

	// Storage
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return errors.New("Storage Path is required unless InMemory is set")
	}

	// Lockout
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.Cooldown <= 0 {
		return errors.New("Lockout Cooldown must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
