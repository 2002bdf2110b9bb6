// Package servicenow provides connection resolution for the ServiceNow Attachment API.
//
// # Credential Model
//
// Credentials can arrive from three mutually exclusive sources:
//
//   - Automation connection: an orchestration platform's stored bundle,
//     supplied as a mapping with keys Username, Password, ServiceNowUri.
//   - Explicit credential: a Credential value plus an instance host.
//   - Stored auth state: a process-wide credential and host populated
//     earlier by AuthState.Set.
//
// Resolution happens once, before any network call, and picks exactly one
// source in the precedence order above. A ConnectionConfig that resolves to
// none of them fails with ErrAuthNotConfigured.
//
// # Thread Safety
//
// AuthState is safe for concurrent use. Resolve operates on a Snapshot, so
// a concurrent Set or Clear never changes the credentials of an upload that
// is already in flight.
package servicenow

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// Keys expected in an automation connection mapping.
const (
	automationKeyUsername = "Username"
	automationKeyPassword = "Password"
	automationKeyURI      = "ServiceNowUri"
)

// Credential is a username/password pair for HTTP Basic authentication.
type Credential struct {
	Username string
	Password string
}

// basicHeader returns the "Basic <base64>" header value per RFC 7617.
func (c Credential) basicHeader() string {
	encoded := base64.StdEncoding.EncodeToString(
		[]byte(c.Username + ":" + c.Password),
	)
	return "Basic " + encoded
}

// AutomationConnection is the credential bundle handed over by an external
// orchestration platform. It must carry the Username, Password, and
// ServiceNowUri keys.
type AutomationConnection map[string]string

// Connection is a fully resolved credential and instance host, ready for an
// upload.
type Connection struct {
	Credential Credential
	Host       string
}

// BaseURL derives the Attachment API base for the connection's host. A bare
// host gets the https scheme prefixed; hosts that already carry a scheme are
// kept as-is.
func (c Connection) BaseURL() string {
	host := strings.TrimRight(c.Host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host + "/api/now/v1"
}

// ConnectionConfig selects one of the three credential sources. Populate
// exactly one variant; when several are set, resolution follows the
// documented precedence rather than failing.
type ConnectionConfig struct {
	// Automation takes priority when non-nil.
	Automation AutomationConnection

	// Credential and Host are used together as the explicit variant. Both
	// must be set for the variant to resolve.
	Credential *Credential
	Host       string

	// AuthState is the stored-state fallback, usually the snapshot of a
	// package-level AuthState. Nil or empty snapshots do not resolve.
	AuthState *AuthSnapshot
}

// Resolve picks exactly one credential source from cfg.
//
// Precedence: automation connection, then explicit credential + host, then
// stored auth state. Returns ErrAuthNotConfigured when nothing resolves —
// always before any network I/O.
func Resolve(cfg ConnectionConfig) (Connection, error) {
	if cfg.Automation != nil {
		return resolveAutomation(cfg.Automation)
	}
	if cfg.Credential != nil && cfg.Host != "" {
		return Connection{Credential: *cfg.Credential, Host: cfg.Host}, nil
	}
	if cfg.AuthState != nil && cfg.AuthState.valid() {
		return Connection{Credential: cfg.AuthState.Credential, Host: cfg.AuthState.Host}, nil
	}
	return Connection{}, ErrAuthNotConfigured
}

func resolveAutomation(m AutomationConnection) (Connection, error) {
	for _, key := range []string{automationKeyUsername, automationKeyPassword, automationKeyURI} {
		if m[key] == "" {
			return Connection{}, fmt.Errorf("automation connection: missing key %q: %w", key, ErrAuthNotConfigured)
		}
	}
	return Connection{
		Credential: Credential{
			Username: m[automationKeyUsername],
			Password: m[automationKeyPassword],
		},
		Host: m[automationKeyURI],
	}, nil
}

// AuthSnapshot is a point-in-time copy of stored auth state.
type AuthSnapshot struct {
	Credential Credential
	Host       string
}

func (s AuthSnapshot) valid() bool {
	return s.Credential.Username != "" && s.Host != ""
}

// AuthState stores a process-wide credential and instance host, populated by
// a setup step and consumed later as the fallback credential source. Safe
// for concurrent use.
type AuthState struct {
	mu         sync.RWMutex
	credential Credential
	host       string
}

// Set stores the credential and host, replacing any previous state.
func (a *AuthState) Set(username, password, host string) {
	a.mu.Lock()
	a.credential = Credential{Username: username, Password: password}
	a.host = host
	a.mu.Unlock()
}

// Clear removes any stored state.
func (a *AuthState) Clear() {
	a.mu.Lock()
	a.credential = Credential{}
	a.host = ""
	a.mu.Unlock()
}

// Snapshot returns a copy of the current state. The returned value is
// detached: later Set or Clear calls do not affect it.
func (a *AuthState) Snapshot() AuthSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AuthSnapshot{Credential: a.credential, Host: a.host}
}

// DefaultAuthState is the process-wide fallback consumed by the CLI.
var DefaultAuthState = &AuthState{}
