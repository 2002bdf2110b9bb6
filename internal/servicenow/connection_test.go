package servicenow

import (
	"errors"
	"sync"
	"testing"
)

func TestResolve_Precedence(t *testing.T) {
	automation := AutomationConnection{
		"Username":      "auto-user",
		"Password":      "auto-pass",
		"ServiceNowUri": "auto.service-now.com",
	}
	explicit := &Credential{Username: "explicit-user", Password: "explicit-pass"}
	state := &AuthSnapshot{
		Credential: Credential{Username: "state-user", Password: "state-pass"},
		Host:       "state.service-now.com",
	}

	tests := []struct {
		name     string
		cfg      ConnectionConfig
		wantUser string
		wantHost string
	}{
		{
			name:     "automation wins over everything",
			cfg:      ConnectionConfig{Automation: automation, Credential: explicit, Host: "explicit.service-now.com", AuthState: state},
			wantUser: "auto-user",
			wantHost: "auto.service-now.com",
		},
		{
			name:     "explicit credential and host",
			cfg:      ConnectionConfig{Credential: explicit, Host: "explicit.service-now.com", AuthState: state},
			wantUser: "explicit-user",
			wantHost: "explicit.service-now.com",
		},
		{
			name:     "stored auth state as fallback",
			cfg:      ConnectionConfig{AuthState: state},
			wantUser: "state-user",
			wantHost: "state.service-now.com",
		},
		{
			name:     "credential without host falls through to state",
			cfg:      ConnectionConfig{Credential: explicit, AuthState: state},
			wantUser: "state-user",
			wantHost: "state.service-now.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := Resolve(tt.cfg)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if conn.Credential.Username != tt.wantUser {
				t.Errorf("username = %q, want %q", conn.Credential.Username, tt.wantUser)
			}
			if conn.Host != tt.wantHost {
				t.Errorf("host = %q, want %q", conn.Host, tt.wantHost)
			}
		})
	}
}

func TestResolve_NothingConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  ConnectionConfig
	}{
		{"zero value", ConnectionConfig{}},
		{"empty auth state", ConnectionConfig{AuthState: &AuthSnapshot{}}},
		{"host without credential", ConnectionConfig{Host: "example.service-now.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resolve(tt.cfg); !errors.Is(err, ErrAuthNotConfigured) {
				t.Errorf("error = %v, want ErrAuthNotConfigured", err)
			}
		})
	}
}

func TestResolve_AutomationMissingKeys(t *testing.T) {
	for _, key := range []string{"Username", "Password", "ServiceNowUri"} {
		t.Run("missing "+key, func(t *testing.T) {
			automation := AutomationConnection{
				"Username":      "user",
				"Password":      "pass",
				"ServiceNowUri": "host.service-now.com",
			}
			delete(automation, key)
			_, err := Resolve(ConnectionConfig{Automation: automation})
			if !errors.Is(err, ErrAuthNotConfigured) {
				t.Errorf("error = %v, want ErrAuthNotConfigured", err)
			}
		})
	}
}

func TestConnection_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"bare host", "dev12345.service-now.com", "https://dev12345.service-now.com/api/now/v1"},
		{"https scheme kept", "https://dev12345.service-now.com", "https://dev12345.service-now.com/api/now/v1"},
		{"http scheme kept for test servers", "http://127.0.0.1:8321", "http://127.0.0.1:8321/api/now/v1"},
		{"trailing slash stripped", "dev12345.service-now.com/", "https://dev12345.service-now.com/api/now/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := Connection{Host: tt.host}
			if got := conn.BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnection_BaseURL_AllVariants(t *testing.T) {
	// The derived base must be identical no matter which variant supplied
	// the host.
	const host = "instance.service-now.com"
	const want = "https://instance.service-now.com/api/now/v1"

	variants := []ConnectionConfig{
		{Automation: AutomationConnection{"Username": "u", "Password": "p", "ServiceNowUri": host}},
		{Credential: &Credential{Username: "u", Password: "p"}, Host: host},
		{AuthState: &AuthSnapshot{Credential: Credential{Username: "u", Password: "p"}, Host: host}},
	}
	for i, cfg := range variants {
		conn, err := Resolve(cfg)
		if err != nil {
			t.Fatalf("variant %d: Resolve failed: %v", i, err)
		}
		if got := conn.BaseURL(); got != want {
			t.Errorf("variant %d: BaseURL() = %q, want %q", i, got, want)
		}
	}
}

func TestCredential_BasicHeader(t *testing.T) {
	c := Credential{Username: "admin", Password: "secret"}
	// "admin:secret" → base64 "YWRtaW46c2VjcmV0"
	want := "Basic YWRtaW46c2VjcmV0"
	if got := c.basicHeader(); got != want {
		t.Errorf("basicHeader() = %q, want %q", got, want)
	}
}

func TestAuthState_SetSnapshotClear(t *testing.T) {
	state := &AuthState{}

	if snap := state.Snapshot(); snap.valid() {
		t.Error("empty state should not produce a valid snapshot")
	}

	state.Set("admin", "secret", "dev.service-now.com")
	snap := state.Snapshot()
	if snap.Credential.Username != "admin" || snap.Host != "dev.service-now.com" {
		t.Errorf("snapshot = %+v", snap)
	}

	// Snapshots are detached from later mutations.
	state.Clear()
	if snap.Credential.Username != "admin" {
		t.Error("Clear must not mutate an existing snapshot")
	}
	if state.Snapshot().valid() {
		t.Error("state should be invalid after Clear")
	}
}

func TestAuthState_ConcurrentAccess(t *testing.T) {
	state := &AuthState{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state.Set("user", "pass", "host.service-now.com")
			_ = state.Snapshot()
		}()
	}
	wg.Wait()

	if !state.Snapshot().valid() {
		t.Error("expected valid state after concurrent writes")
	}
}
