package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"tradeconsole/internal/remote"
	"tradeconsole/pkg/utils"
)

func newTestAuthService(r *MockAuthRemote, s *MockSessionStore) (*AuthService, *MockCache, *MockFlow) {
	cache := &MockCache{}
	flow := &MockFlow{}
	return NewAuthService(r, s, cache, flow, utils.NewNopLogger()), cache, flow
}

func TestAuthService_Login(t *testing.T) {
	tests := []struct {
		name         string
		remote       *MockAuthRemote
		initialToken string
		wantErr      error
		wantToken    string
	}{
		{
			name:      "success stores token",
			remote:    &MockAuthRemote{access: "tok-1"},
			wantToken: "tok-1",
		},
		{
			name:         "401 leaves token untouched",
			remote:       &MockAuthRemote{loginErr: &remote.RemoteError{Op: remote.OpLogin, Status: http.StatusUnauthorized}},
			initialToken: "old",
			wantErr:      ErrLoginFailed,
			wantToken:    "old",
		},
		{
			name:    "transport error",
			remote:  &MockAuthRemote{loginErr: &remote.RemoteError{Op: remote.OpLogin, Err: errors.New("connection refused")}},
			wantErr: ErrLoginFailed,
		},
		{
			name:    "malformed response",
			remote:  &MockAuthRemote{loginErr: remote.ErrMalformedResponse},
			wantErr: ErrLoginFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockSessionStore{token: tt.initialToken}
			svc, _, _ := newTestAuthService(tt.remote, store)

			result, err := svc.Login(context.Background(), "alice", "secret")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if err.Error() != MsgLoginFailed {
					t.Errorf("expected message %q, got %q", MsgLoginFailed, err.Error())
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if result.Redirect != PathAfterLogin {
					t.Errorf("expected redirect %s, got %s", PathAfterLogin, result.Redirect)
				}
			}

			if store.token != tt.wantToken {
				t.Errorf("expected token %q, got %q", tt.wantToken, store.token)
			}
		})
	}
}

func TestAuthService_Login_ValidationPassesThrough(t *testing.T) {
	r := &MockAuthRemote{loginErr: &remote.ValidationError{Field: "username"}}
	svc, _, _ := newTestAuthService(r, &MockSessionStore{})

	_, err := svc.Login(context.Background(), "", "secret")

	if errors.Is(err, ErrLoginFailed) {
		t.Fatal("validation error must not be reported as a login failure")
	}
	if !errors.Is(err, utils.ErrEmptyField) {
		t.Errorf("expected ErrEmptyField, got %v", err)
	}
}

func TestAuthService_Login_PersistFailure(t *testing.T) {
	store := &MockSessionStore{setErr: errors.New("disk full")}
	svc, _, _ := newTestAuthService(&MockAuthRemote{access: "tok"}, store)

	_, err := svc.Login(context.Background(), "alice", "secret")
	if !errors.Is(err, ErrSessionUnsaved) {
		t.Fatalf("expected ErrSessionUnsaved, got %v", err)
	}
}

func TestAuthService_Login_ResetsPreviousViews(t *testing.T) {
	svc, cache, flow := newTestAuthService(&MockAuthRemote{access: "tok"}, &MockSessionStore{})

	if _, err := svc.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.cleared != 1 || flow.closed != 1 {
		t.Errorf("expected cache cleared and flow closed once, got %d/%d", cache.cleared, flow.closed)
	}
}

func TestAuthService_Logout(t *testing.T) {
	store := &MockSessionStore{token: "tok"}
	svc, cache, flow := newTestAuthService(&MockAuthRemote{}, store)

	if err := svc.Logout(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.IsAuthenticated() {
		t.Error("expected unauthenticated after logout")
	}
	if cache.cleared != 1 {
		t.Errorf("expected cache cleared, got %d", cache.cleared)
	}
	if flow.closed != 1 {
		t.Errorf("expected onboarding closed, got %d", flow.closed)
	}
}

func TestAuthService_Logout_ClearError(t *testing.T) {
	store := &MockSessionStore{token: "tok", clearErr: errors.New("read-only")}
	svc, _, _ := newTestAuthService(&MockAuthRemote{}, store)

	if err := svc.Logout(); !errors.Is(err, ErrSessionUnsaved) {
		t.Errorf("expected ErrSessionUnsaved, got %v", err)
	}
}

func TestAuthService_ExpireSession(t *testing.T) {
	store := &MockSessionStore{token: "tok"}
	svc, cache, _ := newTestAuthService(&MockAuthRemote{}, store)

	svc.ExpireSession(http.StatusUnauthorized)

	if store.token != "" {
		t.Error("expected token cleared")
	}
	if cache.cleared != 1 {
		t.Error("expected cache cleared")
	}
}

func TestAuthService_NilOptionalDeps(t *testing.T) {
	store := &MockSessionStore{}
	svc := NewAuthService(&MockAuthRemote{access: "tok"}, store, nil, nil, nil)

	if _, err := svc.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Logout(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthService_Register(t *testing.T) {
	r := &MockAuthRemote{}
	svc, _, _ := newTestAuthService(r, &MockSessionStore{})

	if err := svc.Register(context.Background(), "bob", "bob@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.registerErr = &remote.RemoteError{Op: remote.OpRegister, Status: http.StatusConflict, Body: `{"error":"user exists"}`}
	err := svc.Register(context.Background(), "bob", "bob@example.com", "pw")
	var re *remote.RemoteError
	if !errors.As(err, &re) || re.Reason() != "user exists" {
		t.Errorf("expected remote error with reason, got %v", err)
	}
}
