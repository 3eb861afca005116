package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradeconsole/internal/config"
	"tradeconsole/pkg/utils"
)

// staticTokens - TokenSource с фиксированным токеном
type staticTokens string

func (s staticTokens) CurrentToken() (string, bool) {
	return string(s), s != ""
}

func newTestGateway(tokens TokenSource, opts ...Option) *Gateway {
	return New(DefaultTransportConfig(), tokens, utils.NewNopLogger(), opts...)
}

func TestSend_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get(HeaderAuthorization)
		gotRequestID = r.Header.Get(HeaderRequestID)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	g := newTestGateway(staticTokens("tok-1"))
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/onboarding/state", nil)

	resp, err := g.Send(req)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-1")
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID must be set")
	}
	if req.Header.Get(HeaderAuthorization) != "" {
		t.Error("Send must not modify the caller's request")
	}
}

func TestSend_UnauthenticatedWithoutToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get(HeaderAuthorization)
	}))
	defer server.Close()

	g := newTestGateway(staticTokens(""))
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/auth/login", nil)

	resp, err := g.Send(req)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestSend_ReadsTokenOnEveryCall(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(HeaderAuthorization))
	}))
	defer server.Close()

	tokens := &mutableTokens{}
	g := newTestGateway(tokens)

	for _, tok := range []string{"", "a", "b", ""} {
		tokens.token = tok
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		resp, err := g.Send(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	want := []string{"", "Bearer a", "Bearer b", ""}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("call %d: Authorization = %q, want %q", i, seen[i], want[i])
		}
	}
}

type mutableTokens struct{ token string }

func (m *mutableTokens) CurrentToken() (string, bool) { return m.token, m.token != "" }

func TestSend_ReturnsErrorStatusesAsResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	g := newTestGateway(staticTokens("tok"))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := g.Send(req)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSend_AuthRejectedHook(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		status   int
		wantHook bool
	}{
		{"401 with token", "tok", http.StatusUnauthorized, true},
		{"403 with token", "tok", http.StatusForbidden, true},
		{"401 without token", "", http.StatusUnauthorized, false},
		{"200 with token", "tok", http.StatusOK, false},
		{"500 with token", "tok", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			called := false
			g := newTestGateway(staticTokens(tt.token), WithAuthRejectedHook(func(int) { called = true }))
			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

			resp, err := g.Send(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()

			if called != tt.wantHook {
				t.Errorf("hook called = %v, want %v", called, tt.wantHook)
			}
		})
	}
}

func TestSend_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	g := newTestGateway(staticTokens(""))
	req, _ := http.NewRequest(http.MethodGet, url, nil)

	if _, err := g.Send(req); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	g := newTestGateway(staticTokens(""))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(WithOperation(ctx, "test"), http.MethodGet, server.URL, nil)

	if _, err := g.Send(req); err == nil {
		t.Fatal("expected context error")
	}
}

func TestTransportConfigFrom(t *testing.T) {
	tc := TransportConfigFrom(config.RemoteConfig{
		ConnectTimeout: 2 * time.Second,
		TotalTimeout:   10 * time.Second,
		MaxIdleConns:   2,
	})

	if tc.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v, want 2s", tc.ConnectTimeout)
	}
	if tc.TotalTimeout != 10*time.Second {
		t.Errorf("TotalTimeout = %v, want 10s", tc.TotalTimeout)
	}
	if tc.MaxIdleConnsPerHost > tc.MaxIdleConns {
		t.Errorf("MaxIdleConnsPerHost %d exceeds MaxIdleConns %d", tc.MaxIdleConnsPerHost, tc.MaxIdleConns)
	}
}

func TestOperationContext(t *testing.T) {
	ctx := WithOperation(context.Background(), "login")
	if got := OperationFrom(ctx); got != "login" {
		t.Errorf("OperationFrom() = %q, want login", got)
	}
	if got := OperationFrom(context.Background()); got != "" {
		t.Errorf("OperationFrom(empty) = %q, want empty", got)
	}
}
