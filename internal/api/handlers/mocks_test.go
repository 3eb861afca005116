package handlers

import (
	"context"
	"sync"

	"tradeconsole/internal/models"
	"tradeconsole/internal/onboarding"
	"tradeconsole/internal/service"
)

// ============ Mock Auth Service ============

type MockAuthService struct {
	authenticated bool
	loginErr      error
	logoutErr     error
	registerErr   error

	lastUsername string
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*service.LoginResult, error) {
	m.lastUsername = username
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	m.authenticated = true
	return &service.LoginResult{Redirect: service.PathAfterLogin}, nil
}

func (m *MockAuthService) Logout() error {
	if m.logoutErr != nil {
		return m.logoutErr
	}
	m.authenticated = false
	return nil
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password string) error {
	return m.registerErr
}

func (m *MockAuthService) IsAuthenticated() bool {
	return m.authenticated
}

// ============ Mock Onboarding Flow ============

type MockOnboardingFlow struct {
	mu sync.Mutex

	mounted bool
	state   onboarding.State

	refreshErr error
	testErr    error
	saveErr    error

	mountCalls   int
	refreshCalls int
	closeCalls   int
	lastKey      string
}

func (m *MockOnboardingFlow) Mount(lifetime context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mountCalls++
	if m.mounted {
		return false
	}
	m.mounted = true
	return true
}

func (m *MockOnboardingFlow) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.mounted = false
}

func (m *MockOnboardingFlow) State() onboarding.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *MockOnboardingFlow) Refresh(ctx context.Context) (onboarding.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	return m.state, m.refreshErr
}

func (m *MockOnboardingFlow) Test(ctx context.Context, apiKey, apiSecret string) (onboarding.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastKey = apiKey
	return m.state, m.testErr
}

func (m *MockOnboardingFlow) Save(ctx context.Context, apiKey, apiSecret string) (onboarding.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastKey = apiKey
	return m.state, m.saveErr
}

// ============ Mock Dashboard Service ============

type MockDashboardService struct {
	loadErr   error
	lastQuery models.DashboardQuery
}

func (m *MockDashboardService) Load(ctx context.Context, q models.DashboardQuery) (*models.DashboardView, error) {
	m.lastQuery = q
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return &models.DashboardView{Query: q.WithDefaults(), KeyInfo: models.QueryView{Data: map[string]interface{}{"ok": true}}}, nil
}

func (m *MockDashboardService) Status(q models.DashboardQuery) (*models.DashboardView, error) {
	m.lastQuery = q
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return &models.DashboardView{Query: q.WithDefaults(), KeyInfo: models.QueryView{Loading: true}}, nil
}

// ============ Mock Notifier ============

type MockNotifier struct {
	events []bool
}

func (m *MockNotifier) BroadcastSession(authenticated bool, redirect string) {
	m.events = append(m.events, authenticated)
}
